package payment

import (
	"sync"

	"github.com/google/uuid"

	"payflow/internal/model"
)

// PreviewStore mints local preview URLs for proof images. Every URL returned
// by Create must eventually be passed to Revoke.
type PreviewStore interface {
	Create(file model.ProofFile) (string, error)
	Revoke(url string)
}

type MemoryPreviews struct {
	mu    sync.Mutex
	files map[string]model.ProofFile
}

func NewMemoryPreviews() *MemoryPreviews {
	return &MemoryPreviews{files: make(map[string]model.ProofFile)}
}

func (p *MemoryPreviews) Create(file model.ProofFile) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	url := "blob:payflow/" + uuid.NewString()
	p.files[url] = file
	return url, nil
}

func (p *MemoryPreviews) Revoke(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, url)
}

func (p *MemoryPreviews) Get(url string) (model.ProofFile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	file, ok := p.files[url]
	return file, ok
}

func (p *MemoryPreviews) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files)
}
