package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

type navigateMsg struct {
	route string
}

type noticeMsg struct {
	success bool
	text    string
}

// Bridge forwards controller side effects into a running bubbletea program.
// Messages sent before a program is attached are dropped.
type Bridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

func NewBridge() *Bridge {
	return &Bridge{}
}

func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = p.Send
}

func (b *Bridge) dispatch(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

func (b *Bridge) Navigate(route string) {
	b.dispatch(navigateMsg{route: route})
}

func (b *Bridge) Success(message string) {
	b.dispatch(noticeMsg{success: true, text: message})
}

func (b *Bridge) Error(message string) {
	b.dispatch(noticeMsg{text: message})
}
