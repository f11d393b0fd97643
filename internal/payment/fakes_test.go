package payment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"payflow/internal/clock"
	"payflow/internal/events"
	"payflow/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	ticks  chan time.Time
	timers []*fakeTimer
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, ticks: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) NewTicker(time.Duration) clock.Ticker {
	return fakeTicker{c: c.ticks}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Timers() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTimer(nil), c.timers...)
}

// Tick delivers one tick to the countdown. Delivery returns once the
// countdown goroutine has received it, which also means the previous tick has
// been fully handled.
func (c *fakeClock) Tick(t *testing.T) {
	t.Helper()
	select {
	case c.ticks <- c.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not take the tick")
	}
}

type fakeTicker struct {
	c chan time.Time
}

func (t fakeTicker) C() <-chan time.Time { return t.c }
func (t fakeTicker) Stop()               {}

type fakeTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) Fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.stopped = true
	t.mu.Unlock()
	if !stopped {
		t.f()
	}
}

type fakeAPI struct {
	mu sync.Mutex

	order      *model.Order
	orderErr   error
	bank       *model.BankTransferInstructions
	bankErr    error
	uploadErr  error
	confirmErr error
	statusErr  error

	// confirmGate, when set, blocks ConfirmPayment until it is closed.
	confirmGate chan struct{}

	getOrderCalls int
	getBankCalls  int
	uploads       []model.ProofUpload
	confirmCalls  int
	statusUpdates []model.StatusUpdate
}

func (a *fakeAPI) GetOrder(context.Context, string) (*model.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.getOrderCalls++
	if a.orderErr != nil {
		return nil, a.orderErr
	}
	order := *a.order
	return &order, nil
}

func (a *fakeAPI) GetSellerBankInfo(context.Context, string) (*model.BankTransferInstructions, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.getBankCalls++
	if a.bankErr != nil {
		return nil, a.bankErr
	}
	if a.bank == nil {
		return nil, fmt.Errorf("no bank info")
	}
	bank := *a.bank
	return &bank, nil
}

func (a *fakeAPI) UploadPaymentProof(_ context.Context, upload model.ProofUpload) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uploads = append(a.uploads, upload)
	return a.uploadErr
}

func (a *fakeAPI) ConfirmPayment(context.Context, string) error {
	a.mu.Lock()
	a.confirmCalls++
	gate, err := a.confirmGate, a.confirmErr
	a.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

func (a *fakeAPI) UpdateOrderStatus(_ context.Context, _ string, update model.StatusUpdate) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statusUpdates = append(a.statusUpdates, update)
	return a.statusErr
}

func (a *fakeAPI) ConfirmCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.confirmCalls
}

func (a *fakeAPI) StatusUpdates() []model.StatusUpdate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.StatusUpdate(nil), a.statusUpdates...)
}

func (a *fakeAPI) Uploads() []model.ProofUpload {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.ProofUpload(nil), a.uploads...)
}

type recorder struct {
	mu        sync.Mutex
	routes    []string
	successes []string
	errors    []string
}

func (r *recorder) Navigate(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

func (r *recorder) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, msg)
}

func (r *recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recorder) Routes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.routes...)
}

func (r *recorder) Successes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.successes...)
}

func (r *recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

// recordingPreviews logs every Create and Revoke in call order.
type recordingPreviews struct {
	mu   sync.Mutex
	next int
	log  []string
	live map[string]bool
}

func newRecordingPreviews() *recordingPreviews {
	return &recordingPreviews{live: make(map[string]bool)}
}

func (p *recordingPreviews) Create(file model.ProofFile) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	url := fmt.Sprintf("blob:test/%d-%s", p.next, file.Name)
	p.log = append(p.log, "create "+url)
	p.live[url] = true
	return url, nil
}

func (p *recordingPreviews) Revoke(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, "revoke "+url)
	delete(p.live, url)
}

func (p *recordingPreviews) Log() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.log...)
}

func (p *recordingPreviews) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.FlowEvent

	// gate, when set, holds every Publish until it is closed.
	gate chan struct{}
}

// Block makes Publish hang until the returned release func is called.
func (p *recordingPublisher) Block() (release func()) {
	gate := make(chan struct{})
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.FlowEvent) error {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}
