package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"payflow/internal/apperr"
	"payflow/internal/clock"
	"payflow/internal/config"
	"payflow/internal/events"
	"payflow/internal/logcontext"
	"payflow/internal/model"
)

var (
	ErrMissingOrderID  = errors.New("payment: missing order id")
	ErrNotActive       = errors.New("payment: flow is not active")
	ErrConfirmInFlight = errors.New("payment: confirmation already in progress")
	ErrWindowExpired   = errors.New("payment: payment window expired")
	ErrMissingCreation = errors.New("payment: order has no creation time")
)

const (
	msgOrderLoadFailed = "Không thể tải thông tin đơn hàng"
	msgBankLoadFailed  = "Không thể tải thông tin chuyển khoản"
	msgWindowExpired   = "Đã hết thời gian thanh toán"
	msgConfirmFailed   = "Xác nhận thanh toán thất bại, vui lòng thử lại"
	msgConfirmed       = "Xác nhận thanh toán thành công"
)

const (
	outboxSize     = 16
	publishTimeout = 5 * time.Second
)

var (
	flowLoadedCounter          = metrics.GetOrCreateCounter(`payment_flow_total{result="loaded"}`)
	flowAbortedCounter         = metrics.GetOrCreateCounter(`payment_flow_total{result="aborted"}`)
	flowExpiredCounter         = metrics.GetOrCreateCounter(`payment_flow_total{result="expired"}`)
	flowConfirmedCounter       = metrics.GetOrCreateCounter(`payment_flow_total{result="confirmed"}`)
	flowConfirmFailedCounter   = metrics.GetOrCreateCounter(`payment_flow_total{result="confirm_failed"}`)
	flowCancelFailedCounter    = metrics.GetOrCreateCounter(`payment_flow_total{result="cancel_failed"}`)
	bankInfoFailedCounter      = metrics.GetOrCreateCounter(`payment_flow_bank_info_total{result="failed"}`)
	proofUploadFailedCounter   = metrics.GetOrCreateCounter(`payment_flow_proof_upload_total{result="failed"}`)
	proofUploadSuccessCounter  = metrics.GetOrCreateCounter(`payment_flow_proof_upload_total{result="success"}`)
	confirmSecondsLeftSnapshot = metrics.GetOrCreateHistogram(`payment_flow_seconds_left_at_confirm`)
)

type State string

const (
	StateLoading    State = "loading"
	StateActive     State = "active"
	StateConfirming State = "confirming"
	StateConfirmed  State = "confirmed"
	StateExpired    State = "expired"
	StateAborted    State = "aborted"
)

// API is the part of the marketplace backend the payment page talks to.
type API interface {
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	GetSellerBankInfo(ctx context.Context, orderID string) (*model.BankTransferInstructions, error)
	UploadPaymentProof(ctx context.Context, upload model.ProofUpload) error
	ConfirmPayment(ctx context.Context, orderID string) error
	UpdateOrderStatus(ctx context.Context, orderID string, update model.StatusUpdate) error
}

type Navigator interface {
	Navigate(route string)
}

type Notifier interface {
	Success(message string)
	Error(message string)
}

type Deps struct {
	API       API
	Navigator Navigator
	Notifier  Notifier
	Clock     clock.Clock
	Previews  PreviewStore
	Publisher events.Publisher
	Logger    *slog.Logger
}

type settings struct {
	window           time.Duration
	tick             time.Duration
	redirectDelay    time.Duration
	landingRoute     string
	orderDetailRoute string
	cancelReason     string
}

func newSettings(cfg config.Payment) settings {
	s := settings{
		window:           WindowMinutes * time.Minute,
		tick:             time.Second,
		redirectDelay:    2 * time.Second,
		landingRoute:     "/",
		orderDetailRoute: "/orders/%s",
		cancelReason:     "Payment window expired",
	}
	if cfg.WindowMinutes > 0 {
		s.window = time.Duration(cfg.WindowMinutes) * time.Minute
	}
	if cfg.TickIntervalMs > 0 {
		s.tick = time.Duration(cfg.TickIntervalMs) * time.Millisecond
	}
	if cfg.RedirectDelayMs > 0 {
		s.redirectDelay = time.Duration(cfg.RedirectDelayMs) * time.Millisecond
	}
	if cfg.LandingRoute != "" {
		s.landingRoute = cfg.LandingRoute
	}
	if cfg.OrderDetailRoute != "" {
		s.orderDetailRoute = cfg.OrderDetailRoute
	}
	if cfg.CancelReason != "" {
		s.cancelReason = cfg.CancelReason
	}
	return s
}

// Controller drives the payment page of a single pending order: it loads the
// order and the seller's bank details, counts down the payment window,
// cancels the order when the window lapses and submits the buyer's payment
// confirmation.
type Controller struct {
	api       API
	nav       Navigator
	notifier  Notifier
	clock     clock.Clock
	previews  PreviewStore
	publisher events.Publisher
	logger    *slog.Logger
	settings  settings

	mu             sync.Mutex
	ctx            context.Context
	runID          string
	orderID        string
	state          State
	order          *model.Order
	window         *Window
	secondsLeft    int
	bank           *model.BankTransferInstructions
	bankErr        string
	proof          *model.ProofFile
	previewURL     string
	errorMessage   string
	successMessage string
	expiryFired    bool
	qr             qrMemo
	stopCountdown  context.CancelFunc
	countdownDone  chan struct{}
	redirect       clock.Timer
	closed         bool
	outbox         chan pendingEvent
	outboxDone     chan struct{}
	outboxClosed   bool
}

type pendingEvent struct {
	ctx   context.Context
	event events.FlowEvent
}

func NewController(deps Deps, cfg config.Payment) *Controller {
	c := &Controller{
		api:       deps.API,
		nav:       deps.Navigator,
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		previews:  deps.Previews,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		settings:  newSettings(cfg),
		ctx:       context.Background(),
		state:     StateLoading,
		qr:        qrMemo{derive: QRCodeURL},
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.previews == nil {
		c.previews = NewMemoryPreviews()
	}
	if c.publisher == nil {
		c.publisher = events.Nop{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Load fetches the order and the bank instructions concurrently and starts
// the countdown once the order is known. ctx bounds the countdown as well as
// the fetches. Only a failed order fetch is returned as an error; a failed
// bank fetch leaves the flow usable.
func (c *Controller) Load(ctx context.Context, orderID string) error {
	runID := uuid.NewString()
	ctx = logcontext.AppendCtx(ctx, slog.String("runId", runID))
	ctx = logcontext.AppendCtx(ctx, slog.String("orderId", orderID))

	c.mu.Lock()
	c.ctx, c.runID, c.orderID = ctx, runID, orderID
	if orderID == "" {
		c.state = StateAborted
		c.mu.Unlock()

		c.logger.WarnContext(ctx, "No order id given, leaving payment page")
		flowAbortedCounter.Inc()
		c.nav.Navigate(c.settings.landingRoute)
		return ErrMissingOrderID
	}
	c.state = StateLoading
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Loading payment page")

	var (
		wg       sync.WaitGroup
		orderErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		orderErr = c.loadOrder(ctx, orderID)
	}()
	go func() {
		defer wg.Done()
		c.loadBankInfo(ctx, orderID)
	}()
	wg.Wait()

	return orderErr
}

func (c *Controller) loadOrder(ctx context.Context, orderID string) error {
	order, err := c.api.GetOrder(ctx, orderID)
	msg := apperr.Message(err, msgOrderLoadFailed)
	if err == nil && order.CreatedAt.IsZero() {
		// No creation time means no window; it must never count as lapsed.
		err, msg = ErrMissingCreation, msgOrderLoadFailed
	}
	if err != nil {
		c.mu.Lock()
		c.state = StateAborted
		c.mu.Unlock()

		c.logger.ErrorContext(ctx, "Error loading order", "error", err)
		flowAbortedCounter.Inc()
		c.notifier.Error(msg)
		c.nav.Navigate(c.settings.landingRoute)
		return errors.Wrap(err, "load order")
	}

	window := NewWindow(order.CreatedAt, c.settings.window)

	c.mu.Lock()
	c.order = order
	c.window = &window
	c.secondsLeft = window.SecondsLeft(c.clock.Now())
	if c.state == StateLoading {
		c.state = StateActive
	}
	c.startCountdownLocked(ctx)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Order loaded", "expiresAt", window.ExpiresAt, "totalAmount", order.TotalAmount)
	flowLoadedCounter.Inc()
	return nil
}

func (c *Controller) loadBankInfo(ctx context.Context, orderID string) {
	info, err := c.api.GetSellerBankInfo(ctx, orderID)

	c.mu.Lock()
	if err == nil {
		c.bank = info
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "Bank transfer instructions loaded", "bankName", info.BankName)
		return
	}

	msg := apperr.Message(err, msgBankLoadFailed)
	c.bankErr = msg
	aborted := c.state == StateAborted
	c.mu.Unlock()

	c.logger.ErrorContext(ctx, "Error loading bank transfer instructions", "error", err)
	bankInfoFailedCounter.Inc()
	if !aborted {
		c.notifier.Error(msg)
	}
}

func (c *Controller) startCountdownLocked(ctx context.Context) {
	if c.closed || c.stopCountdown != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	ticker := c.clock.NewTicker(c.settings.tick)
	done := make(chan struct{})
	c.stopCountdown, c.countdownDone = cancel, done

	go func() {
		defer close(done)
		defer ticker.Stop()

		c.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				c.tick(ctx)
			}
		}
	}()
}

func (c *Controller) tick(ctx context.Context) {
	now := c.clock.Now()

	c.mu.Lock()
	if c.window == nil {
		c.mu.Unlock()
		return
	}
	c.secondsLeft = c.window.SecondsLeft(now)
	fire := c.secondsLeft == 0 && !c.expiryFired &&
		c.state != StateConfirmed && c.state != StateAborted
	if fire {
		c.expiryFired = true
		c.state = StateExpired
	}
	orderID := c.orderID
	c.mu.Unlock()

	if fire {
		c.expire(ctx, orderID)
	}
}

// expire cancels the order and leaves the page. Cancellation is best effort:
// the buyer is sent to the landing page whatever the outcome.
func (c *Controller) expire(ctx context.Context, orderID string) {
	c.logger.WarnContext(ctx, "Payment window expired, cancelling order")
	flowExpiredCounter.Inc()

	err := c.api.UpdateOrderStatus(ctx, orderID, model.StatusUpdate{
		Status: model.OrderStatusCancelled,
		Reason: c.settings.cancelReason,
	})
	detail := "cancelled"
	if err != nil {
		c.logger.ErrorContext(ctx, "Error cancelling expired order", "error", err)
		flowCancelFailedCounter.Inc()
		detail = err.Error()
	}
	c.nav.Navigate(c.settings.landingRoute)
	c.publish(ctx, events.PaymentExpired, detail)
}

// AttachProof replaces the current proof image. A nil file removes it. The
// previous preview URL is always revoked before a new one is created.
func (c *Controller) AttachProof(file *model.ProofFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseProofLocked()
	c.errorMessage, c.successMessage = "", ""

	if file == nil {
		return nil
	}

	proof := *file
	url, err := c.previews.Create(proof)
	if err != nil {
		return errors.Wrap(err, "create proof preview")
	}
	c.proof, c.previewURL = &proof, url
	return nil
}

func (c *Controller) releaseProofLocked() {
	if c.previewURL != "" {
		c.previews.Revoke(c.previewURL)
	}
	c.proof, c.previewURL = nil, ""
}

// Confirm tells the backend the buyer has transferred the money. It returns
// ErrConfirmInFlight while another confirmation is running and
// ErrWindowExpired once the window has lapsed; neither reaches the network.
func (c *Controller) Confirm(ctx context.Context) error {
	now := c.clock.Now()

	c.mu.Lock()
	switch {
	case c.state == StateConfirming:
		c.mu.Unlock()
		return ErrConfirmInFlight
	case c.window == nil || c.state == StateLoading || c.state == StateAborted || c.state == StateConfirmed:
		c.mu.Unlock()
		return ErrNotActive
	}

	c.secondsLeft = c.window.SecondsLeft(now)
	if c.secondsLeft <= 0 || c.state == StateExpired {
		c.errorMessage, c.successMessage = msgWindowExpired, ""
		c.mu.Unlock()

		c.notifier.Error(msgWindowExpired)
		return ErrWindowExpired
	}

	c.state = StateConfirming
	c.errorMessage, c.successMessage = "", ""
	orderID, secondsLeft := c.orderID, c.secondsLeft
	var proof *model.ProofFile
	if c.proof != nil {
		p := *c.proof
		proof = &p
	}
	var bank *model.BankTransferInstructions
	if c.bank != nil {
		b := *c.bank
		bank = &b
	}
	ctx = c.flowCtx(ctx)
	c.mu.Unlock()

	confirmSecondsLeftSnapshot.Update(float64(secondsLeft))

	if proof != nil && bank != nil {
		c.uploadProof(ctx, orderID, *bank, *proof)
	}

	err := c.api.ConfirmPayment(ctx, orderID)
	if err != nil {
		msg := apperr.Message(err, msgConfirmFailed)

		c.mu.Lock()
		if c.state == StateConfirming {
			c.state = StateActive
		}
		c.errorMessage = msg
		c.mu.Unlock()

		c.logger.ErrorContext(ctx, "Error confirming payment", "error", err)
		flowConfirmFailedCounter.Inc()
		c.notifier.Error(msg)
		c.publish(ctx, events.PaymentConfirmFailed, err.Error())
		return errors.Wrap(err, "confirm payment")
	}

	c.mu.Lock()
	c.releaseProofLocked()
	c.successMessage = msgConfirmed
	confirmed := c.state == StateConfirming
	if confirmed {
		c.state = StateConfirmed
		if !c.closed {
			route := fmt.Sprintf(c.settings.orderDetailRoute, orderID)
			c.redirect = c.clock.AfterFunc(c.settings.redirectDelay, func() {
				c.nav.Navigate(route)
			})
		}
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Payment confirmed", "secondsLeft", secondsLeft)
	flowConfirmedCounter.Inc()
	if confirmed {
		c.notifier.Success(msgConfirmed)
	}
	c.publish(ctx, events.PaymentConfirmed, "")
	return nil
}

func (c *Controller) uploadProof(ctx context.Context, orderID string, bank model.BankTransferInstructions, proof model.ProofFile) {
	err := c.api.UploadPaymentProof(ctx, model.ProofUpload{
		OrderID:       orderID,
		BankName:      bank.BankName,
		AccountNumber: bank.AccountNumber,
		AccountHolder: bank.AccountHolder,
		File:          proof,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "Error uploading payment proof, confirming without it", "error", err)
		proofUploadFailedCounter.Inc()
		c.publish(ctx, events.PaymentProofUploadFailed, err.Error())
		return
	}
	proofUploadSuccessCounter.Inc()
}

// flowCtx carries the flow's log attributes over to a caller supplied ctx.
func (c *Controller) flowCtx(ctx context.Context) context.Context {
	for _, attr := range logcontext.Attrs(c.ctx) {
		ctx = logcontext.AppendCtx(ctx, attr)
	}
	return ctx
}

// publish queues a flow event for the outbox goroutine so that a slow or
// unreachable broker never holds up navigation or notices.
func (c *Controller) publish(ctx context.Context, t events.Type, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.outboxClosed {
		c.logger.WarnContext(ctx, "Flow closed, dropping event", "type", t)
		return
	}

	event := events.New(t, c.orderID, c.clock.Now())
	event.RunID = c.runID
	event.Detail = detail

	if c.outbox == nil {
		c.outbox = make(chan pendingEvent, outboxSize)
		c.outboxDone = make(chan struct{})
		go c.drainOutbox(c.outbox, c.outboxDone)
	}

	select {
	case c.outbox <- pendingEvent{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		c.logger.WarnContext(ctx, "Flow event queue full, dropping event", "type", t)
	}
}

func (c *Controller) drainOutbox(queue <-chan pendingEvent, done chan<- struct{}) {
	defer close(done)

	for p := range queue {
		ctx, cancel := context.WithTimeout(p.ctx, publishTimeout)
		if err := c.publisher.Publish(ctx, p.event); err != nil {
			c.logger.WarnContext(ctx, "Error publishing flow event", "type", p.event.Type, "error", err)
		}
		cancel()
	}
}

// Close stops the countdown and any pending redirect, releases the proof
// preview and waits for queued flow events to be handed to the publisher.
// It is safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	stop, done := c.stopCountdown, c.countdownDone
	if c.redirect != nil {
		c.redirect.Stop()
		c.redirect = nil
	}
	c.releaseProofLocked()
	c.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	c.mu.Lock()
	if c.outbox != nil && !c.outboxClosed {
		close(c.outbox)
	}
	c.outboxClosed = true
	outboxDone := c.outboxDone
	c.mu.Unlock()

	if outboxDone != nil {
		<-outboxDone
	}
}
