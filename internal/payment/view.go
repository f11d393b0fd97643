package payment

import (
	"payflow/internal/model"
)

// View is a point-in-time copy of everything the payment page renders.
type View struct {
	State          State
	OrderID        string
	Order          *model.Order
	Instructions   *model.BankTransferInstructions
	BankLoaded     bool
	BankError      string
	HasWindow      bool
	SecondsLeft    int
	Countdown      string
	IsExpired      bool
	QRCodeURL      string
	Proof          *model.ProofFile
	PreviewURL     string
	Confirming     bool
	ErrorMessage   string
	SuccessMessage string
}

func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:          c.state,
		OrderID:        c.orderID,
		BankError:      c.bankErr,
		PreviewURL:     c.previewURL,
		Confirming:     c.state == StateConfirming,
		ErrorMessage:   c.errorMessage,
		SuccessMessage: c.successMessage,
		Countdown:      CountdownPlaceholder,
	}

	if c.order != nil {
		order := *c.order
		v.Order = &order
	}
	if c.window != nil {
		v.HasWindow = true
		v.SecondsLeft = c.secondsLeft
		v.Countdown = FormatCountdown(c.secondsLeft)
		v.IsExpired = c.secondsLeft <= 0
	}
	if c.proof != nil {
		proof := *c.proof
		v.Proof = &proof
	}

	switch {
	case c.bank != nil:
		bank := *c.bank
		v.Instructions = &bank
		v.BankLoaded = true
		v.QRCodeURL = c.qr.get(bank)
	case c.order != nil && c.bankErr == "":
		v.Instructions = placeholderInstructions(*c.order)
	}

	return v
}

// placeholderInstructions fills the transfer section while the seller's bank
// details are still loading.
func placeholderInstructions(order model.Order) *model.BankTransferInstructions {
	return &model.BankTransferInstructions{
		Amount:  float64(order.TotalAmount),
		Content: "Thanh toan don hang " + order.ID,
		OrderID: order.ID,
	}
}
