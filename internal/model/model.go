package model

import "time"

// Order is the lite projection of a marketplace order used by the payment page.
type Order struct {
	ID            string    `json:"_id"`
	TotalAmount   int64     `json:"totalAmount"`
	CreatedAt     time.Time `json:"createdAt"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
}

type OrderEnvelope struct {
	Order *Order `json:"order"`
}

// BankTransferInstructions tell the buyer where to send the money. Amount is
// kept as received because the backend may send fractional values.
type BankTransferInstructions struct {
	BankName      string  `json:"bankName"`
	AccountNumber string  `json:"accountNumber"`
	AccountHolder string  `json:"accountHolder"`
	Amount        float64 `json:"amount"`
	Content       string  `json:"content"`
	OrderID       string  `json:"orderId"`
}

// ProofFile is an image picked by the buyer that has not been uploaded yet.
type ProofFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type ProofUpload struct {
	OrderID       string
	BankName      string
	AccountNumber string
	AccountHolder string
	File          ProofFile
}

type OrderStatus string

const (
	OrderStatusCancelled OrderStatus = "cancelled"
)

type StatusUpdate struct {
	Status OrderStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}
