package main

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"payflow/internal/model"
)

type order struct {
	model.Order
	Status       string
	CancelReason string
	Proofs       []string
	Bank         model.BankTransferInstructions
}

type store struct {
	mu     sync.Mutex
	orders map[string]*order
	bank   model.BankTransferInstructions
}

func newStore(bank model.BankTransferInstructions) *store {
	return &store{orders: make(map[string]*order), bank: bank}
}

// add registers a pending bank transfer order created age ago. An empty id
// gets a generated one.
func (s *store) add(id string, amount int64, age time.Duration) *order {
	if id == "" {
		id = uuid.NewString()
	}

	bank := s.bank
	bank.Amount = float64(amount)
	bank.Content = "Thanh toan don hang " + id
	bank.OrderID = id

	o := &order{
		Order: model.Order{
			ID:            id,
			TotalAmount:   amount,
			CreatedAt:     time.Now().Add(-age).UTC(),
			PaymentMethod: "bank_transfer",
		},
		Status: "pending",
		Bank:   bank,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[id] = o
	return o
}

func (s *store) get(id string) (order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order{}, false
	}
	return *o, true
}

func (s *store) update(id string, fn func(o *order)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false
	}
	fn(o)
	return true
}
