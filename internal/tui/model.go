package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"payflow/internal/model"
	"payflow/internal/payment"
)

const refreshInterval = 250 * time.Millisecond

// Flow is the part of the payment controller the terminal UI drives.
type Flow interface {
	Load(ctx context.Context, orderID string) error
	AttachProof(file *model.ProofFile) error
	Confirm(ctx context.Context) error
	Snapshot() payment.View
}

type refreshMsg time.Time

type loadedMsg struct {
	err error
}

type confirmedMsg struct {
	err error
}

type Model struct {
	ctx     context.Context
	flow    Flow
	orderID string
	proof   *model.ProofFile

	view   payment.View
	notice string
	ok     bool
	route  string
}

// New builds the UI for one order. proof is the file attached with the "a"
// key and may be nil.
func New(ctx context.Context, flow Flow, orderID string, proof *model.ProofFile) Model {
	return Model{
		ctx:     ctx,
		flow:    flow,
		orderID: orderID,
		proof:   proof,
		view:    flow.Snapshot(),
	}
}

// Route is where the flow asked to go when the program ended, if anywhere.
func (m Model) Route() string {
	return m.route
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), refreshCmd())
}

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.flow.Load(m.ctx, m.orderID)}
	}
}

func (m Model) confirmCmd() tea.Cmd {
	return func() tea.Msg {
		return confirmedMsg{err: m.flow.Confirm(m.ctx)}
	}
}

func refreshCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "c":
			if m.view.Confirming {
				return m, nil
			}
			m.view = m.flow.Snapshot()
			return m, m.confirmCmd()
		case "a":
			if m.proof == nil {
				m.notice, m.ok = "No proof file given (--proof)", false
				return m, nil
			}
			m.setProof(m.proof)
		case "d":
			m.setProof(nil)
		}
	case refreshMsg:
		m.view = m.flow.Snapshot()
		return m, refreshCmd()
	case loadedMsg:
		m.view = m.flow.Snapshot()
	case confirmedMsg:
		m.view = m.flow.Snapshot()
		switch {
		case errors.Is(msg.err, payment.ErrNotActive):
			m.notice, m.ok = "Đơn hàng chưa sẵn sàng để thanh toán", false
		case errors.Is(msg.err, payment.ErrConfirmInFlight):
			m.notice, m.ok = "Đang xác nhận thanh toán...", false
		}
	case noticeMsg:
		m.notice, m.ok = msg.text, msg.success
	case navigateMsg:
		m.route = msg.route
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) setProof(file *model.ProofFile) {
	if err := m.flow.AttachProof(file); err != nil {
		m.notice, m.ok = err.Error(), false
	}
	m.view = m.flow.Snapshot()
}

func (m Model) View() string {
	v := m.view
	b := &strings.Builder{}

	fmt.Fprintf(b, "Thanh toán đơn hàng %s\n\n", m.orderID)

	switch v.State {
	case payment.StateLoading:
		fmt.Fprintln(b, "Đang tải...")
	case payment.StateAborted:
		fmt.Fprintln(b, "Không thể thanh toán đơn hàng này.")
	}

	fmt.Fprintf(b, "Thời gian còn lại: %s\n", v.Countdown)
	if v.IsExpired {
		fmt.Fprintln(b, "Đơn hàng đã hết hạn thanh toán.")
	}

	if v.Order != nil {
		fmt.Fprintf(b, "Tổng tiền: %d đ\n", v.Order.TotalAmount)
	}
	fmt.Fprintln(b)

	switch {
	case v.Instructions != nil:
		in := v.Instructions
		fmt.Fprintf(b, "Ngân hàng:      %s\n", in.BankName)
		fmt.Fprintf(b, "Số tài khoản:   %s\n", in.AccountNumber)
		fmt.Fprintf(b, "Chủ tài khoản:  %s\n", in.AccountHolder)
		fmt.Fprintf(b, "Số tiền:        %.0f đ\n", in.Amount)
		fmt.Fprintf(b, "Nội dung:       %s\n", in.Content)
	case v.BankError != "":
		fmt.Fprintf(b, "Thông tin chuyển khoản: %s\n", v.BankError)
	}
	if v.QRCodeURL != "" {
		fmt.Fprintf(b, "QR: %s\n", v.QRCodeURL)
	}
	fmt.Fprintln(b)

	if v.Proof != nil {
		fmt.Fprintf(b, "Ảnh chứng từ: %s (%s)\n", v.Proof.Name, v.PreviewURL)
	} else {
		fmt.Fprintln(b, "Ảnh chứng từ: chưa đính kèm")
	}

	if v.Confirming {
		fmt.Fprintln(b, "Đang xác nhận thanh toán...")
	}
	if v.ErrorMessage != "" {
		fmt.Fprintf(b, "Lỗi: %s\n", v.ErrorMessage)
	}
	if v.SuccessMessage != "" {
		fmt.Fprintf(b, "%s\n", v.SuccessMessage)
	}
	if m.notice != "" && m.notice != v.ErrorMessage && m.notice != v.SuccessMessage {
		marker := "!"
		if m.ok {
			marker = "✓"
		}
		fmt.Fprintf(b, "%s %s\n", marker, m.notice)
	}

	fmt.Fprintln(b, "\nControls: c confirm, a attach proof, d remove proof, q quit")
	return b.String()
}
