package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payflow/internal/apperr"
	"payflow/internal/config"
	"payflow/internal/logcontext"
	"payflow/internal/model"
	"payflow/internal/session"
)

const baseURL = "http://market.test/api"

func newTestClient(sess *session.Session) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(config.API{BaseURL: baseURL + "/", TimeoutMs: 2000}, sess, logger)
}

func TestClient_GetOrder(t *testing.T) {
	tests := []struct {
		name          string
		mockResponse  func()
		expectedError bool
		expectedMsg   string
	}{
		{
			name: "Success",
			mockResponse: func() {
				gock.New(baseURL).
					Get("/orders/ord-1").
					MatchHeader("Authorization", "^Bearer tok-1$").
					Reply(200).
					JSON(map[string]any{"order": map[string]any{
						"_id":           "ord-1",
						"totalAmount":   150000,
						"createdAt":     "2026-10-18T08:00:00.000Z",
						"paymentMethod": "bank_transfer",
					}})
			},
		},
		{
			name: "NotFound",
			mockResponse: func() {
				gock.New(baseURL).
					Get("/orders/ord-1").
					Reply(404).
					JSON(map[string]string{"message": "Không tìm thấy đơn hàng"})
			},
			expectedError: true,
			expectedMsg:   "Không tìm thấy đơn hàng",
		},
		{
			name: "MissingOrder",
			mockResponse: func() {
				gock.New(baseURL).
					Get("/orders/ord-1").
					Reply(200).
					JSON(map[string]any{})
			},
			expectedError: true,
		},
		{
			name: "MissingCreatedAt",
			mockResponse: func() {
				gock.New(baseURL).
					Get("/orders/ord-1").
					Reply(200).
					JSON(map[string]any{
						"order": map[string]any{
							"_id":           "ord-1",
							"totalAmount":   1,
							"paymentMethod": "bank_transfer",
						},
					})
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mockResponse()

			order, err := newTestClient(session.New("tok-1")).GetOrder(context.Background(), "ord-1")
			if tt.expectedError {
				require.Error(t, err)
				if tt.expectedMsg != "" {
					assert.Equal(t, tt.expectedMsg, apperr.Message(err, ""))
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, "ord-1", order.ID)
				assert.Equal(t, int64(150000), order.TotalAmount)
				assert.True(t, order.CreatedAt.Equal(time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)))
				assert.Equal(t, "bank_transfer", order.PaymentMethod)
			}
			assert.True(t, gock.IsDone())
		})
	}
}

func TestClient_GetSellerBankInfo(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Get("/payments/bank-info/ord-1").
		Reply(200).
		JSON(map[string]any{
			"bankName":      "Vietcombank",
			"accountNumber": "0011 223344",
			"accountHolder": "NGUYEN VAN A",
			"amount":        150000.7,
			"content":       "ORDER 123",
			"orderId":       "ord-1",
		})

	info, err := newTestClient(nil).GetSellerBankInfo(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, model.BankTransferInstructions{
		BankName:      "Vietcombank",
		AccountNumber: "0011 223344",
		AccountHolder: "NGUYEN VAN A",
		Amount:        150000.7,
		Content:       "ORDER 123",
		OrderID:       "ord-1",
	}, *info)
	assert.True(t, gock.IsDone())
}

func TestClient_UploadPaymentProof(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Post("/payments/proof").
		MatchHeader("Content-Type", "^multipart/form-data").
		AddMatcher(func(req *http.Request, _ *gock.Request) (bool, error) {
			if err := req.ParseMultipartForm(1 << 20); err != nil {
				return false, err
			}
			file, header, err := req.FormFile("file")
			if err != nil {
				return false, err
			}
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return false, err
			}
			return req.FormValue("orderId") == "ord-1" &&
				req.FormValue("bankName") == "Vietcombank" &&
				req.FormValue("accountNumber") == "0011223344" &&
				req.FormValue("accountHolder") == "NGUYEN VAN A" &&
				header.Filename == "receipt.png" &&
				string(data) == "png-bytes", nil
		}).
		Reply(201).
		JSON(map[string]bool{"success": true})

	err := newTestClient(nil).UploadPaymentProof(context.Background(), model.ProofUpload{
		OrderID:       "ord-1",
		BankName:      "Vietcombank",
		AccountNumber: "0011223344",
		AccountHolder: "NGUYEN VAN A",
		File:          model.ProofFile{Name: "receipt.png", ContentType: "image/png", Data: []byte("png-bytes")},
	})
	require.NoError(t, err)
	assert.True(t, gock.IsDone())
}

func TestClient_ConfirmPayment(t *testing.T) {
	tests := []struct {
		name           string
		mockResponse   func()
		expectedError  bool
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "Success",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/orders/ord-1/confirm-payment").
					Reply(200).
					JSON(map[string]any{"success": true, "message": "ok"})
			},
		},
		{
			name: "EmptyBody",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/orders/ord-1/confirm-payment").
					Reply(204)
			},
		},
		{
			name: "RejectedWithOK",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/orders/ord-1/confirm-payment").
					Reply(200).
					JSON(map[string]any{"success": false, "message": "Đơn hàng đã hết hạn thanh toán"})
			},
			expectedError:  true,
			expectedStatus: 200,
			expectedMsg:    "Đơn hàng đã hết hạn thanh toán",
		},
		{
			name: "ServerErrorWithDataEnvelope",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/orders/ord-1/confirm-payment").
					Reply(500).
					JSON(map[string]any{"data": map[string]string{"message": "Hệ thống bận"}})
			},
			expectedError:  true,
			expectedStatus: 500,
			expectedMsg:    "Hệ thống bận",
		},
		{
			name: "ErrorField",
			mockResponse: func() {
				gock.New(baseURL).
					Post("/orders/ord-1/confirm-payment").
					Reply(400).
					JSON(map[string]any{"error": "invalid order state"})
			},
			expectedError:  true,
			expectedStatus: 400,
			expectedMsg:    "invalid order state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mockResponse()

			err := newTestClient(nil).ConfirmPayment(context.Background(), "ord-1")
			if tt.expectedError {
				var apiErr *Error
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, tt.expectedStatus, apiErr.StatusCode)
				assert.Equal(t, CallConfirmPayment, apiErr.Call)
				assert.Equal(t, tt.expectedMsg, apperr.Message(err, ""))
			} else {
				assert.NoError(t, err)
			}
			assert.True(t, gock.IsDone())
		})
	}
}

func TestClient_UpdateOrderStatus(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Patch("/orders/ord-1/status").
		MatchHeader("X-Request-ID", "^run-42$").
		JSON(map[string]string{"status": "cancelled", "reason": "Payment window expired"}).
		Reply(200).
		JSON(map[string]bool{"success": true})

	ctx := logcontext.AppendCtx(context.Background(), slog.String("runId", "run-42"))
	err := newTestClient(nil).UpdateOrderStatus(ctx, "ord-1", model.StatusUpdate{
		Status: model.OrderStatusCancelled,
		Reason: "Payment window expired",
	})
	require.NoError(t, err)
	assert.True(t, gock.IsDone())
}

func TestClient_UnauthorizedLogsOut(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Get("/orders/ord-1").
		Reply(401).
		JSON(map[string]string{"message": "Phiên đăng nhập đã hết hạn"})

	sess := session.New("tok-1")
	loggedOut := false
	sess.OnLogout(func() { loggedOut = true })

	_, err := newTestClient(sess).GetOrder(context.Background(), "ord-1")
	require.Error(t, err)
	assert.True(t, loggedOut)
	assert.False(t, sess.Authenticated())
	assert.Equal(t, "Phiên đăng nhập đã hết hạn", apperr.Message(err, ""))
}

func TestClient_TransportError(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Get("/orders/ord-1").
		ReplyError(errors.New("connection refused"))

	_, err := newTestClient(nil).GetOrder(context.Background(), "ord-1")
	require.Error(t, err)
	c := apperr.Classify(err)
	assert.Equal(t, apperr.KindGeneric, c.Kind)
	assert.Contains(t, c.Message, "connection refused")
}
