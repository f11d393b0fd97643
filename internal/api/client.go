package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"

	"payflow/internal/config"
	"payflow/internal/logcontext"
	"payflow/internal/model"
	"payflow/internal/session"
)

const (
	CallGetOrder          = "get_order"
	CallGetBankInfo       = "get_bank_info"
	CallUploadProof       = "upload_payment_proof"
	CallConfirmPayment    = "confirm_payment"
	CallUpdateOrderStatus = "update_order_status"

	headerRequestID = "X-Request-ID"
)

// Client talks to the marketplace REST API on behalf of one signed-in user.
type Client struct {
	baseURL string
	client  *http.Client
	session *session.Session
	logger  *slog.Logger
}

func NewClient(cfg config.API, sess *session.Session, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout()},
		session: sess,
		logger:  logger,
	}
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}

	var envelope model.OrderEnvelope
	if err := c.do(ctx, CallGetOrder, req, &envelope); err != nil {
		return nil, err
	}
	if envelope.Order == nil {
		return nil, errors.Errorf("%s: order missing from response", CallGetOrder)
	}
	if envelope.Order.CreatedAt.IsZero() {
		return nil, errors.Errorf("%s: order %s has no createdAt", CallGetOrder, orderID)
	}
	return envelope.Order, nil
}

func (c *Client) GetSellerBankInfo(ctx context.Context, orderID string) (*model.BankTransferInstructions, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/payments/bank-info/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}

	var info model.BankTransferInstructions
	if err := c.do(ctx, CallGetBankInfo, req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) UploadPaymentProof(ctx context.Context, upload model.ProofUpload) error {
	body, contentType, err := proofForm(upload)
	if err != nil {
		return errors.Wrap(err, "build payment proof form")
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/payments/proof", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	return c.do(ctx, CallUploadProof, req, nil)
}

func (c *Client) ConfirmPayment(ctx context.Context, orderID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/confirm-payment", nil)
	if err != nil {
		return err
	}
	return c.do(ctx, CallConfirmPayment, req, nil)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, update model.StatusUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return errors.Wrap(err, "marshal status update")
	}

	req, err := c.newRequest(ctx, http.MethodPatch, "/orders/"+url.PathEscape(orderID)+"/status", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(ctx, CallUpdateOrderStatus, req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s %s request", method, path)
	}

	req.Header.Set("Accept", "application/json")
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if runID, ok := logcontext.Value(ctx, "runId"); ok {
		req.Header.Set(headerRequestID, runID)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, call string, req *http.Request, out any) error {
	start := time.Now()
	c.logger.DebugContext(ctx, "Sending request", "call", call, "method", req.Method, "url", req.URL.String())

	err := c.roundTrip(ctx, call, req, out)

	result := "success"
	if err != nil {
		result = "error"
		c.logger.ErrorContext(ctx, "Request failed", "call", call, "error", err)
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`payflow_api_requests_total{call=%q,result=%q}`, call, result)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`payflow_api_request_duration_milliseconds{call=%q}`, call)).
		Update(float64(time.Since(start).Milliseconds()))

	return err
}

func (c *Client) roundTrip(ctx context.Context, call string, req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, call)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "%s: read response body", call)
	}

	c.logger.DebugContext(ctx, "Received response", "call", call, "status", resp.Status)

	if resp.StatusCode == http.StatusUnauthorized && c.session != nil {
		c.logger.WarnContext(ctx, "Session rejected by server, logging out", "call", call)
		c.session.Logout()
	}

	env := parseEnvelope(respBody)
	if resp.StatusCode >= 400 {
		return &Error{Call: call, StatusCode: resp.StatusCode, Message: env.message()}
	}
	if env.Success != nil && !*env.Success {
		return &Error{Call: call, StatusCode: resp.StatusCode, Message: env.message(), Rejected: true}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "%s: decode response", call)
	}
	return nil
}

func proofForm(upload model.ProofUpload) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fields := []struct{ name, value string }{
		{"orderId", upload.OrderID},
		{"bankName", upload.BankName},
		{"accountNumber", upload.AccountNumber},
		{"accountHolder", upload.AccountHolder},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	contentType := upload.File.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.File.Name))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.File.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return body, w.FormDataContentType(), nil
}
