package main

import (
	"flag"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"payflow/internal/config"
	"payflow/internal/logging"
	"payflow/internal/model"
)

const maxProofBytes = 5 << 20

type server struct {
	store    *store
	counter  *endpointCounter
	failRate float64
	logger   *slog.Logger
}

func main() {
	config.LoadDotEnv()

	addr := flag.String("addr", config.GetString("MOCKS_ADDR", ":8085"), "listen address")
	orderID := flag.String("order", "ord-demo", "id of the seeded order")
	amount := flag.Int("amount", config.GetEnvInt("MOCKS_AMOUNT", 150000), "total amount of the seeded order")
	age := flag.Int("age", config.GetEnvInt("MOCKS_AGE_MINUTES", 1), "minutes since the seeded order was created")
	failRate := flag.Float64("fail-rate", 0, "share of confirmations answered with an error")
	token := flag.String("token", config.GetString("MOCKS_TOKEN", ""), "bearer token required by the API, empty to accept any")
	flag.Parse()

	logger := logging.GetLogger(config.Logs{Level: config.GetString("MOCKS_LOG_LEVEL", "info")})

	s := &server{
		store: newStore(model.BankTransferInstructions{
			BankName:      "Vietcombank",
			AccountNumber: "0011 223344",
			AccountHolder: "NGUYEN VAN A",
		}),
		counter:  newEndpointCounter(),
		failRate: *failRate,
		logger:   logger,
	}
	s.store.add(*orderID, int64(*amount), time.Duration(*age)*time.Minute)

	logger.Info("Marketplace mock listening", "addr", *addr, "order", *orderID)
	if err := s.router(*token).Run(*addr); err != nil {
		logger.Error("Server stopped", "error", err)
	}
}

func (s *server) router(token string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), loggingMiddleware(s.logger), s.counter.middleware(s.logger))

	r.GET("/liveness", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	api := r.Group("/api", authMiddleware(token))
	api.POST("/orders", s.createOrder)
	api.GET("/orders/:id", s.getOrder)
	api.POST("/orders/:id/confirm-payment", s.confirmPayment)
	api.PATCH("/orders/:id/status", s.updateStatus)
	api.GET("/payments/bank-info/:orderId", s.bankInfo)
	api.POST("/payments/proof", s.uploadProof)

	return r
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Không tìm thấy đơn hàng"})
}

func (s *server) createOrder(c *gin.Context) {
	var req struct {
		ID         string `json:"id"`
		Amount     int64  `json:"amount"`
		AgeMinutes int    `json:"ageMinutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Dữ liệu không hợp lệ"})
		return
	}

	o := s.store.add(req.ID, req.Amount, time.Duration(req.AgeMinutes)*time.Minute)
	c.JSON(http.StatusCreated, gin.H{"success": true, "order": o.Order})
}

func (s *server) getOrder(c *gin.Context) {
	o, ok := s.store.get(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": o.Order})
}

func (s *server) bankInfo(c *gin.Context) {
	o, ok := s.store.get(c.Param("orderId"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, o.Bank)
}

func (s *server) uploadProof(c *gin.Context) {
	id := c.PostForm("orderId")
	file, err := c.FormFile("file")
	if id == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Thiếu ảnh chứng từ"})
		return
	}
	if file.Size > maxProofBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "Ảnh quá lớn"})
		return
	}

	if !s.store.update(id, func(o *order) { o.Proofs = append(o.Proofs, file.Filename) }) {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Đã tải lên ảnh chứng từ"})
}

func (s *server) confirmPayment(c *gin.Context) {
	id := c.Param("id")
	o, ok := s.store.get(id)
	if !ok {
		notFound(c)
		return
	}
	if o.Status != "pending" {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Đơn hàng không còn chờ thanh toán"})
		return
	}
	if s.failRate > 0 && rand.Float64() < s.failRate {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Hệ thống đang bận, vui lòng thử lại"})
		return
	}

	s.store.update(id, func(o *order) { o.Status = "awaiting_confirmation" })
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Đã ghi nhận thanh toán"})
}

func (s *server) updateStatus(c *gin.Context) {
	var update model.StatusUpdate
	if err := c.ShouldBindJSON(&update); err != nil || update.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Dữ liệu không hợp lệ"})
		return
	}

	ok := s.store.update(c.Param("id"), func(o *order) {
		o.Status = string(update.Status)
		o.CancelReason = update.Reason
	})
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
