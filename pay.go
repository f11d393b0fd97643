package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"payflow/internal/api"
	"payflow/internal/clock"
	"payflow/internal/config"
	"payflow/internal/events"
	"payflow/internal/kafka"
	"payflow/internal/logging"
	"payflow/internal/metrics"
	"payflow/internal/model"
	"payflow/internal/payment"
	"payflow/internal/session"
	"payflow/internal/tui"
)

const defaultTUILogFile = "payflow.log"

func payCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Open the payment page of a pending order",
		RunE:  runPay,
	}

	cmd.Flags().StringP("order", "o", "", "Order id")
	cmd.Flags().StringP("proof", "p", "", "Image attached as payment proof with the \"a\" key")
	cmd.Flags().Bool("dump-metrics", false, "Print collected metrics to stderr on exit")

	return cmd
}

func runPay(cmd *cobra.Command, _ []string) error {
	configDir, _ := cmd.Flags().GetString("config")
	orderID, _ := cmd.Flags().GetString("order")
	proofPath, _ := cmd.Flags().GetString("proof")
	dumpMetrics, _ := cmd.Flags().GetBool("dump-metrics")

	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	// Log lines on stdout would tear the terminal UI.
	if cfg.Logs.URL == "" && cfg.Logs.File == "" {
		cfg.Logs.File = defaultTUILogFile
	}

	logger := logging.GetLogger(cfg.Logs)
	metrics.Setup(cfg.Metrics, logger)

	var proof *model.ProofFile
	if proofPath != "" {
		if proof, err = readProof(proofPath); err != nil {
			return err
		}
	}

	sess := session.New(cfg.Auth.Token)
	sess.OnLogout(func() {
		logger.Warn("Session rejected by the marketplace, sign in again")
	})
	client := api.NewClient(cfg.API, sess, logger)

	publisher, closePublisher := newPublisher(cfg.Kafka, logger)
	defer closePublisher()

	bridge := tui.NewBridge()
	ctrl := payment.NewController(payment.Deps{
		API:       client,
		Navigator: bridge,
		Notifier:  bridge,
		Clock:     clock.Real(),
		Previews:  payment.NewMemoryPreviews(),
		Publisher: publisher,
		Logger:    logger,
	}, cfg.Payment)
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	program := tea.NewProgram(tui.New(ctx, ctrl, orderID, proof))
	bridge.Attach(program)

	final, err := program.Run()
	cancel()
	ctrl.Close()
	if err != nil {
		return errors.Wrap(err, "run payment page")
	}

	if m, ok := final.(tui.Model); ok && m.Route() != "" {
		fmt.Fprintln(cmd.OutOrStdout(), "->", m.Route())
	}
	if dumpMetrics {
		metrics.Write(cmd.ErrOrStderr())
	}
	return nil
}

func loadConfig(dir string) (*config.Config, error) {
	config.LoadDotEnv(filepath.Join(dir, ".env"))
	return config.LoadConfig(dir)
}

func newPublisher(cfg config.Kafka, logger *slog.Logger) (events.Publisher, func()) {
	if cfg.Broker.URL == "" {
		return events.Nop{}, func() {}
	}

	writer := kafka.NewWriter(cfg)
	return kafka.NewPublisher(writer, logger), func() {
		if err := writer.Close(); err != nil {
			logger.Error("Error closing Kafka writer", "error", err)
		}
	}
}

func readProof(path string) (*model.ProofFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read proof file")
	}

	return &model.ProofFile{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}
