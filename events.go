package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"payflow/internal/events"
	"payflow/internal/kafka"
	"payflow/internal/logging"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail payment flow outcome events from Kafka",
		RunE:  runEvents,
	}

	cmd.Flags().String("group", "payflow-events-cli", "Kafka consumer group")

	return cmd
}

func runEvents(cmd *cobra.Command, _ []string) error {
	configDir, _ := cmd.Flags().GetString("config")
	group, _ := cmd.Flags().GetString("group")

	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	if cfg.Kafka.Broker.URL == "" {
		return errors.New("kafka.broker.url is not configured")
	}

	logger := logging.GetLogger(cfg.Logs)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := kafka.NewReader(cfg.Kafka, group)
	defer reader.Close()

	out := cmd.OutOrStdout()
	return kafka.ReadFlowEvents(ctx, reader, logger, func(_ context.Context, event events.FlowEvent) error {
		line, err := json.Marshal(event)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(line))
		return err
	})
}
