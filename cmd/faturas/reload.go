package main

import (
	"errors"

	"github.com/spf13/cobra"

	"faturas/internal/amqp"
	"faturas/internal/log"
)

func reloadCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask running servers to reload their dataset over AMQP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := configure(cmd)
			if err != nil {
				return err
			}
			if !cfg.AMQPEnabled() {
				return errors.New("AMQP_URL is not set")
			}
			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPReloadKey, logger.WithComponent(log.ComponentAMQP))
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.PublishReloadRequest(cmd.Context(), reason); err != nil {
				return err
			}
			logger.Info("Reload request published", log.FieldOperation, log.OpPublish, "key", cfg.AMQPReloadKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual", "reason recorded with the request")
	return cmd
}
