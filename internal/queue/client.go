package queue

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/conveyor-etl/conveyor/internal/config"
)

// NewClient connects to Valkey and verifies connectivity.
func NewClient(cfg config.ValkeyConfig) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress: []string{cfg.Addr},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	resp := client.Do(context.Background(), client.B().Ping().Build())
	if err := resp.Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	return client, nil
}

// Health exposes transport connectivity for readiness checks.
type Health struct {
	client valkey.Client
}

func NewHealth(client valkey.Client) Health {
	return Health{client: client}
}

func (h Health) Ping(ctx context.Context) error {
	resp := h.client.Do(ctx, h.client.B().Ping().Build())
	if err := resp.Error(); err != nil {
		return fmt.Errorf("ping valkey: %w", err)
	}
	return nil
}
