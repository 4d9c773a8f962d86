// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"application-board/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client with connection checks and retry logic.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig defines retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClientWithConfig dials the gateway and verifies it with a topology request.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}
	if config.ConnectionTimeout == 0 {
		config.ConnectionTimeout = 10 * time.Second
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{client: zeebeClient, config: config}, nil
}

// GetClient returns the raw Zeebe client for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ExecuteWithRetry runs fn with exponential backoff. Only transient errors are retried.
func ExecuteWithRetry[T any](ctx context.Context, retry *RetryConfig, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if retry == nil {
		retry = DefaultRetryConfig
	}

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !isRetryableZeebeError(err) || attempt >= retry.MaxRetries {
			return zero, mapZeebeError(err, operation, attempt)
		}

		delay := retry.BaseDelay * time.Duration(1<<attempt)
		if delay > retry.MaxDelay {
			delay = retry.MaxDelay
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, fmt.Errorf("operation %s cancelled after %d attempts: %w", operation, attempt+1, ctx.Err())
		}
	}
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"unavailable",
		"unreachable",
		"broken pipe",
		"resource_exhausted",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// mapZeebeError converts gateway errors into StandardErrors. Deadline errors are kept
// recognizable so the status queue reports them as timeouts.
func mapZeebeError(err error, operation string, attempt int) error {
	lowerMsg := strings.ToLower(err.Error())

	enhanced := fmt.Sprintf("zeebe operation '%s' failed", operation)
	if attempt > 0 {
		enhanced += fmt.Sprintf(" after %d attempts", attempt+1)
	}

	switch {
	case strings.Contains(lowerMsg, "deadline exceeded"):
		return fmt.Errorf("%s: %w", enhanced, context.DeadlineExceeded)
	case strings.Contains(lowerMsg, "not found"):
		return errors.NewResourceNotFoundError("zeebe", fmt.Sprintf("%s: %s", enhanced, err.Error()))
	default:
		return errors.NewProcessExecutionFailedError(operation, fmt.Errorf("%s: %w", enhanced, err))
	}
}

// HealthCheck performs a topology request against the broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
