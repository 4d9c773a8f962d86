// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"application-board/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchClient wraps the Elasticsearch client holding the activity index.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

// NewElasticsearch creates a client. transport may be nil; tests pass a fake RoundTripper.
func NewElasticsearch(cfg config.ElasticsearchConfig, transport http.RoundTripper) (*ElasticsearchClient, error) {
	addresses := cfg.Addresses
	if len(addresses) == 0 && cfg.URL != "" {
		addresses = []string{cfg.URL}
	}

	esCfg := elasticsearch.Config{
		Addresses: addresses,
		Transport: transport,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: es}, nil
}

func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}

// EnsureIndex creates index with mapping unless it already exists.
func (c *ElasticsearchClient) EnsureIndex(ctx context.Context, index, mapping string) error {
	exists, err := c.Client.Indices.Exists([]string{index}, c.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch index check failed: %w", err)
	}
	exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	res, err := c.Client.Indices.Create(index,
		c.Client.Indices.Create.WithContext(ctx),
		c.Client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index create failed: %w", err)
	}
	defer res.Body.Close()

	// 400 resource_already_exists_exception loses a race with another process; fine.
	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("elasticsearch index create error: %s", res.Status())
	}
	return nil
}
