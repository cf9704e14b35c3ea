// Package elasticsearch builds the go-elasticsearch client used by the
// elasticsearch search engine adapter.
package elasticsearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/kart-io/discovery-search/pkg/component"
	options "github.com/kart-io/discovery-search/pkg/options/elasticsearch"
)

// Name is the dependency name reported by health checks.
const Name = "search_engine"

// Client wraps es.Client.
type Client struct {
	es   *es.Client
	opts *options.Options
}

var _ component.Client = (*Client)(nil)

// New creates the client. It does not contact the cluster; call Ping.
func New(opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("elasticsearch options cannot be nil")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev clusters
	}

	cli, err := es.NewClient(es.Config{
		Addresses:  opts.Addresses,
		Username:   opts.Username,
		Password:   opts.Password,
		APIKey:     opts.APIKey,
		MaxRetries: opts.MaxRetries,
		Transport:  transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &Client{es: cli, opts: opts}, nil
}

// ES returns the underlying client.
func (c *Client) ES() *es.Client {
	return c.es
}

// Options returns the connection options.
func (c *Client) Options() *options.Options {
	return c.opts
}

// Name returns the dependency name.
func (c *Client) Name() string {
	return Name
}

// Ping checks that the cluster answers within 3s.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := c.es.Ping(c.es.Ping.WithContext(pingCtx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

// Close is a no-op; the HTTP transport has no persistent session.
func (c *Client) Close() error {
	return nil
}
