// Package etcd connects the etcd client backing the etcd reindex lock.
package etcd

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kart-io/discovery-search/pkg/component"
	options "github.com/kart-io/discovery-search/pkg/options/etcd"
)

// Name is the dependency name reported by health checks.
const Name = "etcd"

// Client wraps clientv3.Client.
type Client struct {
	client *clientv3.Client
	opts   options.Options
}

var _ component.Client = (*Client)(nil)

// New creates the client and verifies that the first endpoint answers.
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("etcd options cannot be nil")
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		Username:    opts.Username,
		Password:    opts.Password,
		DialTimeout: opts.DialTimeout,
		Context:     ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	c := &Client{client: cli, opts: *opts}
	if err := c.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return c, nil
}

// Client returns the underlying etcd client.
func (c *Client) Client() *clientv3.Client {
	return c.client
}

// LeaseTTL returns the session lease TTL in seconds.
func (c *Client) LeaseTTL() int64 {
	return c.opts.LeaseTTL
}

// Name returns the dependency name.
func (c *Client) Name() string {
	return Name
}

// Ping queries the status of the first endpoint.
func (c *Client) Ping(ctx context.Context) error {
	endpoints := c.client.Endpoints()
	if len(endpoints) == 0 {
		return fmt.Errorf("etcd: no endpoints configured")
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	if _, err := c.client.Status(pingCtx, endpoints[0]); err != nil {
		return fmt.Errorf("etcd ping failed: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *Client) Close() error {
	return c.client.Close()
}
