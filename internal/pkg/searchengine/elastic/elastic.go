// Package elastic implements searchengine.Engine on Elasticsearch.
package elastic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kart-io/discovery-search/internal/pkg/searchengine"
	"github.com/kart-io/discovery-search/pkg/component/elasticsearch"
	"github.com/kart-io/discovery-search/pkg/utils/json"
)

var _ searchengine.Engine = (*Engine)(nil)

// Engine talks to Elasticsearch through the official client.
type Engine struct {
	client   *elasticsearch.Client
	es       *es.Client
	timeout  time.Duration
	shards   int
	replicas int
}

// New creates the engine on top of a connected client.
func New(client *elasticsearch.Client) *Engine {
	opts := client.Options()
	return &Engine{
		client:   client,
		es:       client.ES(),
		timeout:  opts.RequestTimeout,
		shards:   opts.Shards,
		replicas: opts.Replicas,
	}
}

// Name implements searchengine.Engine.
func (e *Engine) Name() string {
	return elasticsearch.Name
}

// Ping implements searchengine.Engine.
func (e *Engine) Ping(ctx context.Context) error {
	return e.client.Ping(ctx)
}

// Close implements searchengine.Engine.
func (e *Engine) Close() error {
	return e.client.Close()
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// CreateIndex implements searchengine.Engine.
func (e *Engine) CreateIndex(ctx context.Context, name string, schema *searchengine.Schema) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	body, err := json.Marshal(IndexBody(schema, e.shards, e.replicas))
	if err != nil {
		return fmt.Errorf("failed to encode index body: %w", err)
	}

	res, err := e.es.Indices.Create(name,
		e.es.Indices.Create.WithContext(ctx),
		e.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == http.StatusBadRequest && errorType(res) == "resource_already_exists_exception" {
			return fmt.Errorf("create index %s: %w", name, searchengine.ErrIndexExists)
		}
		return responseError("create index "+name, res)
	}
	return nil
}

// BulkIndex implements searchengine.Engine.
func (e *Engine) BulkIndex(ctx context.Context, index string, docs []searchengine.Document, refresh bool) (*searchengine.BulkResult, error) {
	if len(docs) == 0 {
		return &searchengine.BulkResult{}, nil
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		meta := map[string]interface{}{"index": map[string]interface{}{"_id": doc.ID}}
		if err := enc.Encode(meta); err != nil {
			return nil, fmt.Errorf("failed to encode bulk meta: %w", err)
		}
		if err := enc.Encode(doc.Body); err != nil {
			return nil, fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
		}
	}

	opts := []func(*esapi.BulkRequest){
		e.es.Bulk.WithContext(ctx),
		e.es.Bulk.WithIndex(index),
	}
	if refresh {
		opts = append(opts, e.es.Bulk.WithRefresh("true"))
	}

	res, err := e.es.Bulk(&buf, opts...)
	if err != nil {
		return nil, fmt.Errorf("bulk index %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("bulk index "+index, res)
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode bulk response: %w", err)
	}
	return parsed.result(), nil
}

// Refresh implements searchengine.Engine.
func (e *Engine) Refresh(ctx context.Context, index string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.es.Indices.Refresh(
		e.es.Indices.Refresh.WithContext(ctx),
		e.es.Indices.Refresh.WithIndex(index),
	)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("refresh "+index, res)
	}
	return nil
}

// UpdateAliases implements searchengine.Engine. All actions travel in one
// _aliases request, which Elasticsearch applies atomically.
func (e *Engine) UpdateAliases(ctx context.Context, actions []searchengine.AliasAction) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	body, err := json.Marshal(AliasesBody(actions))
	if err != nil {
		return fmt.Errorf("failed to encode alias actions: %w", err)
	}

	res, err := e.es.Indices.UpdateAliases(bytes.NewReader(body),
		e.es.Indices.UpdateAliases.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("update aliases: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("update aliases", res)
	}
	return nil
}

// DeleteIndex implements searchengine.Engine.
func (e *Engine) DeleteIndex(ctx context.Context, name string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.es.Indices.Delete([]string{name},
		e.es.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete index %s: %w", name, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("delete index %s: %w", name, searchengine.ErrIndexNotFound)
	}
	if res.IsError() {
		return responseError("delete index "+name, res)
	}
	return nil
}

// GetIndicesForAlias implements searchengine.Engine.
func (e *Engine) GetIndicesForAlias(ctx context.Context, alias string) ([]string, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.es.Indices.GetAlias(
		e.es.Indices.GetAlias.WithContext(ctx),
		e.es.Indices.GetAlias.WithName(alias),
	)
	if err != nil {
		return nil, fmt.Errorf("get alias %s: %w", alias, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, searchengine.ErrAliasNotFound
	}
	if res.IsError() {
		return nil, responseError("get alias "+alias, res)
	}

	var parsed map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode alias response: %w", err)
	}
	return sortedKeys(parsed), nil
}

// Search implements searchengine.Engine.
func (e *Engine) Search(ctx context.Context, req *searchengine.SearchRequest) (*searchengine.SearchResponse, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	body, err := json.Marshal(SearchBody(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode search body: %w", err)
	}

	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(req.Index),
		e.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", req.Index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search "+req.Index, res)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return parsed.result(), nil
}

// errorType reads error.type from an error response without consuming it
// for responseError.
func errorType(res *esapi.Response) string {
	data, _ := io.ReadAll(res.Body)
	res.Body = io.NopCloser(bytes.NewReader(data))

	var parsed errorResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ""
	}
	return parsed.Error.Type
}

func responseError(op string, res *esapi.Response) error {
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))

	var parsed errorResponse
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Type != "" {
		return fmt.Errorf("%s: [%d] %s: %s", op, res.StatusCode, parsed.Error.Type, parsed.Error.Reason)
	}
	return fmt.Errorf("%s: [%d] %s", op, res.StatusCode, bytes.TrimSpace(data))
}
