package elastic

import (
	"sort"

	"github.com/kart-io/discovery-search/internal/pkg/searchengine"
	"github.com/kart-io/discovery-search/pkg/utils/json"
)

// IndexBody renders settings and strict mappings for a schema.
func IndexBody(schema *searchengine.Schema, shards, replicas int) map[string]interface{} {
	analyzers := map[string]interface{}{}
	for _, name := range schema.Analyzers {
		analyzers[name] = map[string]interface{}{
			"type":      "custom",
			"tokenizer": "standard",
			"filter":    []string{"lowercase", "asciifolding"},
		}
	}

	properties := map[string]interface{}{}
	for _, f := range schema.Fields {
		prop := map[string]interface{}{"type": string(f.Kind)}
		if f.Analyzer != "" {
			prop["analyzer"] = f.Analyzer
		}
		if f.TermVectors {
			prop["term_vector"] = "with_positions_offsets"
		}
		properties[f.Name] = prop
	}

	settings := map[string]interface{}{
		"number_of_replicas": replicas,
		"analysis":           map[string]interface{}{"analyzer": analyzers},
	}
	if shards > 0 {
		settings["number_of_shards"] = shards
	}

	return map[string]interface{}{
		"settings": settings,
		"mappings": map[string]interface{}{
			"dynamic":    "strict",
			"properties": properties,
		},
	}
}

// AliasesBody renders an _aliases request.
func AliasesBody(actions []searchengine.AliasAction) map[string]interface{} {
	out := make([]interface{}, 0, len(actions))
	for _, a := range actions {
		out = append(out, map[string]interface{}{
			string(a.Type): map[string]interface{}{"index": a.Index, "alias": a.Alias},
		})
	}
	return map[string]interface{}{"actions": out}
}

// SearchBody renders a _search request.
func SearchBody(req *searchengine.SearchRequest) map[string]interface{} {
	body := map[string]interface{}{
		"query": req.Query.Source(),
		"size":  req.Size,
	}
	if req.TrackTotalHits {
		body["track_total_hits"] = true
	}
	if req.CollapseField != "" {
		body["collapse"] = map[string]interface{}{"field": req.CollapseField}
	}
	if h := req.Highlight; h != nil {
		field := map[string]interface{}{}
		if h.FragmentSize > 0 {
			field["fragment_size"] = h.FragmentSize
		}
		if h.NumberOfFragments > 0 {
			field["number_of_fragments"] = h.NumberOfFragments
		}
		highlight := map[string]interface{}{
			"fields": map[string]interface{}{h.Field: field},
		}
		if h.PreTag != "" {
			highlight["pre_tags"] = []string{h.PreTag}
			highlight["post_tags"] = []string{h.PostTag}
		}
		body["highlight"] = highlight
	}
	return body
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

func (r *bulkResponse) result() *searchengine.BulkResult {
	out := &searchengine.BulkResult{}
	for _, item := range r.Items {
		for _, op := range item {
			if op.Error == nil && op.Status < 300 {
				out.Indexed++
				continue
			}
			failure := searchengine.BulkItemError{ID: op.ID, Status: op.Status}
			if op.Error != nil {
				failure.Type = op.Error.Type
				failure.Reason = op.Error.Reason
			}
			out.Failed = append(out.Failed, failure)
		}
	}
	return out
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID        string              `json:"_id"`
			Score     *float64            `json:"_score"`
			Source    json.RawMessage     `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

func (r *searchResponse) result() *searchengine.SearchResponse {
	out := &searchengine.SearchResponse{
		TookMs: r.Took,
		Total:  r.Hits.Total.Value,
		Hits:   make([]searchengine.Hit, 0, len(r.Hits.Hits)),
	}
	for _, h := range r.Hits.Hits {
		hit := searchengine.Hit{ID: h.ID, Source: h.Source, Highlights: h.Highlight}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		out.Hits = append(out.Hits, hit)
	}
	return out
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
