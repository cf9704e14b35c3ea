// Package query is a small typed query tree for the search engine.
//
// Every node renders itself as Elasticsearch query DSL through Source. The
// bleve engine walks the same tree and builds the equivalent bleve query, so
// the compiler is written once for both engines.
package query

import (
	"strconv"
)

// Multi-match types.
const (
	TypeBestFields = "best_fields"
)

// Function score modes.
const (
	ScoreModeSum      = "sum"
	BoostModeMultiply = "multiply"
)

// Query is a node of the query tree.
type Query interface {
	// Source returns the query DSL of the node.
	Source() map[string]interface{}
}

// Field is a field name with an optional boost.
type Field struct {
	Name  string
	Boost float64
}

// String renders "name^boost".
func (f Field) String() string {
	if f.Boost == 0 || f.Boost == 1 {
		return f.Name
	}
	return f.Name + "^" + strconv.FormatFloat(f.Boost, 'f', -1, 64)
}

// MatchAllQuery matches every document.
type MatchAllQuery struct{}

// MatchAll returns a query matching every document.
func MatchAll() *MatchAllQuery { return &MatchAllQuery{} }

// Source implements Query.
func (q *MatchAllQuery) Source() map[string]interface{} {
	return map[string]interface{}{"match_all": map[string]interface{}{}}
}

// MatchNoneQuery matches nothing.
type MatchNoneQuery struct{}

// MatchNone returns a query matching no document.
func MatchNone() *MatchNoneQuery { return &MatchNoneQuery{} }

// Source implements Query.
func (q *MatchNoneQuery) Source() map[string]interface{} {
	return map[string]interface{}{"match_none": map[string]interface{}{}}
}

// BoolQuery combines clauses. Filter clauses never contribute to the score.
type BoolQuery struct {
	Must               []Query
	Should             []Query
	Filter             []Query
	MinimumShouldMatch int
}

// Bool returns an empty bool query.
func Bool() *BoolQuery { return &BoolQuery{} }

// AddMust appends must clauses.
func (q *BoolQuery) AddMust(clauses ...Query) *BoolQuery {
	q.Must = append(q.Must, clauses...)
	return q
}

// AddShould appends should clauses.
func (q *BoolQuery) AddShould(clauses ...Query) *BoolQuery {
	q.Should = append(q.Should, clauses...)
	return q
}

// AddFilter appends filter clauses.
func (q *BoolQuery) AddFilter(clauses ...Query) *BoolQuery {
	q.Filter = append(q.Filter, clauses...)
	return q
}

// SetMinimumShouldMatch sets minimum_should_match.
func (q *BoolQuery) SetMinimumShouldMatch(n int) *BoolQuery {
	q.MinimumShouldMatch = n
	return q
}

// Source implements Query.
func (q *BoolQuery) Source() map[string]interface{} {
	body := map[string]interface{}{}
	if len(q.Must) > 0 {
		body["must"] = sources(q.Must)
	}
	if len(q.Should) > 0 {
		body["should"] = sources(q.Should)
	}
	if len(q.Filter) > 0 {
		body["filter"] = sources(q.Filter)
	}
	if q.MinimumShouldMatch > 0 {
		body["minimum_should_match"] = q.MinimumShouldMatch
	}
	return map[string]interface{}{"bool": body}
}

// MultiMatchQuery runs a match query over several fields.
type MultiMatchQuery struct {
	Text      string
	Fields    []Field
	Type      string
	Operator  string
	Fuzziness string
}

// MultiMatch returns a best_fields multi_match query with the OR operator.
func MultiMatch(text string, fields ...Field) *MultiMatchQuery {
	return &MultiMatchQuery{Text: text, Fields: fields, Type: TypeBestFields, Operator: "or"}
}

// SetFuzziness sets the edit distance, e.g. "AUTO:4,6".
func (q *MultiMatchQuery) SetFuzziness(f string) *MultiMatchQuery {
	q.Fuzziness = f
	return q
}

// Source implements Query.
func (q *MultiMatchQuery) Source() map[string]interface{} {
	fields := make([]string, len(q.Fields))
	for i, f := range q.Fields {
		fields[i] = f.String()
	}

	body := map[string]interface{}{
		"query":  q.Text,
		"fields": fields,
	}
	if q.Type != "" {
		body["type"] = q.Type
	}
	if q.Operator != "" {
		body["operator"] = q.Operator
	}
	if q.Fuzziness != "" {
		body["fuzziness"] = q.Fuzziness
	}
	return map[string]interface{}{"multi_match": body}
}

// MatchPhraseQuery matches an exact phrase on one field.
type MatchPhraseQuery struct {
	Field string
	Text  string
	Boost float64
}

// MatchPhrase returns a match_phrase query.
func MatchPhrase(field, text string, boost float64) *MatchPhraseQuery {
	return &MatchPhraseQuery{Field: field, Text: text, Boost: boost}
}

// Source implements Query.
func (q *MatchPhraseQuery) Source() map[string]interface{} {
	body := map[string]interface{}{"query": q.Text}
	if q.Boost != 0 {
		body["boost"] = q.Boost
	}
	return map[string]interface{}{"match_phrase": map[string]interface{}{q.Field: body}}
}

// TermQuery matches an exact keyword value.
type TermQuery struct {
	Field string
	Value string
	Boost float64
}

// Term returns a term query.
func Term(field, value string, boost float64) *TermQuery {
	return &TermQuery{Field: field, Value: value, Boost: boost}
}

// Source implements Query.
func (q *TermQuery) Source() map[string]interface{} {
	if q.Boost == 0 {
		return map[string]interface{}{"term": map[string]interface{}{q.Field: q.Value}}
	}
	return map[string]interface{}{
		"term": map[string]interface{}{
			q.Field: map[string]interface{}{"value": q.Value, "boost": q.Boost},
		},
	}
}

// TermsQuery matches any of several keyword values.
type TermsQuery struct {
	Field  string
	Values []string
	Boost  float64
}

// Terms returns a terms query.
func Terms(field string, values []string, boost float64) *TermsQuery {
	return &TermsQuery{Field: field, Values: values, Boost: boost}
}

// Source implements Query.
func (q *TermsQuery) Source() map[string]interface{} {
	body := map[string]interface{}{q.Field: q.Values}
	if q.Boost != 0 {
		body["boost"] = q.Boost
	}
	return map[string]interface{}{"terms": body}
}

// WeightFunction multiplies the score of documents matching Filter.
type WeightFunction struct {
	Filter Query
	Weight float64
}

// FunctionScoreQuery reorders the hits of Query without changing recall.
type FunctionScoreQuery struct {
	Query     Query
	Functions []WeightFunction
	ScoreMode string
	BoostMode string
}

// FunctionScore returns a function_score query summing the function weights
// and multiplying them into the base score.
func FunctionScore(q Query, functions ...WeightFunction) *FunctionScoreQuery {
	return &FunctionScoreQuery{
		Query:     q,
		Functions: functions,
		ScoreMode: ScoreModeSum,
		BoostMode: BoostModeMultiply,
	}
}

// Source implements Query.
func (q *FunctionScoreQuery) Source() map[string]interface{} {
	functions := make([]interface{}, len(q.Functions))
	for i, fn := range q.Functions {
		functions[i] = map[string]interface{}{
			"filter": fn.Filter.Source(),
			"weight": fn.Weight,
		}
	}

	return map[string]interface{}{
		"function_score": map[string]interface{}{
			"query":      q.Query.Source(),
			"functions":  functions,
			"score_mode": q.ScoreMode,
			"boost_mode": q.BoostMode,
		},
	}
}

func sources(queries []Query) []interface{} {
	out := make([]interface{}, len(queries))
	for i, q := range queries {
		out[i] = q.Source()
	}
	return out
}
