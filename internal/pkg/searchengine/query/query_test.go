package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/discovery-search/pkg/utils/json"
)

func TestFieldString(t *testing.T) {
	assert.Equal(t, "content", Field{Name: "content"}.String())
	assert.Equal(t, "name^4", Field{Name: "name", Boost: 4}.String())
	assert.Equal(t, "title^1.5", Field{Name: "title", Boost: 1.5}.String())
}

func TestBoolSourceOmitsEmptyClauses(t *testing.T) {
	q := Bool().AddFilter(Term("entity_type", "startup", 0))

	data, err := json.Marshal(q.Source())
	assert.NoError(t, err)
	assert.JSONEq(t, `{"bool":{"filter":[{"term":{"entity_type":"startup"}}]}}`, string(data))
}

func TestFunctionScoreSource(t *testing.T) {
	q := FunctionScore(
		Bool().AddShould(MatchPhrase("name", "acme", 6)).SetMinimumShouldMatch(1),
		WeightFunction{Filter: Term("entity_type", "person", 0), Weight: 2},
	)

	data, err := json.Marshal(q.Source())
	assert.NoError(t, err)
	assert.JSONEq(t, `{
		"function_score": {
			"query": {"bool": {"should": [{"match_phrase": {"name": {"query": "acme", "boost": 6}}}], "minimum_should_match": 1}},
			"functions": [{"filter": {"term": {"entity_type": "person"}}, "weight": 2}],
			"score_mode": "sum",
			"boost_mode": "multiply"
		}
	}`, string(data))
}

func TestMultiMatchAndTermsSource(t *testing.T) {
	mm := MultiMatch("clmate", Field{"name", 4}, Field{"title", 2}).SetFuzziness("AUTO:4,6")
	data, err := json.Marshal(mm.Source())
	assert.NoError(t, err)
	assert.JSONEq(t, `{"multi_match":{"query":"clmate","fields":["name^4","title^2"],"type":"best_fields","operator":"or","fuzziness":"AUTO:4,6"}}`, string(data))

	terms := Terms("country", []string{"FI", "SE"}, 2)
	data, err = json.Marshal(terms.Source())
	assert.NoError(t, err)
	assert.JSONEq(t, `{"terms":{"country":["FI","SE"],"boost":2}}`, string(data))

	term := Term("stage", "seed", 10)
	data, err = json.Marshal(term.Source())
	assert.NoError(t, err)
	assert.JSONEq(t, `{"term":{"stage":{"value":"seed","boost":10}}}`, string(data))
}
