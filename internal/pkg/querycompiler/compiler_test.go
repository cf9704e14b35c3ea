package querycompiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/discovery-search/internal/pkg/searchengine/query"
	"github.com/kart-io/discovery-search/pkg/utils/json"
)

// baseBool unwraps an optional function_score.
func baseBool(t *testing.T, q query.Query) *query.BoolQuery {
	t.Helper()
	if fs, ok := q.(*query.FunctionScoreQuery); ok {
		q = fs.Query
	}
	b, ok := q.(*query.BoolQuery)
	require.True(t, ok, "expected bool query, got %T", q)
	return b
}

func stageTerms(b *query.BoolQuery) []string {
	var stages []string
	for _, c := range b.Should {
		if term, ok := c.(*query.TermQuery); ok && term.Field == FieldStage {
			stages = append(stages, term.Value)
		}
	}
	return stages
}

func TestCompileNoText(t *testing.T) {
	q := Compile(Params{})
	assert.IsType(t, &query.MatchAllQuery{}, q)

	q = Compile(Params{Text: "   ", Filters: Filters{Stages: []string{"seed"}}})
	b := baseBool(t, q)
	assert.Empty(t, b.Should)
	require.Len(t, b.Filter, 1)

	data, err := json.Marshal(q.Source())
	require.NoError(t, err)
	assert.JSONEq(t, `{"bool":{"filter":[{"bool":{"should":[{"term":{"stage":"seed"}}],"minimum_should_match":1}}]}}`, string(data))
}

func TestCompileTooShort(t *testing.T) {
	q := Compile(Params{Text: " a "})
	b := baseBool(t, q)
	require.Len(t, b.Must, 1)
	assert.IsType(t, &query.MatchNoneQuery{}, b.Must[0])

	assert.True(t, Params{Text: "a"}.IsTooShort())
	assert.True(t, Params{Text: "ä"}.IsTooShort())
	assert.False(t, Params{Text: ""}.IsTooShort())
	assert.False(t, Params{Text: "ai"}.IsTooShort())
}

func TestCompileFullQuery(t *testing.T) {
	q := Compile(Params{Text: "Climate-Tech seed"})
	b := baseBool(t, q)

	assert.Equal(t, 1, b.MinimumShouldMatch)
	require.GreaterOrEqual(t, len(b.Should), 3)

	mm, ok := b.Should[0].(*query.MultiMatchQuery)
	require.True(t, ok)
	assert.Equal(t, "Climate-Tech seed", mm.Text)
	assert.Empty(t, mm.Fuzziness)

	phrase, ok := b.Should[1].(*query.MatchPhraseQuery)
	require.True(t, ok)
	assert.Equal(t, FieldName, phrase.Field)

	fuzzy, ok := b.Should[2].(*query.MultiMatchQuery)
	require.True(t, ok)
	assert.Equal(t, "AUTO:4,6", fuzzy.Fuzziness)

	var industries, countries []string
	for _, c := range b.Should {
		term, ok := c.(*query.TermQuery)
		if !ok {
			continue
		}
		switch term.Field {
		case FieldIndustries:
			industries = append(industries, term.Value)
		case FieldCountry:
			countries = append(countries, term.Value)
		}
	}
	assert.Equal(t, []string{"climate_tech", "seed"}, industries)
	assert.Equal(t, []string{"CLIMATE-TECH", "SEED"}, countries)
	assert.Equal(t, []string{"seed"}, stageTerms(b))
}

func TestNormalizeStage(t *testing.T) {
	tests := []struct {
		token string
		want  string
		ok    bool
	}{
		{"preseed", "pre-seed", true},
		{"PreSeed", "pre-seed", true},
		{"pre-seed", "pre-seed", true},
		{"Series-A", "series-a", true},
		{"seed", "seed", true},
		{"growth", "", false},
		{"series-d", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := NormalizeStage(tt.token)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileStageBoost(t *testing.T) {
	b := baseBool(t, Compile(Params{Text: "preseed fintech"}))
	require.Equal(t, []string{"pre-seed"}, stageTerms(b))

	for _, c := range b.Should {
		if term, ok := c.(*query.TermQuery); ok && term.Field == FieldStage {
			assert.Equal(t, float64(10), term.Boost)
		}
	}

	b = baseBool(t, Compile(Params{Text: "growth fintech"}))
	assert.Empty(t, stageTerms(b))
}

func TestCompileKeywordExpansion(t *testing.T) {
	b := baseBool(t, Compile(Params{Text: "startups in the nordics"}))

	var expanded *query.TermsQuery
	for _, c := range b.Should {
		if terms, ok := c.(*query.TermsQuery); ok {
			expanded = terms
		}
	}
	require.NotNil(t, expanded)
	assert.Equal(t, FieldCountry, expanded.Field)
	assert.Equal(t, []string{"FI", "SE", "NO", "DK"}, expanded.Values)

	// 文本匹配仍然存在
	_, ok := b.Should[0].(*query.MultiMatchQuery)
	assert.True(t, ok)
}

func TestExpandCountries(t *testing.T) {
	assert.Nil(t, ExpandCountries("fintech"))
	assert.Equal(t, []string{"FI", "SE", "NO", "DE"}, ExpandCountries("European investors"))
	assert.Equal(t, []string{"FI", "SE", "NO", "DK", "DE"}, ExpandCountries("nordic and europe"))
}

func TestCompileIntentBoosts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"no intent", "battery storage", nil},
		{"founder boosts person", "fintech founder", []string{"person"}},
		{"investor boosts person and investor", "investor", []string{"person", "investor"}},
		{"plural investors only investor", "climate investors", []string{"investor"}},
		{"startup substring", "startups in the nordics", []string{"startup"}},
		{"workshop boosts event", "AI workshop", []string{"event"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Compile(Params{Text: tt.text})
			fs, ok := q.(*query.FunctionScoreQuery)
			if tt.want == nil {
				assert.False(t, ok)
				assert.IsType(t, &query.BoolQuery{}, q)
				return
			}

			require.True(t, ok)
			assert.Equal(t, query.ScoreModeSum, fs.ScoreMode)
			assert.Equal(t, query.BoostModeMultiply, fs.BoostMode)

			var got []string
			for _, fn := range fs.Functions {
				assert.Equal(t, float64(2), fn.Weight)
				got = append(got, fn.Filter.(*query.TermQuery).Value)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildFilters(t *testing.T) {
	filters := BuildFilters(Filters{
		Type:       "startup",
		Industries: []string{"fintech", "climate_tech"},
		Countries:  []string{"FI"},
	})
	require.Len(t, filters, 3)

	term, ok := filters[0].(*query.TermQuery)
	require.True(t, ok)
	assert.Equal(t, FieldEntityType, term.Field)

	industries, ok := filters[1].(*query.BoolQuery)
	require.True(t, ok)
	assert.Len(t, industries.Should, 2)
	assert.Equal(t, 1, industries.MinimumShouldMatch)

	assert.Empty(t, BuildFilters(Filters{}))
	assert.True(t, Filters{}.IsEmpty())
}

func TestBuildFiltersNormalizesValues(t *testing.T) {
	tests := []struct {
		name   string
		in     Filters
		field  string
		values []string
	}{
		{name: "lowercase country", in: Filters{Countries: []string{"fi", "Se"}}, field: FieldCountry, values: []string{"FI", "SE"}},
		{name: "blank values dropped", in: Filters{Countries: []string{" ", " no "}}, field: FieldCountry, values: []string{"NO"}},
		{name: "industry case kept", in: Filters{Industries: []string{"Fintech"}}, field: FieldIndustries, values: []string{"Fintech"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters := BuildFilters(tt.in)
			require.Len(t, filters, 1)
			b, ok := filters[0].(*query.BoolQuery)
			require.True(t, ok)

			var got []string
			for _, q := range b.Should {
				term, ok := q.(*query.TermQuery)
				require.True(t, ok)
				assert.Equal(t, tt.field, term.Field)
				got = append(got, term.Value)
			}
			assert.Equal(t, tt.values, got)
		})
	}

	assert.Empty(t, BuildFilters(Filters{Countries: []string{"  "}}))
}

func TestCompileKeepsFiltersWithText(t *testing.T) {
	b := baseBool(t, Compile(Params{Text: "fintech", Filters: Filters{Type: "investor"}}))
	require.Len(t, b.Filter, 1)
}
