// Package querycompiler compiles user search parameters into a ranked,
// filtered query over the chunk index.
package querycompiler

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/discovery-search/internal/model"
	"github.com/kart-io/discovery-search/internal/pkg/searchengine/query"
)

// Indexed field names.
const (
	FieldEntityID   = "entity_id"
	FieldEntityType = "entity_type"
	FieldName       = "name"
	FieldTitle      = "title"
	FieldContent    = "content"
	FieldCountry    = "country"
	FieldIndustries = "industries"
	FieldTopics     = "topics"
	FieldStage      = "stage"
	FieldEventType  = "event_type"
)

// Ranking parameters.
const (
	MinQueryLength = 2

	phraseBoost    = 6
	facetTermBoost = 3
	countryBoost   = 2
	eventTypeBoost = 2
	stageBoost     = 10
	intentWeight   = 2

	fuzziness = "AUTO:4,6"
)

var (
	textFields = []query.Field{
		{Name: FieldName, Boost: 4},
		{Name: FieldTitle, Boost: 2},
		{Name: FieldContent},
	}
	fuzzyFields = []query.Field{
		{Name: FieldName, Boost: 4},
		{Name: FieldTitle, Boost: 2},
	}

	nordicCountries   = []string{"FI", "SE", "NO", "DK"}
	europeanCountries = []string{"FI", "SE", "NO", "DE"}

	knownStages = map[string]struct{}{
		"pre-seed": {}, "seed": {}, "series-a": {}, "series-b": {}, "series-c": {},
	}

	personIntent = map[string]struct{}{
		"founder": {}, "ceo": {}, "partner": {}, "engineer": {}, "investor": {},
	}
	eventIntent = map[string]struct{}{
		"workshop": {}, "talk": {}, "event": {},
	}
)

// Filters are the explicit facet constraints of a search. Values of the same
// facet are ORed, different facets are ANDed.
type Filters struct {
	Type       string   `json:"type,omitempty" form:"type" validate:"omitempty,entitytype"`
	Industries []string `json:"industries,omitempty" form:"industry" validate:"max=20,dive,facetvalue"`
	Countries  []string `json:"countries,omitempty" form:"country" validate:"max=20,dive,countrycode"`
	Stages     []string `json:"stages,omitempty" form:"stage" validate:"max=10,dive,facetvalue"`
}

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return f.Type == "" && len(f.Industries) == 0 && len(f.Countries) == 0 && len(f.Stages) == 0
}

// Normalized returns the filters as they are compiled into the query:
// values trimmed, blanks dropped and country codes upper-cased.
func (f Filters) Normalized() Filters {
	clean := func(values []string, fn func(string) string) []string {
		if len(values) == 0 {
			return nil
		}
		out := make([]string, 0, len(values))
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, fn(v))
			}
		}
		return out
	}
	keep := func(v string) string { return v }

	return Filters{
		Type:       strings.TrimSpace(f.Type),
		Industries: clean(f.Industries, keep),
		Countries:  clean(f.Countries, strings.ToUpper),
		Stages:     clean(f.Stages, keep),
	}
}

// Params are the user search parameters.
type Params struct {
	Text string `json:"q,omitempty" form:"q" validate:"max=200"`
	Filters
}

// TrimmedText returns the free text without surrounding whitespace.
func (p Params) TrimmedText() string {
	return strings.TrimSpace(p.Text)
}

// IsTooShort reports whether the free text is present but below the
// minimum length. Such queries return an empty result.
func (p Params) IsTooShort() bool {
	n := utf8.RuneCountInString(p.TrimmedText())
	return n > 0 && n < MinQueryLength
}

// NormalizeStage maps a token to the funding stage vocabulary. The second
// return value is false for unknown tokens.
func NormalizeStage(token string) (string, bool) {
	lower := strings.ToLower(token)
	if lower == "preseed" {
		return "pre-seed", true
	}
	if _, ok := knownStages[lower]; ok {
		return lower, true
	}
	return "", false
}

// ExpandCountries returns the country codes implied by region keywords.
func ExpandCountries(text string) []string {
	lower := strings.ToLower(text)

	var codes []string
	if strings.Contains(lower, "nordic") {
		codes = appendUnique(codes, nordicCountries...)
	}
	if strings.Contains(lower, "europe") {
		codes = appendUnique(codes, europeanCountries...)
	}
	return codes
}

// Compile builds the query for params.
func Compile(params Params) query.Query {
	filters := BuildFilters(params.Filters)
	text := params.TrimmedText()

	if text == "" {
		if len(filters) == 0 {
			return query.MatchAll()
		}
		return query.Bool().AddFilter(filters...)
	}

	// 过短的查询视为噪声
	if utf8.RuneCountInString(text) < MinQueryLength {
		return query.Bool().AddMust(query.MatchNone())
	}

	tokens := strings.Fields(strings.ToLower(text))

	base := query.Bool().
		AddShould(
			query.MultiMatch(text, textFields...),
			query.MatchPhrase(FieldName, text, phraseBoost),
			query.MultiMatch(text, fuzzyFields...).SetFuzziness(fuzziness),
		).
		SetMinimumShouldMatch(1).
		AddFilter(filters...)

	for _, tok := range tokens {
		facet := strings.ReplaceAll(tok, "-", "_")
		base.AddShould(
			query.Term(FieldIndustries, facet, facetTermBoost),
			query.Term(FieldTopics, facet, facetTermBoost),
		)
	}
	for _, tok := range tokens {
		if stage, ok := NormalizeStage(tok); ok {
			base.AddShould(query.Term(FieldStage, stage, stageBoost))
		}
	}
	for _, tok := range tokens {
		base.AddShould(
			query.Term(FieldCountry, strings.ToUpper(tok), countryBoost),
			query.Term(FieldEventType, tok, eventTypeBoost),
		)
	}
	if codes := ExpandCountries(text); len(codes) > 0 {
		base.AddShould(query.Terms(FieldCountry, codes, countryBoost))
	}

	functions := intentFunctions(tokens)
	if len(functions) == 0 {
		return base
	}
	return query.FunctionScore(base, functions...)
}

// BuildFilters returns the non-scoring constraint layer.
func BuildFilters(f Filters) []query.Query {
	var filters []query.Query
	// 国家字段按大写存储
	f = f.Normalized()

	if f.Type != "" {
		filters = append(filters, query.Term(FieldEntityType, f.Type, 0))
	}
	if q := anyOf(FieldIndustries, f.Industries); q != nil {
		filters = append(filters, q)
	}
	if q := anyOf(FieldCountry, f.Countries); q != nil {
		filters = append(filters, q)
	}
	if q := anyOf(FieldStage, f.Stages); q != nil {
		filters = append(filters, q)
	}
	return filters
}

func anyOf(field string, values []string) query.Query {
	if len(values) == 0 {
		return nil
	}
	q := query.Bool().SetMinimumShouldMatch(1)
	for _, v := range values {
		q.AddShould(query.Term(field, v, 0))
	}
	return q
}

// intentFunctions boosts categories the query hints at. The weights only
// reorder hits, recall stays with the should clause.
func intentFunctions(tokens []string) []query.WeightFunction {
	var person, investor, startup, event bool
	for _, tok := range tokens {
		if _, ok := personIntent[tok]; ok {
			person = true
		}
		if strings.Contains(tok, "investor") {
			investor = true
		}
		if strings.Contains(tok, "startup") {
			startup = true
		}
		if _, ok := eventIntent[tok]; ok {
			event = true
		}
	}

	var functions []query.WeightFunction
	boost := func(entityType string) {
		functions = append(functions, query.WeightFunction{
			Filter: query.Term(FieldEntityType, entityType, 0),
			Weight: intentWeight,
		})
	}
	if person {
		boost(model.EntityPerson)
	}
	if investor {
		boost(model.EntityInvestor)
	}
	if startup {
		boost(model.EntityStartup)
	}
	if event {
		boost(model.EntityEvent)
	}
	return functions
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
