package bleve

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/kart-io/discovery-search/internal/pkg/searchengine/query"
)

// fuzzyEditDistance approximates "AUTO:4,6" for the short tokens users type.
const fuzzyEditDistance = 1

// Translate converts the query tree into a bleve query.
//
// bleve has no filter context or function_score: filters become must
// clauses and weight functions become optional boosted should clauses next
// to the base query, which keeps recall identical and only reorders hits.
func Translate(q query.Query) (blevequery.Query, error) {
	switch v := q.(type) {
	case *query.MatchAllQuery:
		return bleve.NewMatchAllQuery(), nil

	case *query.MatchNoneQuery:
		return bleve.NewMatchNoneQuery(), nil

	case *query.BoolQuery:
		if len(v.Must) == 0 && len(v.Should) == 0 && len(v.Filter) == 0 {
			return bleve.NewMatchAllQuery(), nil
		}

		bq := bleve.NewBooleanQuery()
		for _, clauses := range [][]query.Query{v.Must, v.Filter} {
			for _, c := range clauses {
				tq, err := Translate(c)
				if err != nil {
					return nil, err
				}
				bq.AddMust(tq)
			}
		}
		for _, c := range v.Should {
			tq, err := Translate(c)
			if err != nil {
				return nil, err
			}
			bq.AddShould(tq)
		}
		if v.MinimumShouldMatch > 0 && len(v.Should) > 0 {
			bq.SetMinShould(float64(v.MinimumShouldMatch))
		}
		return bq, nil

	case *query.MultiMatchQuery:
		dq := bleve.NewDisjunctionQuery()
		for _, f := range v.Fields {
			mq := bleve.NewMatchQuery(v.Text)
			mq.SetField(f.Name)
			if f.Boost > 0 {
				mq.SetBoost(f.Boost)
			}
			if v.Fuzziness != "" {
				mq.SetFuzziness(fuzzyEditDistance)
			}
			if v.Operator == "and" {
				mq.SetOperator(blevequery.MatchQueryOperatorAnd)
			}
			dq.AddQuery(mq)
		}
		return dq, nil

	case *query.MatchPhraseQuery:
		pq := bleve.NewMatchPhraseQuery(v.Text)
		pq.SetField(v.Field)
		if v.Boost > 0 {
			pq.SetBoost(v.Boost)
		}
		return pq, nil

	case *query.TermQuery:
		return termQuery(v.Field, v.Value, v.Boost), nil

	case *query.TermsQuery:
		dq := bleve.NewDisjunctionQuery()
		for _, value := range v.Values {
			dq.AddQuery(termQuery(v.Field, value, 0))
		}
		if v.Boost > 0 {
			dq.SetBoost(v.Boost)
		}
		return dq, nil

	case *query.FunctionScoreQuery:
		base, err := Translate(v.Query)
		if err != nil {
			return nil, err
		}

		bq := bleve.NewBooleanQuery()
		bq.AddMust(base)
		for _, fn := range v.Functions {
			fq, err := Translate(fn.Filter)
			if err != nil {
				return nil, err
			}
			if b, ok := fq.(blevequery.BoostableQuery); ok {
				b.SetBoost(fn.Weight)
			}
			bq.AddShould(fq)
		}
		return bq, nil

	default:
		return nil, fmt.Errorf("unsupported query type %T", q)
	}
}

func termQuery(field, value string, boost float64) *blevequery.TermQuery {
	tq := bleve.NewTermQuery(value)
	tq.SetField(field)
	if boost > 0 {
		tq.SetBoost(boost)
	}
	return tq
}
