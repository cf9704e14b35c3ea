package bleve

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/kart-io/discovery-search/internal/pkg/searchengine"
)

// buildMapping converts the engine neutral schema into a static bleve
// mapping. Custom analyzers use the unicode tokenizer and lowercase filter.
func buildMapping(schema *searchengine.Schema) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	for _, name := range schema.Analyzers {
		err := im.AddCustomAnalyzer(name, map[string]interface{}{
			"type":          custom.Name,
			"tokenizer":     unicode.Name,
			"token_filters": []string{lowercase.Name},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add analyzer %s: %w", name, err)
		}
	}

	doc := bleve.NewDocumentStaticMapping()
	for _, f := range schema.Fields {
		var fm *mapping.FieldMapping
		switch f.Kind {
		case searchengine.KindKeyword:
			fm = bleve.NewKeywordFieldMapping()
		case searchengine.KindText:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = f.Analyzer
		case searchengine.KindInteger:
			fm = bleve.NewNumericFieldMapping()
		case searchengine.KindBoolean:
			fm = bleve.NewBooleanFieldMapping()
		default:
			return nil, fmt.Errorf("unsupported field kind %q for %s", f.Kind, f.Name)
		}

		// 高亮需要存储原文和词向量
		fm.Store = f.TermVectors
		fm.IncludeTermVectors = f.TermVectors
		fm.IncludeInAll = false
		doc.AddFieldMappingsAt(f.Name, fm)
	}

	source := bleve.NewTextFieldMapping()
	source.Index = false
	source.Store = true
	source.IncludeInAll = false
	source.IncludeTermVectors = false
	source.DocValues = false
	doc.AddFieldMappingsAt(sourceField, source)

	im.DefaultMapping = doc
	return im, nil
}
