package searchengine

import (
	"github.com/kart-io/discovery-search/internal/pkg/querycompiler"
)

// Analyzer names used by the chunk schema.
const (
	AnalyzerName    = "discovery_name_analyzer"
	AnalyzerContent = "discovery_content_analyzer"
)

// FieldKind is the indexed type of a field.
type FieldKind string

// Field kinds.
const (
	KindKeyword FieldKind = "keyword"
	KindText    FieldKind = "text"
	KindInteger FieldKind = "integer"
	KindBoolean FieldKind = "boolean"
)

// FieldSpec describes one indexed field.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Analyzer string
	// TermVectors stores positions and offsets for highlighting.
	TermVectors bool
}

// Schema is the engine neutral mapping of an index. Documents carrying
// fields outside the schema are rejected.
type Schema struct {
	Fields []FieldSpec
	// Analyzers are custom analyzers: standard tokenizer, lowercase and
	// ascii folding.
	Analyzers []string
}

// Field returns the spec of a field.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ChunkSchema returns the schema of the chunk index.
func ChunkSchema() *Schema {
	return &Schema{
		Analyzers: []string{AnalyzerName, AnalyzerContent},
		Fields: []FieldSpec{
			{Name: querycompiler.FieldEntityID, Kind: KindKeyword},
			{Name: querycompiler.FieldEntityType, Kind: KindKeyword},
			{Name: "chunk_index", Kind: KindInteger},
			{Name: "is_header_chunk", Kind: KindBoolean},
			{Name: querycompiler.FieldName, Kind: KindText, Analyzer: AnalyzerName},
			{Name: querycompiler.FieldTitle, Kind: KindText, Analyzer: AnalyzerName},
			{Name: querycompiler.FieldContent, Kind: KindText, Analyzer: AnalyzerContent, TermVectors: true},
			{Name: querycompiler.FieldCountry, Kind: KindKeyword},
			{Name: querycompiler.FieldIndustries, Kind: KindKeyword},
			{Name: querycompiler.FieldTopics, Kind: KindKeyword},
			{Name: querycompiler.FieldStage, Kind: KindKeyword},
			{Name: querycompiler.FieldEventType, Kind: KindKeyword},
		},
	}
}
