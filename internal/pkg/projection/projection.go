// Package projection maps entities of the system of record to the chunk
// documents stored in the search engine.
package projection

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/discovery-search/internal/model"
	"github.com/kart-io/discovery-search/internal/pkg/chunk"
)

// maxTitleFromDescription 描述首行作为标题的最大长度
const maxTitleFromDescription = 200

// ChunkDocument is one indexed document. Entity level fields are repeated on
// every chunk so that filters and display work on any hit.
type ChunkDocument struct {
	EntityID      string   `json:"entity_id"`
	EntityType    string   `json:"entity_type"`
	ChunkIndex    int      `json:"chunk_index"`
	IsHeaderChunk bool     `json:"is_header_chunk"`
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Country       *string  `json:"country"`
	Industries    []string `json:"industries"`
	Topics        []string `json:"topics"`
	Stage         *string  `json:"stage"`
	EventType     *string  `json:"event_type"`
}

// ID returns the persistent document identity.
func (d *ChunkDocument) ID() string {
	return DocumentID(d.EntityID, d.ChunkIndex)
}

// Options controls chunking of the description.
type Options struct {
	MaxChars     int
	OverlapChars int
}

// DefaultOptions returns the default chunking window.
func DefaultOptions() Options {
	return Options{MaxChars: chunk.DefaultMaxChars, OverlapChars: chunk.DefaultOverlapChars}
}

// DocumentID 文档 ID 由实体 ID 与片段序号拼接，重复索引时覆盖而不是新增。
func DocumentID(entityID string, chunkIndex int) string {
	return entityID + "_" + strconv.Itoa(chunkIndex)
}

// BuildTitle derives the display title of an entity.
//
//	person:  "<role> at <company>", role alone, or company alone
//	event:   event type
//	others:  first description line when at most 200 characters
//
// Everything else falls back to the entity name.
func BuildTitle(e *model.Entity) string {
	role := model.StringValue(e.RoleTitle)
	company := model.StringValue(e.CompanyName)

	if e.EntityType == model.EntityPerson {
		switch {
		case role != "" && company != "":
			return role + " at " + company
		case role != "":
			return role
		case company != "":
			return company
		}
	}

	if e.EntityType == model.EntityEvent {
		if eventType := model.StringValue(e.EventType); eventType != "" {
			return eventType
		}
	}

	if desc := model.StringValue(e.Description); desc != "" {
		firstLine, _, _ := strings.Cut(desc, "\n")
		firstLine = strings.TrimSpace(firstLine)
		if n := utf8.RuneCountInString(firstLine); n > 0 && n <= maxTitleFromDescription {
			return firstLine
		}
	}

	return e.Name
}

// ToDocuments maps an entity to at least one chunk document. An entity
// without usable description text gets a single header document whose
// content is its title.
func ToDocuments(e *model.Entity, opts Options) []ChunkDocument {
	title := BuildTitle(e)
	chunks := chunk.Split(model.StringValue(e.Description), opts.MaxChars, opts.OverlapChars)

	if len(chunks) == 0 {
		return []ChunkDocument{newDocument(e, title, chunk.Chunk{Index: 0, Content: title, IsHeader: true})}
	}

	docs := make([]ChunkDocument, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, newDocument(e, title, c))
	}
	return docs
}

func newDocument(e *model.Entity, title string, c chunk.Chunk) ChunkDocument {
	return ChunkDocument{
		EntityID:      e.ID,
		EntityType:    e.EntityType,
		ChunkIndex:    c.Index,
		IsHeaderChunk: c.IsHeader,
		Name:          e.Name,
		Title:         title,
		Content:       c.Content,
		Country:       e.Country,
		Industries:    nonNil(e.Industries),
		Topics:        nonNil(e.Topics),
		Stage:         e.Stage,
		EventType:     e.EventType,
	}
}

// nonNil keeps empty arrays as [] in the indexed JSON.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
