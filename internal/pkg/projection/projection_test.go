package projection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/discovery-search/internal/model"
)

func ptr(s string) *string { return &s }

func TestBuildTitle(t *testing.T) {
	tests := []struct {
		name   string
		entity model.Entity
		want   string
	}{
		{
			name:   "person role at company",
			entity: model.Entity{EntityType: model.EntityPerson, Name: "Ada", RoleTitle: ptr("CEO"), CompanyName: ptr("Acme")},
			want:   "CEO at Acme",
		},
		{
			name:   "person role only",
			entity: model.Entity{EntityType: model.EntityPerson, Name: "Ada", RoleTitle: ptr("Engineer")},
			want:   "Engineer",
		},
		{
			name:   "person company only",
			entity: model.Entity{EntityType: model.EntityPerson, Name: "Ada", CompanyName: ptr("Acme")},
			want:   "Acme",
		},
		{
			name:   "event type",
			entity: model.Entity{EntityType: model.EntityEvent, Name: "Build night", EventType: ptr("Workshop")},
			want:   "Workshop",
		},
		{
			name:   "startup first description line",
			entity: model.Entity{EntityType: model.EntityStartup, Name: "Acme", Description: ptr("  AI-powered logistics platform \nMore text")},
			want:   "AI-powered logistics platform",
		},
		{
			name:   "描述首行过长时回退到名称",
			entity: model.Entity{EntityType: model.EntityInvestor, Name: "Fund I", Description: ptr(strings.Repeat("x", 201))},
			want:   "Fund I",
		},
		{
			name:   "no description",
			entity: model.Entity{EntityType: model.EntityStartup, Name: "Acme"},
			want:   "Acme",
		},
		{
			name:   "person without role falls back to description",
			entity: model.Entity{EntityType: model.EntityPerson, Name: "Ada", Description: ptr("Angel investor")},
			want:   "Angel investor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildTitle(&tt.entity))
		})
	}
}

func TestToDocumentsFallbackTitle(t *testing.T) {
	e := &model.Entity{
		ID:         "0b8e3f0a-1c2d-4e5f-8a9b-0c1d2e3f4a5b",
		EntityType: model.EntityEvent,
		Name:       "Build night",
		EventType:  ptr("Workshop"),
	}

	docs := ToDocuments(e, DefaultOptions())
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "Workshop", doc.Content)
	assert.Equal(t, "Workshop", doc.Title)
	assert.True(t, doc.IsHeaderChunk)
	assert.Equal(t, 0, doc.ChunkIndex)
	assert.Equal(t, e.ID+"_0", doc.ID())
	assert.Equal(t, []string{}, doc.Industries)
}

func TestToDocumentsChunks(t *testing.T) {
	paragraph := strings.Repeat("Grid scale storage for the nordics. ", 8)
	e := &model.Entity{
		ID:          "a1",
		EntityType:  model.EntityStartup,
		Name:        "Volt",
		Description: ptr(paragraph + "\n\n" + paragraph + "\n\n" + paragraph),
		Country:     ptr("FI"),
		Industries:  []string{"climate_tech"},
		Stage:       ptr("seed"),
	}

	docs := ToDocuments(e, DefaultOptions())
	require.Len(t, docs, 3)

	for i, doc := range docs {
		assert.Equal(t, i, doc.ChunkIndex)
		assert.Equal(t, i == 0, doc.IsHeaderChunk)
		assert.Equal(t, DocumentID("a1", i), doc.ID())
		assert.Equal(t, "Volt", doc.Name)
		assert.Equal(t, "FI", *doc.Country)
		assert.Equal(t, []string{"climate_tech"}, doc.Industries)
	}
}

func TestToDocumentsIdempotentIDs(t *testing.T) {
	e := &model.Entity{
		ID:          "b2",
		EntityType:  model.EntityInvestor,
		Name:        "Fund",
		Description: ptr(strings.Repeat("We back founders early. ", 60)),
	}

	first := ToDocuments(e, DefaultOptions())
	second := ToDocuments(e, DefaultOptions())
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID(), second[i].ID())
		assert.Equal(t, first[i], second[i])
	}
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "abc_0", DocumentID("abc", 0))
	assert.Equal(t, "abc_12", DocumentID("abc", 12))
}
