package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchQuery struct {
	Type      string   `form:"type" validate:"omitempty,entitytype"`
	Stages    []string `form:"stage" validate:"max=10,dive,fundingstage"`
	Countries []string `form:"country" validate:"max=20,dive,countrycode"`
	Industry  []string `form:"industry" validate:"dive,facetvalue"`
}

func TestCustomRules(t *testing.T) {
	v := New()

	tests := []struct {
		name  string
		input searchQuery
		field string
	}{
		{"valid", searchQuery{Type: "startup", Stages: []string{"Seed", "preseed"}, Countries: []string{"fi", "SE"}}, ""},
		{"bad type", searchQuery{Type: "company"}, "type"},
		{"bad stage", searchQuery{Stages: []string{"growth"}}, "stage[0]"},
		{"bad country", searchQuery{Countries: []string{"FIN"}}, "country[0]"},
		{"控制字符", searchQuery{Industry: []string{"fin\x00tech"}}, "industry[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := v.ValidateWithLang(tt.input, LangEN)
			if tt.field == "" {
				assert.Nil(t, verr)
				return
			}
			require.NotNil(t, verr)
			assert.Equal(t, tt.field, verr.Errors[0].Field)
			assert.NotEmpty(t, verr.First())
		})
	}
}

func TestTranslations(t *testing.T) {
	v := New()

	en := v.ValidateWithLang(searchQuery{Type: "company"}, "en-US")
	require.NotNil(t, en)
	assert.Equal(t, "type must be one of startup, investor, person, event", en.First())

	zh := v.ValidateWithLang(searchQuery{Type: "company"}, "zh-CN")
	require.NotNil(t, zh)
	assert.Contains(t, zh.First(), "必须是")
	assert.Contains(t, zh.Error(), "validation failed: ")
}
