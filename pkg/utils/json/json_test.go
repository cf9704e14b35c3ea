package json

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hit struct {
	ID         string   `json:"id"`
	EntityType string   `json:"entity_type"`
	Score      float64  `json:"score,omitempty"`
	Snippet    string   `json:"snippet"`
	Industries []string `json:"industries"`
}

func TestMarshalRoundTrip(t *testing.T) {
	in := hit{ID: "a", EntityType: "startup", Snippet: "<mark>battery</mark> storage", Industries: []string{"energy"}}

	data, err := Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"entity_type":"startup"`)

	var out hit
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(map[string]int{"chunk_count": 3}, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"chunk_count\": 3\n}", string(data))
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(hit{ID: "b", Industries: []string{}}))

	var out hit
	require.NoError(t, NewDecoder(strings.NewReader(buf.String())).Decode(&out))
	assert.Equal(t, "b", out.ID)
	assert.Empty(t, out.Industries)
}

func TestRawMessage(t *testing.T) {
	var env struct {
		Data RawMessage `json:"data"`
	}
	require.NoError(t, Unmarshal([]byte(`{"data":{"ok":true}}`), &env))
	assert.JSONEq(t, `{"ok":true}`, string(env.Data))
}

func TestConcurrentMarshal(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := Marshal(hit{ID: "c", EntityType: "event"})
			assert.NoError(t, err)
			var out hit
			assert.NoError(t, Unmarshal(data, &out))
		}()
	}
	wg.Wait()
}

func TestIsUsingSonic(t *testing.T) {
	t.Logf("using sonic: %v", IsUsingSonic())
}
