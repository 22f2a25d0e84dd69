package hosting

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataAccessors(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "hello-world",
		"description": "",
		"language": null,
		"stargazers_count": 42,
		"topics": ["go", "cli"]
	}`), &m))

	assert.Equal(t, "hello-world", m.Name())
	assert.Equal(t, "No description provided", m.Description())
	assert.Equal(t, "Not specified", m.Language())
	assert.Equal(t, 42, m.Int("stargazers_count"))
	assert.Equal(t, 0, m.Int("forks_count"))
	assert.Equal(t, []string{"go", "cli"}, m.Topics())
	assert.Equal(t, "go, cli", m.TopicList("None"))
}

func TestMetadataDefaultsOnEmpty(t *testing.T) {
	m := Metadata{}
	assert.Equal(t, "Unknown", m.Name())
	assert.Nil(t, m.Topics())
	assert.Equal(t, "None", m.TopicList("None"))
	assert.Equal(t, "7", Metadata{"size": 7}.Str("size", ""))
}
