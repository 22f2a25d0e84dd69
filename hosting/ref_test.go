package hosting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepositoryRef(t *testing.T) {
	tests := []struct {
		input string
		want  RepositoryRef
	}{
		{"octocat/hello-world", RepositoryRef{"octocat", "hello-world"}},
		{"https://github.com/octocat/hello-world", RepositoryRef{"octocat", "hello-world"}},
		{"https://github.com/octocat/hello-world.git", RepositoryRef{"octocat", "hello-world"}},
		{"https://github.com/octocat/hello-world/", RepositoryRef{"octocat", "hello-world"}},
		{"http://github.com/octocat/hello-world/tree/main/src", RepositoryRef{"octocat", "hello-world"}},
		{"git@github.com:octocat/hello-world.git", RepositoryRef{"octocat", "hello-world"}},
		{"  spf13/cobra  ", RepositoryRef{"spf13", "cobra"}},
		{"owner/repo.name", RepositoryRef{"owner", "repo.name"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRepositoryRef(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRepositoryRefRejectsInvalid(t *testing.T) {
	for _, input := range []string{
		"",
		"just-a-name",
		"https://github.com",
		"git@github.com",
		"owner/re po",
		"/repo",
	} {
		_, err := ParseRepositoryRef(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestRepositoryRefString(t *testing.T) {
	assert.Equal(t, "octocat/hello-world", RepositoryRef{Owner: "octocat", Name: "hello-world"}.String())
}
