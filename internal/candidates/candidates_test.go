package candidates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/schedctl/pkg/model"
)

func TestParse_YAMLList(t *testing.T) {
	specs, err := Parse(strings.NewReader(`
- backend: git
  category: commit
  uri: https://github.com/chaoss/grimoirelab
- backend: github
  category: issue
  uri: https://github.com/chaoss/grimoirelab
  interval: 3600
  max_retries: 0
`))
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, model.DefaultJobInterval, specs[0].JobInterval)
	assert.Equal(t, model.DefaultMaxRetries, *specs[0].MaxRetries)
	assert.Equal(t, 3600, specs[1].JobInterval)
	assert.Equal(t, 0, *specs[1].MaxRetries)
}

func TestParse_JSONDocument(t *testing.T) {
	specs, err := Parse(strings.NewReader(`{"candidates": [{"backend": "git", "category": "commit", "uri": "https://x/y"}]}`))
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "https://x/y", specs[0].URI)
}

func TestParse_ReportsEveryInvalidEntry(t *testing.T) {
	specs, err := Parse(strings.NewReader(`
- backend: git
  category: commit
- backend: git
  category: commit
  uri: https://x/y
- category: commit
  uri: https://x/z
`))
	require.Error(t, err)
	assert.Len(t, specs, 3)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Contains(t, err.Error(), "candidate 1")
	assert.Contains(t, err.Error(), "candidate 3")
	assert.NotContains(t, err.Error(), "candidate 2")
}

func TestParse_Empty(t *testing.T) {
	specs, err := Parse(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- {backend: git, category: commit, uri: 'https://x/y'}\n"), 0644))
	specs, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, specs, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
