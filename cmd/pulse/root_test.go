package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"fetch"},
		{"serve"},
		{"countries"},
		{"archive", "list"},
		{"archive", "sync"},
		{"archive", "reindex"},
		{"archive", "stats"},
		{"archive", "recent"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestFetchNeedsCountries(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"fetch"})
	root.SetOut(&bytes.Buffer{})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")
}

func TestCountriesCommand(t *testing.T) {
	t.Setenv("COUNTRIES_CONFIG_PATH", "")
	t.Setenv("ARCHIVE_BACKEND", "local")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("SERPAPI_KEY", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs([]string{"countries"})
	root.SetOut(&out)
	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "CODE"))
	assert.Contains(t, out.String(), "IL2")
	assert.Contains(t, out.String(), "SERPAPI_KEY")
}
