//go:build !integration

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cafe-review-cli/internal/cache"
	"github.com/sells-group/cafe-review-cli/internal/progress"
)

func TestFormatProgress(t *testing.T) {
	var buf bytes.Buffer
	formatProgress(&buf, progress.Record{"Springfield": 2, "Albany": 1})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "Albany")
	assert.Contains(t, lines[2], "Springfield")
	assert.Contains(t, lines[3], "Total")
	assert.Contains(t, lines[3], "3")
}

func TestClearTargets(t *testing.T) {
	all, err := clearTargets("")
	require.NoError(t, err)
	assert.Equal(t, cache.Namespaces, all)

	one, err := clearTargets(cache.NamespaceCheckpoints)
	require.NoError(t, err)
	assert.Equal(t, []string{cache.NamespaceCheckpoints}, one)

	_, err = clearTargets("nope")
	assert.Error(t, err)
}
