package table

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSplit(t *testing.T) {
	path := writeSource(t, "h\n1\n2\n3\n4\n")

	parts, err := Split(path, 2)
	require.NoError(t, err)
	require.Equal(t, []string{path + ".1", path + ".2", path + ".3"}, parts)

	assert.Equal(t, "h\n1\n", readFile(t, parts[0]))
	assert.Equal(t, "2\n3\n", readFile(t, parts[1]))
	assert.Equal(t, "4\n", readFile(t, parts[2]))
}

func TestSplit_PreservesLines(t *testing.T) {
	lines := []string{"a,b", "1,x", "2,y", "3,z", "4,w", "5,v", "6,u"}
	path := writeSource(t, strings.Join(lines, "\r\n"))

	parts, err := Split(path, 3)
	require.NoError(t, err)

	var got []string
	for _, p := range parts {
		content := readFile(t, p)
		assert.True(t, strings.HasSuffix(content, "\n"))
		got = append(got, strings.Split(strings.TrimSuffix(content, "\n"), "\n")...)
	}
	assert.Equal(t, lines, got, "concatenated parts reproduce the source line for line")
}

func TestSplit_FirstPartLoads(t *testing.T) {
	path := writeSource(t, newsCSV)

	parts, err := Split(path, 3)
	require.NoError(t, err)

	tbl, err := Load(parts[0])
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
}

func TestSplit_EmptySource(t *testing.T) {
	path := writeSource(t, "")

	parts, err := Split(path, 10)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "", readFile(t, parts[0]))
}

func TestSplit_InvalidLinesPerPart(t *testing.T) {
	_, err := Split("unused", 0)
	assert.ErrorIs(t, err, ErrInvalidLinesPerPart)
}

func TestSplit_MissingSource(t *testing.T) {
	_, err := Split(filepath.Join(t.TempDir(), "nope.csv"), 10)
	assert.Error(t, err)
}
