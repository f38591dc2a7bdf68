package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"dupe-sweep/internal/config"
)

func TestTrackPassesElementsThrough(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, true)

	var got []string
	var idx []int
	for i, s := range Track(r, []string{"a", "b", "c"}, "Getting File Hashes:", "Complete") {
		idx = append(idx, i)
		got = append(got, s)
	}

	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, []int{0, 1, 2}, idx)

	out := buf.String()
	assert.Equal(t, 4, strings.Count(out, "\r"), "one draw at start plus one per element")
	assert.Contains(t, out, "Getting File Hashes:")
	assert.Contains(t, out, "  0.0%")
	assert.Contains(t, out, "100.0% Complete")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestTrackDisabledWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, false)

	n := 0
	for range Track(r, []int{1, 2, 3}, "p", "s") {
		n++
	}
	assert.Equal(t, 3, n)
	assert.Empty(t, buf.String())
}

func TestTrackEmptyDrawsNothing(t *testing.T) {
	var buf bytes.Buffer
	for range Track(NewReporter(&buf, true), []int{}, "p", "s") {
		t.Fatal("no elements expected")
	}
	assert.Empty(t, buf.String())
}

func TestTrackEarlyBreak(t *testing.T) {
	var buf bytes.Buffer
	n := 0
	for range Track(NewReporter(&buf, true), []int{1, 2, 3}, "p", "s") {
		n++
		break
	}
	assert.Equal(t, 1, n)
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestTrackNilReporter(t *testing.T) {
	n := 0
	for range Track[int](nil, []int{1, 2}, "p", "s") {
		n++
	}
	assert.Equal(t, 2, n)
}

func TestForTerminalOnBuffer(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
	assert.False(t, ForTerminal(&bytes.Buffer{}, true).enabled)
}

func TestConsolePlainTextOnBuffer(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, config.DefaultMessages())

	c.Infof(c.Messages().GettingFiles, "/data")
	c.Info(c.Messages().NoDuplicates)
	c.Errorf(c.Messages().PathNotFound, "/missing")

	assert.Equal(t,
		"Getting files from: \"/data\"\nNo Duplicate Files Found\nERROR: Path not found, /missing\n",
		buf.String())
	assert.Equal(t, "/a/b", c.Path("/a/b"))
}

func TestConsolePlainLinesKeepPercent(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, config.DefaultMessages())
	c.Info("100% done")
	c.Error("/data/50% off.txt")
	assert.Equal(t, "100% done\n/data/50% off.txt\n", buf.String())
}

func TestConsoleTemplateWithoutVerb(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, config.DefaultMessages())
	template := "Removed"
	c.Infof(template, "/data/a")
	assert.Equal(t, "Removed\n", buf.String())
}
