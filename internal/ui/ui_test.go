package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name               string
		done, total, width int
		want               string
	}{
		{"empty", 0, 0, 10, "░░░░░░░░░░   0%"},
		{"half", 1, 2, 10, "█████░░░░░  50%"},
		{"full", 3, 3, 10, "██████████ 100%"},
		{"min width", 1, 1, 2, "█████ 100%"},
		{"clamped", 5, 3, 10, "██████████ 100%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProgressBar(tt.done, tt.total, tt.width))
		})
	}
}

func TestSetTheme(t *testing.T) {
	t.Cleanup(func() { _ = SetTheme("classic") })

	require.NoError(t, SetTheme("Neon"))
	assert.Equal(t, "neon", Current().Name)

	err := SetTheme("sepia")
	assert.ErrorContains(t, err, "classic, mono, neon")
	assert.Equal(t, "neon", Current().Name)
}

func TestMonoPanelAndMessages(t *testing.T) {
	t.Cleanup(func() {
		_ = SetTheme("classic")
		SetOutput(nil, nil)
	})
	require.NoError(t, SetTheme("mono"))

	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)

	Panel([]string{"a", "bcd"})
	OK("added")
	Fail("boom")

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "+-----+", lines[0])
	assert.Equal(t, "| a   |", lines[1])
	assert.Equal(t, "| bcd |", lines[2])
	assert.Equal(t, "ok: added", lines[4])
	assert.Equal(t, "error: boom\n", errOut.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd...", Truncate("abcdefghij", 7))
	assert.Equal(t, "ééé...", Truncate("éééééééé", 6))
}
