package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		l := NewWithWriter(&bytes.Buffer{}, tt.level, false)
		assert.Equal(t, tt.want, l.GetLevel(), "level %q", tt.level)
	}
}

func TestNewWithWriter_JSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", false)
	l.Debug().Msg("hidden")
	l.Info().Str("file", "get-info.ts").Msg("wrote")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"file":"get-info.ts"`)
	assert.Contains(t, out, `"message":"wrote"`)
}

func TestNewWithWriter_Pretty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug", true)
	l.Debug().Msg("console line")
	assert.True(t, strings.Contains(buf.String(), "console line"))
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}
