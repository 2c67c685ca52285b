package palloc

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	testCases := []struct {
		level slog.Level
		name  string
	}{
		{slog.LevelInfo, "INFO"},
		{slog.LevelError, "ERROR"},
		{LevelAlert, "ALERT"},
		{LevelCritical, "CRIT"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, slog.LevelInfo)
			logger.Log(context.Background(), tc.level, "msg")
			assert.Contains(t, buf.String(), "level="+tc.name+" ")
		})
	}

	t.Run("Level filter", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, slog.LevelWarn)
		logger.Debug("debug")
		logger.Info("info")
		assert.Empty(t, buf.String())
		logger.Log(context.Background(), LevelAlert, "alert")
		assert.NotEmpty(t, buf.String())
	})
}

func TestPoolDebugLog(t *testing.T) {
	p, logs := newLoggedPool(t)
	b, err := p.Alloc(1000)
	require.NoError(t, err)
	c, err := p.AddCleanup(0)
	require.NoError(t, err)
	c.Handler = func([]byte) {}
	require.True(t, p.Release(b))
	p.Destroy()

	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, `msg="add cleanup"`))
	assert.Equal(t, 1, strings.Count(out, `msg="run cleanup"`))
	// One large allocation released early and one block freed on destroy.
	assert.Equal(t, 2, strings.Count(out, "msg=free"))
	assert.Contains(t, out, "unused=")
}
