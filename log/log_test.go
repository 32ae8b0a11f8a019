package log

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(zapcore.AddSync(&buf), "root",
		zap.NewAtomicLevelAt(zapcore.DebugLevel), Encoder(JSONEncoder))
	levels := NewLevels(root)

	lg, err := levels.Named("scheduler", "warn")
	require.NoError(t, err)
	lg.Info("hidden")
	lg.Warn("visible")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "visible")
	require.Contains(t, buf.String(), "root.scheduler")

	buf.Reset()
	require.NoError(t, levels.Set("scheduler", "debug"))
	lg.Debug("now visible")
	require.Contains(t, buf.String(), "now visible")

	require.Error(t, levels.Set("unknown", "debug"))
	require.Error(t, levels.Set("scheduler", "loud"))

	_, err = levels.Named("api", "loud")
	require.Error(t, err)
}

func TestShorten(t *testing.T) {
	require.Equal(t, "123", Shorten("123", 8))
	long := strings.Repeat("1", 10) + strings.Repeat("2", 10)
	require.Equal(t, "11111111...22222222", Shorten(long, 8))
}

func TestBigIntFields(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWithWriter(zapcore.AddSync(&buf), "test",
		zap.NewAtomicLevelAt(zapcore.InfoLevel), Encoder(JSONEncoder))
	lg.Info("msg", ZBigInt("n", big.NewInt(7)), ZBigInt("missing", nil))
	require.Contains(t, buf.String(), `"n":"7"`)
	require.NotContains(t, buf.String(), "missing")
}

func TestRequestID(t *testing.T) {
	_, ok := ExtractRequestID(context.Background())
	require.False(t, ok)

	ctx, id := WithNewRequestID(context.Background())
	got, ok := ExtractRequestID(ctx)
	require.True(t, ok)
	require.Equal(t, id, got)
	require.Equal(t, "request_id", ZContext(ctx).Key)
}
