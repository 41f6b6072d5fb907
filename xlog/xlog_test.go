package xlog

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	glogger "gorm.io/gorm/logger"

	"github.com/benz9527/xavl/lib/infra"
)

type testBanner struct{}

func (testBanner) JSON() string      { return `{"name":"xavl"}` }
func (testBanner) PlainText() string { return "xavl" }

func newBufferedXLogger(opts ...XLoggerOption) (XLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	opts = append(opts, WithXLoggerWriteSyncer(zapcore.AddSync(buf)))
	return NewXLogger(opts...), buf
}

func TestParseLogLevel(t *testing.T) {
	testcases := []struct {
		in       string
		expected logLevel
	}{
		{"info", LogLevelInfo},
		{" WARN ", LogLevelWarn},
		{"Error", LogLevelError},
		{"debug", LogLevelDebug},
		{"trace", LogLevelDebug},
		{"", LogLevelDebug},
	}
	for _, tc := range testcases {
		require.Equal(t, tc.expected, ParseLogLevel(tc.in))
	}
	require.Equal(t, zapcore.WarnLevel, LogLevelWarn.zapLevel())
	require.Equal(t, zapcore.DebugLevel, getLogLevelOrDefault(" "))
	require.Equal(t, "INFO", LogLevelInfo.String())
}

func TestParseLogEncoder(t *testing.T) {
	require.Equal(t, PlainText, ParseLogEncoder("text"))
	require.Equal(t, PlainText, ParseLogEncoder("Console"))
	require.Equal(t, JSON, ParseLogEncoder("json"))
	require.Equal(t, JSON, ParseLogEncoder("yaml"))
}

func TestXLogger_Options(t *testing.T) {
	require.Panics(t, func() {
		NewXLogger(WithXLoggerEncoder(_encMax))
	})
	require.Panics(t, func() {
		NewXLogger(WithXLoggerWriteSyncer(nil))
	})

	t.Setenv(envLogLevel, "warn")
	logger, buf := newBufferedXLogger(nil, WithXLoggerLevelEncoder(nil), WithXLoggerTimeEncoder(nil))
	require.Equal(t, "warn", logger.Level())
	logger.Info("hidden")
	require.Zero(t, buf.Len())
	logger.Warn("shown")
	require.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestXLogger_LevelChanged(t *testing.T) {
	logger, buf := newBufferedXLogger(
		WithXLoggerLevel(LogLevelInfo),
		WithXLoggerEncoder(PlainText),
	)
	logger.Debug("debug-1")
	require.NotContains(t, buf.String(), "debug-1")

	logger.IncreaseLogLevel(zapcore.DebugLevel)
	require.Equal(t, "debug", logger.Level())
	logger.Debug("debug-2")
	logger.Logf(zapcore.InfoLevel, "round %d", 7)
	require.Contains(t, buf.String(), "debug-2")
	require.Contains(t, buf.String(), "round 7")
	require.NoError(t, logger.Sync())
}

func TestXLogger_Named(t *testing.T) {
	logger, buf := newBufferedXLogger(WithXLoggerLevel(LogLevelInfo))
	child := logger.Named("stress")
	child.Info("round done", zap.Int64("round", 3))
	require.Contains(t, buf.String(), `"component":"stress"`)
	require.Contains(t, buf.String(), `"round":3`)

	// Children follow the parent's level.
	buf.Reset()
	logger.IncreaseLogLevel(zapcore.ErrorLevel)
	child.Info("hidden")
	require.Zero(t, buf.Len())
}

func TestXLogger_Component(t *testing.T) {
	logger, buf := newBufferedXLogger(WithXLoggerLevel(LogLevelError))
	gl := NewGormXLogger(logger, WithGormXLoggerLogLevel(glogger.Info))
	gl.Info(context.TODO(), "migrate %s", "run_reports")
	require.Contains(t, buf.String(), "migrate run_reports")
	require.Contains(t, buf.String(), `"component":"Gorm"`)

	// The gorm level is independent from the parent level.
	buf.Reset()
	gl.LogMode(glogger.Error).Info(context.TODO(), "hidden")
	require.Zero(t, buf.Len())
	logger.Info("hidden")
	require.Zero(t, buf.Len())
}

func TestXLogger_Errors(t *testing.T) {
	logger, buf := newBufferedXLogger(WithXLoggerLevel(LogLevelDebug))

	logger.Error(errors.New("plain"), "failed")
	require.Contains(t, buf.String(), `"error":"plain"`)

	buf.Reset()
	logger.ErrorStack(infra.NewErrorStack("avltree order violation"), "violation")
	require.Contains(t, buf.String(), `"error":"avltree order violation"`)
	require.Contains(t, buf.String(), `"errorStack":[`)

	buf.Reset()
	logger.ErrorStack(errors.New("plain"), "no stack")
	require.Contains(t, buf.String(), `"error":"plain"`)
	require.NotContains(t, buf.String(), "errorStack")

	buf.Reset()
	logger.Error(nil, "nil error")
	require.NotContains(t, buf.String(), `"error"`)
}

func TestXLogger_ContextFields(t *testing.T) {
	logger, buf := newBufferedXLogger(
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerContextFieldExtract("runID"),
		WithXLoggerContextFieldExtract("worker", "workerID"),
		WithXLoggerContextFieldExtract(""),
	)
	ctx := context.WithValue(context.Background(), ContextKey("runID"), "r-1")
	ctx = context.WithValue(ctx, ContextKey("worker"), 2)

	logger.DebugContext(ctx, "debug")
	logger.InfoContext(ctx, "info")
	logger.WarnContext(ctx, "warn")
	logger.ErrorContext(ctx, errors.New("boom"), "error")
	out := buf.String()
	require.Contains(t, out, `"runID":"r-1"`)
	require.Contains(t, out, `"workerID":2`)
	require.Contains(t, out, `"error":"boom"`)

	require.Empty(t, extractFieldsFromContext(nil, map[string]string{"a": "a"}))
	require.Empty(t, extractFieldsFromContext(context.Background(), map[string]string{"a": "a"}))
}

func TestXLogger_Banner(t *testing.T) {
	logger, buf := newBufferedXLogger(WithXLoggerEncoder(JSON))
	logger.Banner(testBanner{})
	logger.Banner(testBanner{})
	require.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("xavl")))
	// Only the message key is kept.
	require.NotContains(t, buf.String(), `"ts"`)
}
