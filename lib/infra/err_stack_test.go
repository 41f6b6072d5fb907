package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var initPC = caller()

func caller() Frame {
	var PCs [3]uintptr
	n := runtime.Callers(2, PCs[:])
	frames := runtime.CallersFrames(PCs[:n])
	frame, _ := frames.Next()
	return Frame(frame.PC)
}

func TestFrameFormat(t *testing.T) {
	testcases := []struct {
		Frame
		format string
		want   string
	}{
		{initPC, "%s", "err_stack_test.go"},
		{initPC, "%n", "init"},
		{Frame(0), "%s", "unknownFile"},
		{Frame(0), "%n", "unknownFunc"},
		{Frame(0), "%d", "0"},
		{Frame(0), "%v", "unknownFile:0"},
	}
	for _, tc := range testcases {
		require.Equal(t, tc.want, fmt.Sprintf(tc.format, tc.Frame))
	}

	verbose := fmt.Sprintf("%+v", initPC)
	require.True(t, strings.HasPrefix(verbose, "github.com/benz9527/xavl/lib/infra.init\n\t"))
	require.Contains(t, verbose, "err_stack_test.go:")
	require.Regexp(t, `^err_stack_test\.go:\d+$`, fmt.Sprintf("%v", initPC))
}

func TestFrameMarshal(t *testing.T) {
	text, err := Frame(0).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "unknownFrame", string(text))

	text, err = initPC.MarshalText()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(text), "github.com/benz9527/xavl/lib/infra.init "))

	_bytes, err := json.Marshal(Frame(0))
	require.NoError(t, err)
	require.Equal(t, `{"frame":"unknownFrame"}`, string(_bytes))

	_bytes, err = json.Marshal(initPC)
	require.NoError(t, err)
	res := map[string]string{}
	require.NoError(t, json.Unmarshal(_bytes, &res))
	require.Equal(t, "github.com/benz9527/xavl/lib/infra.init", res["func"])
	require.Contains(t, res["fileAndLine"], "err_stack_test.go:")
}

func TestNewErrorStack(t *testing.T) {
	err := NewErrorStack("avltree order violation")
	require.EqualError(t, err, "avltree order violation")
	require.NotEmpty(t, err.Frames())
	require.Nil(t, errors.Unwrap(err))

	verbose := fmt.Sprintf("%+v", err)
	require.True(t, strings.HasPrefix(verbose, "avltree order violation\n"))
	require.Contains(t, verbose, "err_stack_test.go:")
	require.Contains(t, verbose, "TestNewErrorStack")
	require.Equal(t, `"avltree order violation"`, fmt.Sprintf("%q", err))
}

func TestWrapErrorStack(t *testing.T) {
	require.Nil(t, WrapErrorStack(nil, "nothing"))

	base := errors.New("broken")
	wrapped := WrapErrorStack(base, "round 3")
	require.EqualError(t, wrapped, "round 3: broken")
	require.ErrorIs(t, wrapped, base)
	require.NotEmpty(t, wrapped.Frames())

	inner := NewErrorStack("inner")
	outer := WrapErrorStack(inner, "outer")
	require.EqualError(t, outer, "outer: inner")
	require.Equal(t, inner.Frames(), outer.Frames())

	var es ErrorStack
	require.True(t, errors.As(fmt.Errorf("ctx: %w", outer), &es))
	require.Equal(t, "outer: inner", es.Error())
}

func TestErrorStackMarshalLogObject(t *testing.T) {
	err := NewErrorStack("boom")
	enc := zapcore.NewMapObjectEncoder()
	require.NoError(t, err.MarshalLogObject(enc))
	require.Equal(t, "boom", enc.Fields["error"])
	frames, ok := enc.Fields["errorStack"].([]any)
	require.True(t, ok)
	require.Len(t, frames, len(err.Frames()))
}
