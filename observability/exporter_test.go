package observability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/benz9527/xavl/xlog"
)

func TestParseMetricsExporter(t *testing.T) {
	testcases := []struct {
		in       string
		expected MetricsExporterType
		hasErr   bool
	}{
		{"", NoneExporter, false},
		{"none", NoneExporter, false},
		{" Console ", ConsoleExporter, false},
		{"prometheus", PrometheusExporter, false},
		{"statsd", NoneExporter, true},
	}
	for _, tc := range testcases {
		typ, err := ParseMetricsExporter(tc.in)
		require.Equal(t, tc.expected, typ)
		if tc.hasErr {
			require.Error(t, err)
		} else {
			require.NoError(t, err)
		}
	}
}

func TestInitMetricsExporter(t *testing.T) {
	prev := otel.GetMeterProvider()
	defer otel.SetMeterProvider(prev)

	shutdown, err := InitMetricsExporter(ExporterConfig{Type: NoneExporter})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	shutdown, err = InitMetricsExporter(ExporterConfig{Type: ConsoleExporter, Interval: time.Hour})
	require.NoError(t, err)
	NewStressStats("console").RecordRound(context.Background(), 0, 3, 3)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitMetricsExporter_Prometheus(t *testing.T) {
	prev := otel.GetMeterProvider()
	defer otel.SetMeterProvider(prev)

	shutdown, err := InitMetricsExporter(ExporterConfig{
		Type:    PrometheusExporter,
		Address: "127.0.0.1:19464",
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, shutdown(context.Background()))
	}()
	NewStressStats("prometheus").RecordRound(context.Background(), 0, 3, 3)

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:19464/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	require.Contains(t, string(body), "xavl_stress_rounds")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Sync() error { return nil }

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type brokenListener struct {
	net.Listener
	err error
}

func (l *brokenListener) Accept() (net.Conn, error) {
	return nil, l.err
}

func TestServeMetrics_Errors(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	errAccept := errors.New("accept refused")

	buf := &syncBuffer{}
	logger := xlog.NewXLogger(xlog.WithXLoggerWriteSyncer(buf))
	stop := serveMetrics(&brokenListener{Listener: lis, err: errAccept}, logger)

	require.Eventually(t, func() bool {
		return len(buf.String()) > 0
	}, 2*time.Second, 10*time.Millisecond)
	err = stop(context.Background())
	require.ErrorIs(t, err, errAccept)
	require.Contains(t, buf.String(), `"msg":"metrics endpoint stopped"`)
	require.Contains(t, buf.String(), `"error":"accept refused"`)
}

func TestServeMetrics_Closed(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	buf := &syncBuffer{}
	logger := xlog.NewXLogger(xlog.WithXLoggerWriteSyncer(buf))
	stop := serveMetrics(lis, logger)

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + lis.Addr().String() + "/metrics")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	require.NoError(t, stop(context.Background()))
	require.Empty(t, buf.String())
}
