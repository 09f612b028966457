package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/user/vidsurface/pkg/adapters/logger"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Decoded("cam0", 3)
	m.DecodeError("cam0")
	m.Dropped("cam0", DropRegistryMiss)
	m.Dropped("cam0", DropRegistryMiss)
	m.Presented("cam0")
	m.Superseded("cam0", 0)
	m.Superseded("cam0", 2)
	m.Reconfigured("cam0")

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"decoded", testutil.ToFloat64(m.decoded.WithLabelValues("cam0")), 3},
		{"decode errors", testutil.ToFloat64(m.decodeErrors.WithLabelValues("cam0")), 1},
		{"dropped", m.DroppedCount("cam0", DropRegistryMiss), 2},
		{"dropped other reason", m.DroppedCount("cam0", DropLate), 0},
		{"presented", testutil.ToFloat64(m.presented.WithLabelValues("cam0")), 1},
		{"superseded", testutil.ToFloat64(m.superseded.WithLabelValues("cam0")), 2},
		{"reconfigurations", testutil.ToFloat64(m.reconfigurations.WithLabelValues("cam0")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
}

func TestOpenStreamsGauge(t *testing.T) {
	m := New()
	m.StreamOpened()
	m.StreamOpened()
	m.StreamClosed()
	if got := testutil.ToFloat64(m.openStreams); got != 1 {
		t.Errorf("expected 1 open stream, got %v", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.Presented("s")
	if got := testutil.ToFloat64(b.presented.WithLabelValues("s")); got != 0 {
		t.Errorf("metrics leaked between instances: %v", got)
	}
}

func TestServerExposesMetrics(t *testing.T) {
	m := New()
	m.Dropped("cam0", DropDetached)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	srv := NewServer(l.Addr().String(), m, false, logger.NewNoop())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	want := `vidsurface_frames_dropped_total{reason="detached",stream="cam0"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("expected %q in exposition", want)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v", err)
	}
}
