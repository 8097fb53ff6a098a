package network

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// probeAddr strips the scheme so the test server can be probed like a
// bare device address.
func probeAddr(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestProbe(t *testing.T) {
	t.Run("ready device", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ready","mac":"aa:bb:cc:dd:ee:01"}`))
		}))
		defer ts.Close()

		p := NewProber(time.Second)
		got, err := p.Probe(context.Background(), probeAddr(t, ts))
		if err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		if got.Identity != "AABBCCDDEE01" {
			t.Errorf("Identity = %q, want %q", got.Identity, "AABBCCDDEE01")
		}
		if !got.Ready {
			t.Error("Ready = false, want true")
		}
	})

	t.Run("non-200 status", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		p := NewProber(time.Second)
		_, err := p.Probe(context.Background(), probeAddr(t, ts))
		if !errors.Is(err, ErrProbeStatus) {
			t.Errorf("Probe() error = %v, want ErrProbeStatus", err)
		}
	})

	t.Run("device not ready", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"busy","mac":"aa:bb:cc:dd:ee:01"}`))
		}))
		defer ts.Close()

		p := NewProber(time.Second)
		_, err := p.Probe(context.Background(), probeAddr(t, ts))
		if !errors.Is(err, ErrProbeNotReady) {
			t.Errorf("Probe() error = %v, want ErrProbeNotReady", err)
		}
	})

	t.Run("missing mac", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"ready"}`))
		}))
		defer ts.Close()

		p := NewProber(time.Second)
		_, err := p.Probe(context.Background(), probeAddr(t, ts))
		if !errors.Is(err, ErrProbeNotReady) {
			t.Errorf("Probe() error = %v, want ErrProbeNotReady", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>router admin page</html>`))
		}))
		defer ts.Close()

		p := NewProber(time.Second)
		_, err := p.Probe(context.Background(), probeAddr(t, ts))
		if !errors.Is(err, ErrProbeNotReady) {
			t.Errorf("Probe() error = %v, want ErrProbeNotReady", err)
		}
	})

	t.Run("unreachable address times out", func(t *testing.T) {
		p := NewProber(100 * time.Millisecond)
		_, err := p.Probe(context.Background(), "203.0.113.254")
		if err == nil {
			t.Fatal("Probe() expected error for unreachable address")
		}
	})
}
