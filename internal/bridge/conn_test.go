// conn_test.go — Tests for the HTTP Bridge readiness probe.
package bridge

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestIsServerRunningTrueWhenHealthEndpointIsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	port := portFromTestServer(t, srv)
	if !IsServerRunning(port) {
		t.Error("expected IsServerRunning to report true for a 200 /health")
	}
}

func TestIsServerRunningFalseWhenHealthEndpointFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	port := portFromTestServer(t, srv)
	if IsServerRunning(port) {
		t.Error("expected IsServerRunning to report false for a non-200 /health")
	}
}

func TestIsServerRunningFalseWhenNothingListens(t *testing.T) {
	if IsServerRunning(1) {
		t.Error("expected IsServerRunning to report false when nothing listens on the port")
	}
}

func TestWaitForServerReturnsAsSoonAsHealthAnswers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	port := portFromTestServer(t, srv)
	if !WaitForServer(port, time.Second) {
		t.Error("expected WaitForServer to succeed against an already-running server")
	}
}

func TestWaitForServerTimesOutWhenNothingListens(t *testing.T) {
	start := time.Now()
	if WaitForServer(1, 250*time.Millisecond) {
		t.Fatal("expected WaitForServer to fail when nothing listens")
	}
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
		t.Errorf("WaitForServer returned after %v, want it to respect the timeout", elapsed)
	}
}

func portFromTestServer(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("could not split test server address: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("could not parse test server port %q: %v", portStr, err)
	}
	return port
}
