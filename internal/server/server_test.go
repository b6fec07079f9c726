package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"8080":        ":8080",
		":9090":       ":9090",
		"127.0.0.1:0": "127.0.0.1:0",
	}
	for in, want := range cases {
		if got := normalizeAddr(in); got != want {
			t.Errorf("normalizeAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	var s Server
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on idle server: %v", err)
	}
}

func TestRunServesUntilShutdown(t *testing.T) {
	var s Server
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	done := make(chan error, 1)
	go func() { done <- s.Run("127.0.0.1:0", handler) }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	addr, err := s.Addr(ctx)
	if err != nil {
		t.Fatalf("Addr: %v", err)
	}

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}

	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; !errors.Is(err, http.ErrServerClosed) {
		t.Fatalf("Run returned %v, want ErrServerClosed", err)
	}
}
