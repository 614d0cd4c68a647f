package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/guttosm/isinmap/config"
)

type dummyHandler struct{}

func (d dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func TestStartServerAndShutdown(t *testing.T) {
	srv := startServer(dummyHandler{}, "0") // random port
	if srv == nil {
		t.Fatalf("expected server")
	}

	// Give server a moment to start
	time.Sleep(50 * time.Millisecond)

	// Shutdown quickly with short timeout and no-op cleanup
	_, cancel := context.WithCancel(context.Background())
	go func() {
		// trigger gracefulShutdown select by simulating signal via closing after a brief delay
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	// We cannot send OS signals easily here; instead, directly call Shutdown to simulate graceful flow.
	// Verify it doesn't panic and completes.
	shutdownCtx, c := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer c()
	if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		t.Fatalf("shutdown err: %v", err)
	}
}

func TestGracefulShutdown_SignalPath(t *testing.T) {
	// Use a server that responds immediately
	srv := startServer(dummyHandler{}, "0")

	cleaned := make(chan struct{}, 1)
	go func() {
		ctx := context.Background()
		gracefulShutdown(ctx, srv, func() { close(cleaned) })
	}()

	// Give the goroutine time to set up signal notifications
	time.Sleep(50 * time.Millisecond)

	// Send SIGTERM to current process
	p, _ := os.FindProcess(os.Getpid())
	_ = p.Signal(syscall.SIGTERM)

	select {
	case <-cleaned:
		// success
	case <-time.After(2 * time.Second):
		t.Fatalf("cleanup not called after SIGTERM")
	}
}

func lookupConfig(t *testing.T) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "isins.tsv")
	body := "ticker\tissuer\tissue\tisin\nCBA\tCOMMONWEALTH BANK\tORDINARY FULLY PAID\tAU000000CBA7\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write tsv: %v", err)
	}
	return config.Config{Lookup: config.LookupConfig{Source: config.SourceFile, FilePath: path, BBGSuffix: ":AU", RICSuffix: ".AX"}}
}

func TestRunLookup(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		cfgErr   error
		strict   bool
		wantOut  string
		wantCode int
	}{
		{
			name:    "found",
			input:   `{"isin":"AU000000CBA7"}`,
			wantOut: `{"results":{"bbg_code":"CBA:AU","ric_code":"CBA.AX"}}` + "\n",
		},
		{
			name:    "not found lenient",
			input:   `{"isin":"AU000000XXX0"}`,
			wantOut: `{"results":{},"error":"couldn't find a ticker corresponding to ISIN AU000000XXX0"}` + "\n",
		},
		{
			name:     "not found strict",
			input:    `{"isin":"AU000000XXX0"}`,
			strict:   true,
			wantOut:  `{"results":{},"error":"couldn't find a ticker corresponding to ISIN AU000000XXX0"}` + "\n",
			wantCode: 1,
		},
		{
			name:     "config error strict",
			input:    `{"isin":"AU000000CBA7"}`,
			cfgErr:   errors.New("unsupported SECMASTER_SOURCE"),
			strict:   true,
			wantOut:  `{"results":{},"error":"invalid configuration: unsupported SECMASTER_SOURCE"}` + "\n",
			wantCode: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			code := runLookup(context.Background(), lookupConfig(t), tc.cfgErr, strings.NewReader(tc.input), &out, tc.strict)
			if code != tc.wantCode {
				t.Fatalf("exit code=%d, want %d", code, tc.wantCode)
			}
			if out.String() != tc.wantOut {
				t.Fatalf("output=%q, want %q", out.String(), tc.wantOut)
			}
		})
	}
}

func TestRunLookup_SourceInitFailure(t *testing.T) {
	cfg := config.Config{Lookup: config.LookupConfig{Source: "redis"}}
	var out bytes.Buffer
	code := runLookup(context.Background(), cfg, nil, strings.NewReader(`{"isin":"AU000000CBA7"}`), &out, false)
	if code != 0 {
		t.Fatalf("exit code=%d, want 0", code)
	}
	if !strings.HasPrefix(out.String(), `{"results":{},"error":"security master unavailable: `) {
		t.Fatalf("unexpected output %q", out.String())
	}
}
