package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestServeFlagsReachConfig(t *testing.T) {
	root := newRootCmd()
	if err := root.ParseFlags([]string{"--port", "9123", "--workers", "0"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Flags are bound to the same viper instance the serve command loads.
	serve, _, err := root.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("find serve: %v", err)
	}
	if serve.Flags().Lookup("port").Value.String() != "9123" {
		t.Fatalf("bare invocation should share serve's flags")
	}
}

func TestMintWritesQR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/sessions" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"session_id":"01HZX","url":"http://cam.example/s/01HZX","qr":""}`))
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "qr.png")
	cmd := newMintCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--server", srv.URL, "--out", out})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !strings.Contains(stdout.String(), "http://cam.example/s/01HZX") {
		t.Fatalf("stdout: %s", stdout.String())
	}
	png, err := os.ReadFile(out)
	if err != nil || !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("qr file: %v", err)
	}
}

func TestMintServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := mint(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error")
	}
}
