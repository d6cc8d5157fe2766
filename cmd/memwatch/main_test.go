package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	require.NoError(t, err)

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","memory_usage_mb":12.5,"memory_percent":0.75}`))
	}))
	defer healthy.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"healthy", healthy.URL, "| Server: 12.50 MB (0.75%)"},
		{"error status", failing.URL, "| Server: Not responding"},
		{"unreachable", "http://127.0.0.1:1/health", "| Server: Not available"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			report(&buf, proc, http.DefaultClient, tt.url)
			assert.Contains(t, buf.String(), "Local: ")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
