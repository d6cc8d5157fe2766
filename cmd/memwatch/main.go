// Command memwatch prints this tool's memory next to the memory reported by
// a running server's /health endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/shirou/gopsutil/process"

	"modelswap/internal/models"
)

func main() {
	url := flag.String("url", "http://localhost:5000/health", "server health endpoint")
	interval := flag.Duration("interval", 5*time.Second, "sampling interval")
	flag.Parse()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open own process: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Memory Monitoring for ModelSwap")
	fmt.Println(strings.Repeat("=", 40))

	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		report(os.Stdout, proc, client, *url)
		select {
		case <-ctx.Done():
			fmt.Println("\nMonitoring stopped.")
			return
		case <-ticker.C:
		}
	}
}

func report(w io.Writer, proc *process.Process, client *http.Client, url string) {
	info, err := proc.MemoryInfo()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	pct, _ := proc.MemoryPercent()
	local := fmt.Sprintf("Local: %.2f MB (%.1f%%)", float64(info.RSS)/1024/1024, pct)

	health, err := fetchHealth(client, url)
	switch {
	case err == nil:
		fmt.Fprintf(w, "%s | Server: %.2f MB (%.2f%%)\n", local, health.MemoryUsageMB, health.MemoryPercent)
	case errors.Is(err, errNotResponding):
		fmt.Fprintf(w, "%s | Server: Not responding\n", local)
	default:
		fmt.Fprintf(w, "%s | Server: Not available\n", local)
	}
}

var errNotResponding = errors.New("server not responding")

func fetchHealth(client *http.Client, url string) (*models.HealthResponse, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errNotResponding
	}
	var health models.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, err
	}
	return &health, nil
}
