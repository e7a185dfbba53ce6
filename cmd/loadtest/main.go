// Command loadtest drives concurrent /get-neighbour-terms requests against a
// running proximityd and reports throughput, latency percentiles and status
// codes.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8000 -concurrency 20 -duration 30s
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Requests    []neighbourRequest
}

type neighbourRequest struct {
	Query         string `json:"query"`
	ReferenceTerm string `json:"reference_term,omitempty"`
}

type neighbourResponse struct {
	NeighbourTerms []json.RawMessage `json:"neighbour_terms"`
}

type Stats struct {
	totalRequests  atomic.Int64
	successCount   atomic.Int64
	emptyNetworks  atomic.Int64
	errorCount     atomic.Int64
	neighboursSeen atomic.Int64
	latencies      []time.Duration
	latenciesMu    sync.Mutex
	statusCodes    map[int]*atomic.Int64
	statusCodesMu  sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

// RecordRequest counts one request. neighbours is -1 when the body was not
// a neighbour-terms response.
func (s *Stats) RecordRequest(duration time.Duration, statusCode, neighbours int, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode == http.StatusOK {
		s.successCount.Add(1)
		if neighbours == 0 {
			s.emptyNetworks.Add(1)
		}
		if neighbours > 0 {
			s.neighboursSeen.Add(int64(neighbours))
		}
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

var defaultQueries = []string{
	"wireless sensor network",
	"iot gateway",
	"energy aware routing",
	"edge computing sensor",
	"cluster head election",
	"lora smart city",
	"anomaly detection iot",
	"sensor data aggregation",
	"network lifetime",
	"graph visualization",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "base URL of the proximity service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	reference := flag.String("reference", "", "reference term sent with every request")
	queries := flag.String("queries", "", "comma-separated queries (default: built-in list)")
	flag.Parse()

	list := defaultQueries
	if *queries != "" {
		list = nil
		for _, q := range strings.Split(*queries, ",") {
			if q = strings.TrimSpace(q); q != "" {
				list = append(list, q)
			}
		}
	}
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "no queries given")
		os.Exit(1)
	}
	reqs := make([]neighbourRequest, len(list))
	for i, q := range list {
		reqs[i] = neighbourRequest{Query: q, ReferenceTerm: *reference}
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Requests:    reqs,
	}

	fmt.Println("=== Proximity Network Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Requests))
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	bodies := make([][]byte, len(cfg.Requests))
	for i, r := range cfg.Requests {
		bodies[i], _ = json.Marshal(r)
	}
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/get-neighbour-terms"

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			idx := workerID
			for ctx.Err() == nil {
				body := bodies[idx%len(bodies)]
				idx++

				start := time.Now()
				status, neighbours, err := post(ctx, client, endpoint, body)
				if ctx.Err() != nil {
					return
				}
				stats.RecordRequest(time.Since(start), status, neighbours, err)
			}
		}(w)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func post(ctx context.Context, client *http.Client, endpoint string, body []byte) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, -1, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, -1, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, -1, nil
	}
	var out neighbourResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return resp.StatusCode, -1, fmt.Errorf("decoding response: %w", err)
	}
	return resp.StatusCode, len(out.NeighbourTerms), nil
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()
	empty := stats.emptyNetworks.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Empty Networks:  %d\n", empty)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}
	if success > empty {
		fmt.Printf("Avg Neighbours:  %.1f\n", float64(stats.neighboursSeen.Load())/float64(success-empty))
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		samples := make([]float64, len(latencies))
		for i, l := range latencies {
			samples[i] = float64(l)
		}
		mean, stddev := stat.MeanStdDev(samples, nil)
		if math.IsNaN(stddev) {
			stddev = 0
		}

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", time.Duration(mean))
		fmt.Printf("P50:    %s\n", percentile(samples, 50))
		fmt.Printf("P90:    %s\n", percentile(samples, 90))
		fmt.Printf("P95:    %s\n", percentile(samples, 95))
		fmt.Printf("P99:    %s\n", percentile(samples, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
		fmt.Printf("StdDev: %s\n", time.Duration(stddev))
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []float64, p float64) time.Duration {
	return time.Duration(stat.Quantile(p/100, stat.Empirical, sorted, nil))
}
