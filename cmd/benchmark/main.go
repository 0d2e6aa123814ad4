package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	players     int
	adminToken  string
)

// Metrics
var (
	totalRequests uint64
	created       uint64 // ok:true
	busy          uint64 // ALREADY_IN_DUEL / OPPONENT_IN_DUEL
	refused       uint64 // any other domain code
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&players, "players", 1000, "Number of seeded players")
	flag.StringVar(&adminToken, "admin-token", "", "X-Admin-Token used to expire created duels")
}

type sendResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Duel  *struct {
		ID int64 `json:"id"`
	} `json:"duel"`
}

func main() {
	flag.Parse()
	slog.Info("starting benchmark", "workload", workload, "workers", concurrency, "duration", duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		from, to := pickPlayers()
		var resp sendResponse
		status, err := post(client, "/duel/send", map[string]any{"username": from, "toUsername": to}, &resp)
		if err != nil || status != http.StatusOK {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch {
		case resp.OK:
			atomic.AddUint64(&created, 1)
			// Free both players again so the storm keeps finding contention.
			if resp.Duel != nil {
				_, _ = post(client, "/duel/expire", map[string]any{"duelId": resp.Duel.ID}, nil)
			}
		case resp.Error == "ALREADY_IN_DUEL" || resp.Error == "OPPONENT_IN_DUEL":
			atomic.AddUint64(&busy, 1)
		default:
			atomic.AddUint64(&refused, 1)
		}
	}
}

func post(client *http.Client, path string, payload any, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodPost, targetURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if adminToken != "" {
		req.Header.Set("X-Admin-Token", adminToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func playerName(i int) string {
	// Matches the seeder: eight named fighters, then numbered players.
	named := []string{"ken", "ryu", "chun", "guile", "dhalsim", "blanka", "zangief", "honda"}
	if i < len(named) {
		return named[i]
	}
	return fmt.Sprintf("player%04d", i+1)
}

func pickPlayers() (string, string) {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic is ken and ryu challenging each other
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return "ken", "ryu"
			}
			return "ryu", "ken"
		}
	}

	// Uniform Random
	a := rand.Intn(players)
	b := rand.Intn(players)
	for a == b {
		b = rand.Intn(players)
	}
	return playerName(a), playerName(b)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&created)
	b := atomic.LoadUint64(&busy)
	r := atomic.LoadUint64(&refused)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	busyRate := 0.0
	if total > 0 {
		busyRate = float64(b) / float64(total) * 100
	}

	results := map[string]any{
		"workload":       workload,
		"duration_sec":   d.Seconds(),
		"total_requests": total,
		"throughput_tps": tps,
		"duels_created":  ok,
		"refused_busy":   b,
		"busy_rate_pct":  busyRate,
		"refused_other":  r,
		"errors":         fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		slog.Error("write results", "file", filename, "error", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
