package gateway

import (
	"context"
	"encoding/json"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// SystemStats is the process snapshot pushed to WS clients and served on
// /api/v1/stats.
type SystemStats struct {
	Goroutines  int            `json:"goroutines"`
	HeapAllocMB float64        `json:"heap_alloc_mb"`
	SysMB       float64        `json:"sys_mb"`
	GCRuns      uint32         `json:"gc_runs"`
	CPUCores    int            `json:"cpu_cores"`
	CPULoad1    float64        `json:"cpu_load_1"`
	UptimeSec   int64          `json:"uptime_sec"`
	Clients     int            `json:"ws_clients"`
	Broadcast   LatencySummary `json:"broadcast_latency"`
	TS          string         `json:"ts"`
}

// CollectStats gathers runtime and hub statistics.
func (h *Hub) CollectStats(start time.Time) SystemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	s := SystemStats{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(ms.HeapAlloc) / 1024 / 1024,
		SysMB:       float64(ms.Sys) / 1024 / 1024,
		GCRuns:      ms.NumGC,
		CPUCores:    runtime.NumCPU(),
		CPULoad1:    loadAvg1(),
		UptimeSec:   int64(time.Since(start).Seconds()),
		Clients:     h.ClientCount(),
		TS:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	if h.Latency != nil {
		s.Broadcast = h.Latency.Summary()
	}
	return s
}

// loadAvg1 reads the 1-minute load average; 0 where /proc is unavailable.
func loadAvg1() float64 {
	raw, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return 0
	}
	v, _ := strconv.ParseFloat(fields[0], 64)
	return v
}

// StartStatsBroadcast sends {"type":"stats",...} to every client each
// interval until ctx is cancelled.
func (h *Hub) StartStatsBroadcast(ctx context.Context, start time.Time, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.ClientCount() == 0 {
				continue
			}
			msg, err := json.Marshal(map[string]interface{}{
				"type":  "stats",
				"stats": h.CollectStats(start),
			})
			if err != nil {
				continue
			}
			h.sendAll(msg)
		}
	}
}
