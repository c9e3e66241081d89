// ABOUTME: Diagnostic tool that probes a coordinator and prints latency stats
// ABOUTME: Runs a burst of triangular round trips without joining playback
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RayendraNagata/ScreenSquad-sub000/internal/client"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/syncengine"
	"github.com/RayendraNagata/ScreenSquad-sub000/internal/worker"
)

var (
	serverAddr = flag.String("server", "localhost:8080", "Coordinator address")
	squadID    = flag.String("squad", "probe", "Squad to join for the probe run")
	count      = flag.Int("count", 10, "Number of round trips")
	interval   = flag.Duration("interval", 500*time.Millisecond, "Delay between probes")
)

func main() {
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	fmt.Printf("Probing %s with %d triangular round trips...\n\n", *serverAddr, *count)

	ws := client.NewClient(client.Config{
		ServerAddr: *serverAddr,
		SquadID:    *squadID,
		UserID:     uuid.New().String(),
		Username:   "sync-probe",
	}, log)

	if _, err := ws.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "connection failed: %v\n", err)
		os.Exit(1)
	}
	defer ws.Close()

	bridge := worker.NewBridge(syncengine.Config{}, nil, log)
	defer bridge.Stop()

	for i := 0; i < *count; i++ {
		id := uuid.New().String()
		t1 := float64(time.Now().UnixMilli())

		if err := ws.SendTriangularPing(id, t1); err != nil {
			fmt.Fprintf(os.Stderr, "probe %d send failed: %v\n", i+1, err)
			continue
		}

		select {
		case pong := <-ws.TriangularPongs:
			t3 := float64(time.Now().UnixMilli())
			sample, err := bridge.CalculateLatency(pong.T1, pong.T2, t3)
			if err != nil {
				fmt.Printf("probe %2d: rejected (%v)\n", i+1, err)
				continue
			}
			fmt.Printf("probe %2d: latency %6.1fms  rtt %6.1fms  processing %5.1fms\n",
				i+1, sample.OneWayLatencyMs, sample.RoundTripMs, sample.ProcessingMs)
		case <-time.After(2 * time.Second):
			fmt.Printf("probe %2d: timeout\n", i+1)
		}

		time.Sleep(*interval)
	}

	stats, err := bridge.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "stats failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nSamples:    %d\n", stats.LatencyCount)
	fmt.Printf("Average:    %.1fms\n", stats.LatencyAvgMs)
	fmt.Printf("Min/Max:    %.1fms / %.1fms\n", stats.LatencyMinMs, stats.LatencyMaxMs)
	fmt.Printf("Jitter:     %.1fms\n", stats.LatencyJitterMs)
	fmt.Printf("Confidence: %.2f\n", stats.Confidence)
}
