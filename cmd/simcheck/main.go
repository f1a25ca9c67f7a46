// Simcheck probes the simulator bridge: HTTP health endpoint first, then a
// websocket round trip listing the scene targets.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/cobotix/go-gazebot/internal/config"
	"github.com/cobotix/go-gazebot/internal/httpc"
	"github.com/cobotix/go-gazebot/pkg/sim"
)

func main() {
	simURL := flag.String("sim-url", config.SimURL(), "simulator bridge websocket URL")
	flag.Parse()

	if err := run(*simURL); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func run(simURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// The bridge serves a health endpoint on the same host as the socket.
	healthURL := healthFromWS(simURL)
	fmt.Printf("health   %s ... ", healthURL)
	resp, err := httpc.Get(healthURL)
	if err != nil {
		fmt.Println("unreachable")
		return fmt.Errorf("health probe: %w", err)
	}
	resp.Body.Close()
	fmt.Println(resp.Status)

	fmt.Printf("socket   %s ... ", simURL)
	client, err := sim.Dial(ctx, simURL)
	if err != nil {
		fmt.Println("failed")
		return err
	}
	defer client.Close()
	fmt.Println("connected")

	start := time.Now()
	targets, err := client.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}
	fmt.Printf("registry %d targets in %s\n", len(targets), time.Since(start).Round(time.Millisecond))
	for _, t := range targets {
		fmt.Printf("  [%d] %-16s screen=(%.2f, %.2f) scene=(%.2f, %.2f, %.2f)\n",
			t.ID, t.Name, t.Screen.X, t.Screen.Y, t.Scene.X, t.Scene.Y, t.Scene.Z)
	}
	return nil
}

// healthFromWS derives the bridge's HTTP health URL from its websocket URL.
func healthFromWS(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return wsURL
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/health"
	u.RawQuery = ""
	return u.String()
}
