// Command simulator runs a fleet of fake mechanic apps against a broker so
// the dispatch engine can be exercised end to end without real phones.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

func main() {
	cfg := parseFlags()
	if err := (&cfg).Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strat := NewRandomReply(cfg.AcceptRate, cfg.ReplyDelay)
	fleet := make([]*Mechanic, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		m, err := NewMechanic(cfg, strat, i)
		if err != nil {
			log.Fatalf("mechanic %d: %v", i, err)
		}
		if err := m.RegisterAPI(ctx); err != nil {
			log.Fatalf("register %s: %v", m.ID, err)
		}
		fleet = append(fleet, m)
	}
	log.Printf("fleet of %d mechanics online", len(fleet))

	var wg sync.WaitGroup
	for _, m := range fleet {
		wg.Add(1)
		go func(m *Mechanic) {
			defer wg.Done()
			m.Run(ctx)
		}(m)
	}
	wg.Wait()
	for _, m := range fleet {
		m.Close()
	}
}

func parseFlags() Config {
	var cfg Config
	var skills string
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.APIBaseURL, "api", "", "dispatch API base URL for registration")
	flag.StringVar(&cfg.AdminToken, "token", "", "elevated JWT used for registration")
	flag.IntVar(&cfg.Count, "count", 5, "number of mechanics")
	flag.Float64Var(&cfg.AcceptRate, "accept-rate", 0.7, "offer acceptance probability")
	flag.DurationVar(&cfg.ReplyDelay, "reply-delay", 3*time.Second, "max delay before answering an offer")
	flag.Float64Var(&cfg.MoveKmH, "speed", 30, "drift speed in km/h")
	flag.DurationVar(&cfg.PingEvery, "ping-every", 15*time.Second, "position ping interval")
	flag.Float64Var(&cfg.CenterLat, "lat", 48.8566, "fleet center latitude")
	flag.Float64Var(&cfg.CenterLng, "lng", 2.3522, "fleet center longitude")
	flag.Float64Var(&cfg.SpreadKm, "spread", 10, "fleet spread radius in km")
	flag.StringVar(&skills, "skills", "FLAT_TIRE,DEAD_BATTERY,LOCKOUT", "comma separated skills")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.Parse()
	if skills != "" {
		cfg.Skills = strings.Split(skills, ",")
	}
	return cfg
}
