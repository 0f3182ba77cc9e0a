package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/openroad/roadassist/core/notify"
	inframqtt "github.com/openroad/roadassist/infra/mqtt"
)

// Mechanic simulates one mechanic's app: it registers over the API, answers
// offers over MQTT and drifts around its position.
type Mechanic struct {
	ID    string
	Lat   float64
	Lng   float64
	strat ReplyStrategy
	cli   paho.Client
	cfg   Config

	mu      sync.Mutex
	pending map[string]struct{} // offer ids not yet answered
	busy    bool
}

// NewMechanic connects the simulated app to the broker.
func NewMechanic(cfg Config, strat ReplyStrategy, n int) (*Mechanic, error) {
	id := fmt.Sprintf("sim-mech-%03d", n)
	m := &Mechanic{
		ID:      id,
		strat:   strat,
		cfg:     cfg,
		pending: make(map[string]struct{}),
	}
	// Scatter the fleet uniformly inside the spread radius.
	angle := rand.Float64() * 2 * math.Pi
	dist := math.Sqrt(rand.Float64()) * cfg.SpreadKm
	m.Lat = cfg.CenterLat + dist*math.Cos(angle)/111.0
	m.Lng = cfg.CenterLng + dist*math.Sin(angle)/(111.0*math.Cos(cfg.CenterLat*math.Pi/180))

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(id + "-" + uuid.NewString()[:8])
	opts.AutoReconnect = true
	m.cli = paho.NewClient(opts)
	tok := m.cli.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("%s connect: %w", id, err)
	}

	if tok := m.cli.Subscribe(inframqtt.OfferTopic(id), 1, m.onOffer); tok.Wait() && tok.Error() != nil {
		return nil, tok.Error()
	}
	if tok := m.cli.Subscribe(inframqtt.OfferCancelTopic(id), 1, m.onCancel); tok.Wait() && tok.Error() != nil {
		return nil, tok.Error()
	}
	return m, nil
}

// RegisterAPI creates the mechanic record and puts it ONLINE through the
// HTTP API using an elevated token.
func (m *Mechanic) RegisterAPI(ctx context.Context) error {
	if m.cfg.APIBaseURL == "" {
		return nil
	}
	body := map[string]any{
		"id": m.ID, "name": "Simulated " + m.ID,
		"latitude": m.Lat, "longitude": m.Lng,
		"skills": m.cfg.Skills, "verified": true,
	}
	if err := m.post(ctx, "/api/mechanics", body); err != nil {
		return err
	}
	return m.post(ctx, "/api/mechanics/"+m.ID+"/status", map[string]any{"status": "ONLINE"})
}

func (m *Mechanic) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.AdminToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", m.ID, path, resp.StatusCode)
	}
	return nil
}

func (m *Mechanic) onOffer(_ paho.Client, msg paho.Message) {
	var offer notify.Offer
	if err := json.Unmarshal(msg.Payload(), &offer); err != nil {
		log.Printf("%s: bad offer payload: %v", m.ID, err)
		return
	}
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		m.reply(offer, "decline")
		return
	}
	m.pending[offer.OfferID] = struct{}{}
	m.mu.Unlock()

	accept, delay := m.strat.Decide(m.ID, offer.OfferID)
	go func() {
		time.Sleep(delay)
		m.mu.Lock()
		if _, ok := m.pending[offer.OfferID]; !ok {
			m.mu.Unlock()
			return
		}
		delete(m.pending, offer.OfferID)
		if accept {
			m.busy = true
		}
		m.mu.Unlock()
		if accept {
			m.reply(offer, "accept")
			log.Printf("%s accepted %s (%.1f km away)", m.ID, offer.Number, offer.DistanceKm)
		} else {
			m.reply(offer, "decline")
		}
	}()
}

func (m *Mechanic) onCancel(_ paho.Client, msg paho.Message) {
	var c struct {
		OfferID string `json:"offer_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &c); err != nil {
		return
	}
	m.mu.Lock()
	delete(m.pending, c.OfferID)
	m.mu.Unlock()
}

func (m *Mechanic) reply(offer notify.Offer, action string) {
	payload, err := json.Marshal(inframqtt.Reply{
		OfferID:     offer.OfferID,
		BreakdownID: offer.BreakdownID,
		MechanicID:  m.ID,
		Action:      action,
		Timestamp:   time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	tok := m.cli.Publish(inframqtt.ReplyTopic, 1, false, payload)
	tok.Wait()
	if err := tok.Error(); err != nil {
		log.Printf("%s: reply publish failed: %v", m.ID, err)
	}
}

// Run drifts the mechanic and publishes position pings until ctx ends.
func (m *Mechanic) Run(ctx context.Context) {
	if m.cfg.PingEvery <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(m.cfg.PingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.drift()
			if m.cfg.APIBaseURL != "" {
				err := m.post(ctx, "/api/mechanics/"+m.ID+"/location",
					map[string]any{"latitude": m.Lat, "longitude": m.Lng})
				if err != nil && ctx.Err() == nil {
					log.Printf("%s: location ping failed: %v", m.ID, err)
				}
			}
		}
	}
}

// drift moves the mechanic a ping interval's worth of travel in a random
// direction.
func (m *Mechanic) drift() {
	if m.cfg.MoveKmH <= 0 {
		return
	}
	stepKm := m.cfg.MoveKmH * m.cfg.PingEvery.Hours()
	angle := rand.Float64() * 2 * math.Pi
	m.Lat += stepKm * math.Cos(angle) / 111.0
	m.Lng += stepKm * math.Sin(angle) / (111.0 * math.Cos(m.Lat*math.Pi/180))
}

// Close disconnects from the broker.
func (m *Mechanic) Close() {
	m.cli.Disconnect(250)
}
