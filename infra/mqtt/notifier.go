package mqtt

import (
	"context"
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/openroad/roadassist/core/logger"
	"github.com/openroad/roadassist/core/notify"
	infralog "github.com/openroad/roadassist/infra/logger"
)

// Reply is the accept/decline message a mechanic publishes on ReplyTopic.
type Reply struct {
	OfferID     string `json:"offer_id"`
	BreakdownID string `json:"breakdown_id"`
	MechanicID  string `json:"mechanic_id"`
	Action      string `json:"action"` // "accept" or "decline"
	Timestamp   int64  `json:"timestamp"`
}

type cancelMsg struct {
	OfferID    string `json:"offer_id"`
	MechanicID string `json:"mechanic_id"`
	Timestamp  int64  `json:"timestamp"`
}

type riderMsg struct {
	RiderID   string `json:"rider_id"`
	Event     string `json:"event"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Notifier delivers offers over MQTT. It implements notify.Notifier.
type Notifier struct {
	cli        pahoClient
	qos        map[string]byte
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// NewNotifier connects to the broker and returns the transport.
func NewNotifier(cfg Config) (*Notifier, error) {
	log := infralog.New("mqtt_notifier")
	cli, err := connect(cfg, log)
	if err != nil {
		return nil, err
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &Notifier{
		cli:        cli,
		qos:        cfg.QoS,
		maxRetries: retries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        log,
	}, nil
}

func (n *Notifier) qosFor(kind string) byte {
	if q, ok := n.qos[kind]; ok {
		return q
	}
	return 1
}

// publish retries with exponential backoff; offers must survive a blip in
// the broker connection.
func (n *Notifier) publish(ctx context.Context, topic, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var last error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		token := n.cli.Publish(topic, n.qosFor(kind), false, payload)
		token.Wait()
		last = token.Error()
		if last == nil {
			return nil
		}
		n.log.Errorf("publish to %s attempt %d failed: %v", topic, attempt+1, last)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffFor(n.backoff, attempt)):
		}
	}
	return last
}

// SendOffer publishes the offer on the mechanic's offer topic.
func (n *Notifier) SendOffer(ctx context.Context, offer notify.Offer) error {
	err := n.publish(ctx, OfferTopic(offer.MechanicID), "offer", offer)
	if err == nil {
		n.log.Infof("offer %s sent to %s", offer.OfferID, offer.MechanicID)
	}
	return err
}

// CancelOffer tells the mechanic an outstanding offer is void.
func (n *Notifier) CancelOffer(ctx context.Context, mechanicID, offerID string) error {
	return n.publish(ctx, OfferCancelTopic(mechanicID), "offer", cancelMsg{
		OfferID:    offerID,
		MechanicID: mechanicID,
		Timestamp:  time.Now().UnixMilli(),
	})
}

// NotifyRider publishes a lifecycle event on the rider's topic.
func (n *Notifier) NotifyRider(ctx context.Context, riderID, event string, payload any) error {
	return n.publish(ctx, RiderTopic(riderID), "rider", riderMsg{
		RiderID:   riderID,
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
}

// SubscribeReplies invokes handler for every accept/decline reply.
// Malformed messages are logged and dropped.
func (n *Notifier) SubscribeReplies(handler func(Reply)) error {
	token := n.cli.Subscribe(ReplyTopic, n.qosFor("reply"), func(_ paho.Client, msg paho.Message) {
		var r Reply
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			n.log.Errorf("failed to decode reply: %v", err)
			return
		}
		if r.Action != "accept" && r.Action != "decline" {
			n.log.Warnf("reply %s has unknown action %q", r.OfferID, r.Action)
			return
		}
		handler(r)
	})
	token.Wait()
	return token.Error()
}

// Disconnect gracefully closes the MQTT connection.
func (n *Notifier) Disconnect() {
	n.cli.Disconnect(250)
}
