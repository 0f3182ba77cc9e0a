package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openroad/roadassist/core/notify"
)

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mu        sync.Mutex
	published []published
	failures  int
	handlers  map[string]paho.MessageHandler
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]paho.MessageHandler)}
}

func (c *fakeClient) IsConnected() bool       { return true }
func (c *fakeClient) Connect() paho.Token     { return fakeToken{} }
func (c *fakeClient) Disconnect(quiesce uint) {}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return fakeToken{err: errors.New("broker unavailable")}
	}
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte)})
	return fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = cb
	return fakeToken{}
}

func (c *fakeClient) sent() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.published...)
}

type fakeMessage struct{ payload []byte }

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return ReplyTopic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func newTestNotifier(t *testing.T) (*Notifier, *fakeClient) {
	t.Helper()
	fake := newFakeClient()
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return fake }
	t.Cleanup(func() { newMQTTClient = orig })

	n, err := NewNotifier(Config{Broker: "tcp://test:1883", ClientID: "dispatcher", BackoffMS: 1})
	require.NoError(t, err)
	return n, fake
}

func TestSendOfferPublishesToMechanicTopic(t *testing.T) {
	n, fake := newTestNotifier(t)

	offer := notify.Offer{OfferID: "o1", BreakdownID: "b1", MechanicID: "m1", DistanceKm: 4.2}
	require.NoError(t, n.SendOffer(context.Background(), offer))

	sent := fake.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "roadassist/mechanics/m1/offers", sent[0].topic)

	var got notify.Offer
	require.NoError(t, json.Unmarshal(sent[0].payload, &got))
	assert.Equal(t, offer.OfferID, got.OfferID)
	assert.Equal(t, offer.DistanceKm, got.DistanceKm)
}

func TestPublishRetriesOnFailure(t *testing.T) {
	n, fake := newTestNotifier(t)
	fake.mu.Lock()
	fake.failures = 2
	fake.mu.Unlock()

	err := n.CancelOffer(context.Background(), "m1", "o1")
	require.NoError(t, err, "two failures are within the retry budget")

	sent := fake.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "roadassist/mechanics/m1/offers/cancel", sent[0].topic)
}

func TestPublishGivesUpAfterRetries(t *testing.T) {
	n, fake := newTestNotifier(t)
	fake.mu.Lock()
	fake.failures = 10
	fake.mu.Unlock()

	err := n.NotifyRider(context.Background(), "r1", "status_ARRIVED", nil)
	assert.Error(t, err)
}

func TestSubscribeRepliesDecodes(t *testing.T) {
	n, fake := newTestNotifier(t)

	var mu sync.Mutex
	var replies []Reply
	require.NoError(t, n.SubscribeReplies(func(r Reply) {
		mu.Lock()
		replies = append(replies, r)
		mu.Unlock()
	}))

	handler := fake.handlers[ReplyTopic]
	require.NotNil(t, handler)

	good, _ := json.Marshal(Reply{OfferID: "o1", BreakdownID: "b1", MechanicID: "m1", Action: "accept"})
	handler(nil, fakeMessage{payload: good})
	handler(nil, fakeMessage{payload: []byte("not json")})
	bad, _ := json.Marshal(Reply{OfferID: "o2", Action: "snooze"})
	handler(nil, fakeMessage{payload: bad})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, replies, 1, "only well-formed accept/decline replies pass")
	assert.Equal(t, "accept", replies[0].Action)
}

func TestLoadTLSConfigRequiresPaths(t *testing.T) {
	_, err := Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}
