package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRandomReplyBounds(t *testing.T) {
	s := NewRandomReply(1, 50*time.Millisecond)
	for i := 0; i < 100; i++ {
		accept, delay := s.Decide("m", "o")
		assert.True(t, accept, "accept rate 1 always accepts")
		assert.GreaterOrEqual(t, delay, time.Duration(0))
		assert.Less(t, delay, 50*time.Millisecond)
	}

	s = NewRandomReply(0, 0)
	accept, delay := s.Decide("m", "o")
	assert.False(t, accept, "accept rate 0 never accepts")
	assert.Zero(t, delay)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Broker: "tcp://localhost:1883", Count: 3, AcceptRate: 0.5}
	assert.NoError(t, cfg.Validate())

	cfg.AcceptRate = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Config{Broker: "tcp://localhost:1883", Count: 1, APIBaseURL: "http://localhost:8080"}
	assert.Error(t, cfg.Validate(), "api registration needs a token")
}
