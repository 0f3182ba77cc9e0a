package main

import (
	"math/rand"
	"sync"
	"time"
)

// ReplyStrategy decides how a simulated mechanic answers an offer.
type ReplyStrategy interface {
	// Decide returns whether to accept and how long to sit on the offer.
	Decide(mechanicID, offerID string) (accept bool, delay time.Duration)
}

// RandomReply accepts with a fixed probability after a bounded random delay.
type RandomReply struct {
	AcceptRate float64
	MaxDelay   time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomReply seeds the strategy.
func NewRandomReply(acceptRate float64, maxDelay time.Duration) *RandomReply {
	return &RandomReply{
		AcceptRate: acceptRate,
		MaxDelay:   maxDelay,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *RandomReply) Decide(_, _ string) (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accept := s.rng.Float64() < s.AcceptRate
	var delay time.Duration
	if s.MaxDelay > 0 {
		delay = time.Duration(s.rng.Int63n(int64(s.MaxDelay)))
	}
	return accept, delay
}
