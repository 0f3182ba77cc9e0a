// Package events defines the lifecycle events emitted on the event bus.
//
// Available event types:
//   - StatusChanged: breakdown status transition
//   - OfferEvent: offer sent to a candidate mechanic
//   - OfferOutcome: acceptance, decline or expiry of an offer
//   - RoundEvent: start, result or exhaustion of a dispatch round
//   - DisputeRaised / DisputeResolved: dispute lifecycle
package events
