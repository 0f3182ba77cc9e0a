package events

import (
	"time"

	"github.com/openroad/roadassist/core/model"
)

// StatusChanged is published after every committed breakdown transition.
type StatusChanged struct {
	BreakdownID string
	Number      string
	RiderID     string
	MechanicID  string
	From        model.BreakdownStatus
	To          model.BreakdownStatus
	Actor       string
	At          time.Time
}
