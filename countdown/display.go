package countdown

import "github.com/lixenwraith/quiz-timer/constant"

// Tier is the urgency level a display signals with color
type Tier uint8

const (
	TierNeutral Tier = iota // More than five minutes left
	TierWarning             // Five minutes or less
	TierUrgent              // One minute or less, also bold
)

func (t Tier) String() string {
	switch t {
	case TierWarning:
		return "warning"
	case TierUrgent:
		return "urgent"
	default:
		return "neutral"
	}
}

// TierFor maps remaining seconds to a tier
func TierFor(remaining int) Tier {
	switch {
	case remaining <= constant.UrgentThresholdSeconds:
		return TierUrgent
	case remaining <= constant.WarnThresholdSeconds:
		return TierWarning
	default:
		return TierNeutral
	}
}

// Display is the target a timer renders into.
// Implementations must tolerate repeated calls with unchanged values.
type Display interface {
	// SetText writes the "MM:SS" readout
	SetText(text string)

	// SetTier applies the color and marker for an urgency tier
	SetTier(tier Tier)

	// ShowBanner shows a transient notice, replacing any visible one
	ShowBanner(message string)

	// HideBanner removes the visible notice, if any
	HideBanner()
}

// AlertLevel classifies audible alerts
type AlertLevel uint8

const (
	AlertWarning AlertLevel = iota
	AlertUrgent
	AlertExpired
)

func (l AlertLevel) String() string {
	switch l {
	case AlertUrgent:
		return "urgent"
	case AlertExpired:
		return "expired"
	default:
		return "warning"
	}
}

// Alerter is notified alongside each banner, e.g. to play a sound
type Alerter interface {
	Alert(level AlertLevel)
}
