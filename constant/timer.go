package constant

import "time"

// Countdown Timing
const (
	// TickInterval is the countdown recompute-and-render cadence
	TickInterval = 1 * time.Second

	// ExpiryGraceDelay is the pause between the "time is up" banner and the expiry callback
	ExpiryGraceDelay = 2 * time.Second

	// BannerTTL is how long a warning banner stays visible before auto-dismiss
	BannerTTL = 4 * time.Second

	// DefaultQuizMinutes is the quiz length used when none is configured
	DefaultQuizMinutes = 30
)

// Warning thresholds in remaining seconds, least urgent first
const (
	WarnThresholdSeconds   = 300
	UrgentThresholdSeconds = 60
)

// Banner messages
const (
	MessageFiveMinutes = "⏰ 5 minutes remaining!"
	MessageOneMinute   = "⏰ 1 minute remaining!"
	MessageTimeUp      = "⏰ Time is up! Submitting quiz..."
)

// Persistence keys, formatted with the quiz identifier
const (
	DefaultQuizID      = "default"
	StartTimeKeyFormat = "quiz_%s_start_time"
	SnapshotKeyFormat  = "quiz_%s_timer"
)

// Tier colors (hex RGB)
const (
	ColorNeutral = 0x7f8c8d
	ColorWarning = 0xf39c12
	ColorUrgent  = 0xe74c3c
)
