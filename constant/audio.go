package constant

import "time"

// Audio Hardware Settings
const (
	AudioSampleRate = 44100

	// AudioBufferDuration determines speaker latency
	AudioBufferDuration = 100 * time.Millisecond

	// AudioVolume scales every chime, 1.0 is full scale
	AudioVolume = 0.5
)

// Warning chimes: short A5 blips, two for the first warning and three for the last
const (
	WarnChimeFreq    = 880.0
	WarnChimeBlips   = 2
	UrgentChimeFreq  = 880.0
	UrgentChimeBlips = 3

	ChimeBlipDuration = 120 * time.Millisecond
	ChimeBlipGap      = 80 * time.Millisecond
	ChimeAttack       = 5 * time.Millisecond
	ChimeRelease      = 40 * time.Millisecond
)

// Expiry chime: descending E5, A4, E4
var ExpiryChimeFreqs = [...]float64{659.25, 440.0, 329.63}

const (
	ExpiryNoteDuration = 220 * time.Millisecond
	ExpiryNoteRelease  = 120 * time.Millisecond
)
