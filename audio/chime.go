// Package audio plays synthesized chimes alongside countdown warnings
package audio

import (
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/quiz-timer/constant"
	"github.com/lixenwraith/quiz-timer/countdown"
	"github.com/lixenwraith/quiz-timer/logs"
)

const sampleRate = beep.SampleRate(constant.AudioSampleRate)

// Chime is a countdown.Alerter backed by the beep speaker.
// Until Initialize succeeds, or while muted, Alert does nothing.
type Chime struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	volume      float64
	muted       bool
	initialized bool
	logger      *logrus.Logger

	// play hands a streamer to the output, replaced in tests
	play func(beep.Streamer)
}

// NewChime creates a chime; call Initialize before expecting sound
func NewChime(muted bool, logger *logrus.Logger) *Chime {
	if logger == nil {
		logger = logs.Discard()
	}
	c := &Chime{
		mixer:  &beep.Mixer{},
		volume: constant.AudioVolume,
		muted:  muted,
		logger: logger,
	}
	c.play = c.playSpeaker
	return c
}

// Initialize opens the speaker and starts the mixer
func (c *Chime) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized || c.muted {
		return nil
	}

	if err := speaker.Init(sampleRate, sampleRate.N(constant.AudioBufferDuration)); err != nil {
		return errors.Wrap(err, "initialize speaker")
	}
	speaker.Play(c.mixer)
	c.initialized = true
	return nil
}

// Cleanup drops any playing chimes
func (c *Chime) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return
	}
	speaker.Lock()
	c.mixer.Clear()
	speaker.Unlock()
	// beep has no speaker Close; clearing the mixer leaves it silent
	c.initialized = false
}

// SetMuted toggles output without tearing down the speaker
func (c *Chime) SetMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = muted
}

// Muted reports whether alerts are silenced
func (c *Chime) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Alert plays the chime for level
func (c *Chime) Alert(level countdown.AlertLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.muted || !c.initialized {
		return
	}
	c.logger.Debugf("chime %s", level)
	c.play(ChimeFor(level, c.volume, sampleRate))
}

func (c *Chime) playSpeaker(s beep.Streamer) {
	speaker.Lock()
	c.mixer.Add(s)
	speaker.Unlock()
}
