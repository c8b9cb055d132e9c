package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/lixenwraith/quiz-timer/constant"
	"github.com/lixenwraith/quiz-timer/countdown"
)

// WaveType defines oscillator wave shapes
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
	WaveTriangle
)

// oscillator generates a fixed-length raw wave
type oscillator struct {
	freq     float64
	phase    float64
	duration int
	position int
	wave     WaveType
	rate     beep.SampleRate
}

// NewOscillator creates a streamer producing duration worth of the given wave
func NewOscillator(freq float64, duration time.Duration, wave WaveType, rate beep.SampleRate) beep.Streamer {
	return &oscillator{
		freq:     freq,
		duration: rate.N(duration),
		wave:     wave,
		rate:     rate,
	}
}

func (o *oscillator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if o.position >= o.duration {
			return i, i > 0
		}

		var val float64
		switch o.wave {
		case WaveSine:
			val = math.Sin(2 * math.Pi * o.phase)
		case WaveSquare:
			val = 1.0
			if o.phase >= 0.5 {
				val = -1.0
			}
		case WaveTriangle:
			val = 4*math.Abs(o.phase-0.5) - 1
		}

		samples[i][0] = val
		samples[i][1] = val

		o.phase += o.freq / float64(o.rate)
		o.phase -= math.Floor(o.phase)
		o.position++
	}
	return len(samples), true
}

func (o *oscillator) Err() error { return nil }

// envelope applies a linear attack and release to a stream
type envelope struct {
	streamer     beep.Streamer
	position     int
	attack       int
	releaseStart int
	release      int
}

// NewEnvelope shapes s so it fades in over attack and out over the last release of duration
func NewEnvelope(s beep.Streamer, duration, attack, release time.Duration, rate beep.SampleRate) beep.Streamer {
	total := rate.N(duration)
	att := rate.N(attack)
	rel := rate.N(release)
	if att+rel > total {
		att, rel = total/2, total-total/2
	}
	return &envelope{
		streamer:     s,
		attack:       att,
		releaseStart: total - rel,
		release:      rel,
	}
}

func (e *envelope) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = e.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		vol := 1.0
		switch {
		case e.position < e.attack:
			vol = float64(e.position) / float64(e.attack)
		case e.position >= e.releaseStart && e.release > 0:
			vol = float64(e.releaseStart+e.release-e.position) / float64(e.release)
		}
		if vol < 0 {
			vol = 0
		}
		samples[i][0] *= vol
		samples[i][1] *= vol
		e.position++
	}
	return n, ok
}

func (e *envelope) Err() error { return e.streamer.Err() }

// newVolume scales a stream linearly; math.Log2(0) is -Inf so zero means silent
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}

// blips returns count short tones separated by gaps
func blips(freq float64, count int, rate beep.SampleRate) beep.Streamer {
	parts := make([]beep.Streamer, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			parts = append(parts, beep.Silence(rate.N(constant.ChimeBlipGap)))
		}
		osc := NewOscillator(freq, constant.ChimeBlipDuration, WaveSine, rate)
		parts = append(parts, NewEnvelope(osc, constant.ChimeBlipDuration, constant.ChimeAttack, constant.ChimeRelease, rate))
	}
	return beep.Seq(parts...)
}

// descending returns the expiry phrase, one triangle note per frequency
func descending(freqs []float64, rate beep.SampleRate) beep.Streamer {
	parts := make([]beep.Streamer, 0, len(freqs))
	for _, f := range freqs {
		osc := NewOscillator(f, constant.ExpiryNoteDuration, WaveTriangle, rate)
		parts = append(parts, NewEnvelope(osc, constant.ExpiryNoteDuration, constant.ChimeAttack, constant.ExpiryNoteRelease, rate))
	}
	return beep.Seq(parts...)
}

// ChimeFor builds the streamer played for an alert level at the given volume
func ChimeFor(level countdown.AlertLevel, volume float64, rate beep.SampleRate) beep.Streamer {
	var s beep.Streamer
	switch level {
	case countdown.AlertUrgent:
		s = blips(constant.UrgentChimeFreq, constant.UrgentChimeBlips, rate)
	case countdown.AlertExpired:
		s = descending(constant.ExpiryChimeFreqs[:], rate)
	default:
		s = blips(constant.WarnChimeFreq, constant.WarnChimeBlips, rate)
	}
	return newVolume(s, volume)
}

// ChimeDuration reports the playing time of the chime for level
func ChimeDuration(level countdown.AlertLevel) time.Duration {
	switch level {
	case countdown.AlertUrgent:
		return blipsDuration(constant.UrgentChimeBlips)
	case countdown.AlertExpired:
		return time.Duration(len(constant.ExpiryChimeFreqs)) * constant.ExpiryNoteDuration
	default:
		return blipsDuration(constant.WarnChimeBlips)
	}
}

func blipsDuration(count int) time.Duration {
	return time.Duration(count)*constant.ChimeBlipDuration + time.Duration(count-1)*constant.ChimeBlipGap
}
