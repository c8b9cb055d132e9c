// Package render draws the countdown onto a tcell screen.
//
// Layout, centered on the screen:
//
//	   <title>
//	┌─────────┐
//	│  04:59  │   colored by urgency tier, bold when urgent
//	└─────────┘
//	   <footer>
//
// A banner, when visible, is drawn as a floating box near the top edge.
package render

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/lixenwraith/quiz-timer/constant"
	"github.com/lixenwraith/quiz-timer/countdown"
)

// Banner colors, matching the error toast palette
var (
	bannerFg     = tcell.NewRGBColor(255, 220, 220)
	bannerBg     = tcell.NewRGBColor(60, 25, 25)
	bannerShadow = tcell.NewRGBColor(10, 10, 15)
)

const (
	bannerTop      = 1  // Rows from the top edge
	bannerMinWidth = 30 // Minimum inner width
	boxPadding     = 2  // Spaces either side of the readout
)

// TierStyle returns the readout style for a tier
func TierStyle(tier countdown.Tier) tcell.Style {
	switch tier {
	case countdown.TierUrgent:
		return tcell.StyleDefault.Foreground(tcell.NewHexColor(constant.ColorUrgent)).Bold(true)
	case countdown.TierWarning:
		return tcell.StyleDefault.Foreground(tcell.NewHexColor(constant.ColorWarning))
	default:
		return tcell.StyleDefault.Foreground(tcell.NewHexColor(constant.ColorNeutral))
	}
}

// BannerStyle returns the banner text style
func BannerStyle() tcell.Style {
	return tcell.StyleDefault.Foreground(bannerFg).Background(bannerBg)
}

// Screen is a countdown.Display drawing to a tcell screen.
// Safe for concurrent use, a nil *Screen ignores all calls.
type Screen struct {
	mu     sync.Mutex
	screen tcell.Screen

	title  string
	footer string
	text   string
	tier   countdown.Tier
	banner string
}

// NewScreen wraps an initialized tcell screen
func NewScreen(screen tcell.Screen, title string) *Screen {
	return &Screen{screen: screen, title: title}
}

// SetFooter sets the hint line under the readout
func (s *Screen) SetFooter(footer string) {
	if s == nil {
		return
	}
	s.update(func() { s.footer = footer })
}

func (s *Screen) SetText(text string) {
	if s == nil {
		return
	}
	s.update(func() { s.text = text })
}

func (s *Screen) SetTier(tier countdown.Tier) {
	if s == nil {
		return
	}
	s.update(func() { s.tier = tier })
}

func (s *Screen) ShowBanner(message string) {
	if s == nil {
		return
	}
	s.update(func() { s.banner = message })
}

func (s *Screen) HideBanner() {
	if s == nil {
		return
	}
	s.update(func() { s.banner = "" })
}

// Text returns the current readout
func (s *Screen) Text() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Banner returns the visible banner message, empty when hidden
func (s *Screen) Banner() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

// Draw repaints everything, used after resize
func (s *Screen) Draw() {
	if s == nil {
		return
	}
	s.update(func() {})
}

// update applies a state change and repaints under the lock
func (s *Screen) update(change func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	change()
	s.drawLocked()
	s.screen.Show()
}

func (s *Screen) drawLocked() {
	s.screen.Clear()
	w, h := s.screen.Size()
	if w <= 0 || h <= 0 {
		return
	}

	// Readout box
	boxW := runewidth.StringWidth(s.text) + boxPadding*2 + 2
	boxH := 3
	x := (w - boxW) / 2
	y := (h - boxH) / 2
	style := TierStyle(s.tier)

	drawBox(s.screen, x, y, boxW, boxH, style)
	drawText(s.screen, x+1+boxPadding, y+1, s.text, style)

	if s.title != "" {
		drawText(s.screen, centerX(w, s.title), y-1, s.title, tcell.StyleDefault.Bold(true))
	}
	if s.footer != "" {
		drawText(s.screen, centerX(w, s.footer), y+boxH, s.footer, tcell.StyleDefault.Dim(true))
	}

	if s.banner != "" {
		s.drawBannerLocked(w)
	}
}

// drawBannerLocked renders the banner as a shadowed box, clipped to the screen width
func (s *Screen) drawBannerLocked(w int) {
	msgW := runewidth.StringWidth(s.banner)
	innerW := msgW + 2
	if innerW < bannerMinWidth {
		innerW = bannerMinWidth
	}
	boxW := innerW + 2
	if boxW > w {
		boxW = w
	}
	x := (w - boxW) / 2
	if x < 0 {
		x = 0
	}

	style := BannerStyle()
	fill(s.screen, x+1, bannerTop+1, boxW, 3, tcell.StyleDefault.Background(bannerShadow))
	fill(s.screen, x, bannerTop, boxW, 3, style)
	drawBox(s.screen, x, bannerTop, boxW, 3, style)

	msg := s.banner
	if maxW := boxW - 4; maxW > 0 && msgW > maxW {
		msg = runewidth.Truncate(msg, maxW, "…")
		msgW = runewidth.StringWidth(msg)
	}
	drawText(s.screen, x+(boxW-msgW)/2, bannerTop+1, msg, style.Bold(true))
}

func centerX(w int, text string) int {
	x := (w - runewidth.StringWidth(text)) / 2
	if x < 0 {
		return 0
	}
	return x
}

func drawText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
}

func fill(screen tcell.Screen, x, y, w, h int, style tcell.Style) {
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			screen.SetContent(col, row, ' ', nil, style)
		}
	}
}

func drawBox(screen tcell.Screen, x, y, w, h int, style tcell.Style) {
	if w < 2 || h < 2 {
		return
	}
	right, bottom := x+w-1, y+h-1

	for col := x + 1; col < right; col++ {
		screen.SetContent(col, y, tcell.RuneHLine, nil, style)
		screen.SetContent(col, bottom, tcell.RuneHLine, nil, style)
	}
	for row := y + 1; row < bottom; row++ {
		screen.SetContent(x, row, tcell.RuneVLine, nil, style)
		screen.SetContent(right, row, tcell.RuneVLine, nil, style)
	}
	screen.SetContent(x, y, tcell.RuneULCorner, nil, style)
	screen.SetContent(right, y, tcell.RuneURCorner, nil, style)
	screen.SetContent(x, bottom, tcell.RuneLLCorner, nil, style)
	screen.SetContent(right, bottom, tcell.RuneLRCorner, nil, style)
}
