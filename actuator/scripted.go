package actuator

import (
	"context"
	"sync"
)

// Scripted is useful for testing purposes. It answers Locate and
// ScreenshotMatches from a configurable function and records every call it
// receives, so tests can drive a pipeline through arbitrary UI outcomes
// without a screen.
type Scripted struct {
	mu sync.Mutex

	// LocateFunc answers Locate calls. When nil, every template is found at
	// the origin.
	LocateFunc func(template string, calls int) *Point
	// MatchFunc answers ScreenshotMatches calls. When nil, every template
	// matches.
	MatchFunc func(template string, calls int) bool

	locateCalls map[string]int
	matchCalls  map[string]int
	calls       []string
	typed       []string
}

var _ Actuator = &Scripted{}

// NewScripted creates a scripted actuator where every element is found.
func NewScripted() *Scripted {
	return &Scripted{
		locateCalls: make(map[string]int),
		matchCalls:  make(map[string]int),
	}
}

// Calls returns the ordered call log ("locate:tmpl", "click", "type:abc", ...).
func (s *Scripted) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Typed returns every string passed to TypeText, in order.
func (s *Scripted) Typed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.typed))
	copy(out, s.typed)
	return out
}

func (s *Scripted) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *Scripted) Locate(ctx context.Context, template string, region *Region, confidence float64) (*Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("locate:" + template)
	n := s.locateCalls[template]
	s.locateCalls[template] = n + 1
	if s.LocateFunc == nil {
		return &Point{}, nil
	}
	return s.LocateFunc(template, n), nil
}

func (s *Scripted) MoveTo(ctx context.Context, p Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("move")
	return nil
}

func (s *Scripted) Click(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("click")
	return nil
}

func (s *Scripted) TypeText(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("type:" + text)
	s.typed = append(s.typed, text)
	return nil
}

func (s *Scripted) Scroll(ctx context.Context, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("scroll")
	return nil
}

func (s *Scripted) ScreenshotMatches(ctx context.Context, template string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("screenshot:" + template)
	n := s.matchCalls[template]
	s.matchCalls[template] = n + 1
	if s.MatchFunc == nil {
		return true, nil
	}
	return s.MatchFunc(template, n), nil
}

func (s *Scripted) Hotkey(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := "hotkey"
	for _, k := range keys {
		call += ":" + k
	}
	s.record(call)
	return nil
}
