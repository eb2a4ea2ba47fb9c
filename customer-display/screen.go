package main

import (
	"sync"

	"github.com/timlee789/pos-sub000/displaysync"
)

// tipPercentages are the quick-pick buttons offered while tipping.
var tipPercentages = []float64{0.10, 0.15, 0.20}

// TipOption is one rendered tip button.
type TipOption struct {
	Percent float64 `json:"percent"`
	Amount  float64 `json:"amount"`
}

// Screen holds the last snapshot received from the terminal. The renderer
// polls Current; a fresh snapshot fully replaces the previous one.
type Screen struct {
	mu   sync.RWMutex
	snap displaysync.StateSnapshot
}

func NewScreen() *Screen {
	return &Screen{snap: displaysync.StateSnapshot{Mode: displaysync.ModeIdle}}
}

func (s *Screen) Update(snap displaysync.StateSnapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *Screen) Current() displaysync.StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// TipOptions derives the quick-pick amounts from the tip base the terminal
// sent with the tipping snapshot. Empty outside of tipping mode.
func (s *Screen) TipOptions() []TipOption {
	snap := s.Current()
	if snap.Mode != displaysync.ModeTipping || snap.TipBase <= 0 {
		return nil
	}
	opts := make([]TipOption, 0, len(tipPercentages))
	for _, pct := range tipPercentages {
		opts = append(opts, TipOption{Percent: pct, Amount: snap.TipBase * pct})
	}
	return opts
}
