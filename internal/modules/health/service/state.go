package service

import (
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	lastTickUnix  atomic.Int64 // unix seconds
	openPositions atomic.Int64
	autoTrading   atomic.Bool
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) SetOpenPositions(n int) { s.openPositions.Store(int64(n)) }
func (s *State) OpenPositions() int     { return int(s.openPositions.Load()) }

func (s *State) SetAutoTrading(v bool) { s.autoTrading.Store(v) }
func (s *State) AutoTrading() bool     { return s.autoTrading.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
