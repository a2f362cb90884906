package logging

import (
	"sync"
)

// ErrorSampler throttles repeated log lines that share a key: the first occurrence and
// then every Nth are let through.
type ErrorSampler struct {
	mu       sync.Mutex
	counts   map[string]int
	interval int
}

// NewErrorSampler lets through the 1st, Nth, 2Nth, ... occurrence of each key.
func NewErrorSampler(interval int) *ErrorSampler {
	if interval < 1 {
		interval = 10
	}
	return &ErrorSampler{
		counts:   make(map[string]int),
		interval: interval,
	}
}

// ShouldLog records one occurrence of key and reports whether to log it.
func (s *ErrorSampler) ShouldLog(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[key]++
	n := s.counts[key]
	return n == 1 || n%s.interval == 0
}

// Count returns the occurrences recorded for key.
func (s *ErrorSampler) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

// Flush forgets key and returns how many of its occurrences were not logged.
func (s *ErrorSampler) Flush(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.counts[key]
	delete(s.counts, key)
	if n == 0 || s.interval == 1 {
		return 0
	}
	return n - 1 - (n / s.interval)
}
