// Package mock provides an in-memory memory.Archive for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/huddle/pkg/memory"
)

// Archive records everything written to it. Set the Err fields to inject
// failures.
type Archive struct {
	mu sync.Mutex

	BeginErr error
	WriteErr error
	EndErr   error

	calls   []memory.CallRecord
	entries map[string][]memory.Entry
	ended   map[string]memory.CallStats
	writes  int
}

var _ memory.Archive = (*Archive)(nil)

// BeginCall implements memory.Archive.
func (a *Archive) BeginCall(_ context.Context, call memory.CallRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.BeginErr != nil {
		return a.BeginErr
	}
	a.calls = append(a.calls, call)
	return nil
}

// WriteEntries implements memory.Archive.
func (a *Archive) WriteEntries(_ context.Context, callID string, entries []memory.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writes++
	if a.WriteErr != nil {
		return a.WriteErr
	}
	if a.entries == nil {
		a.entries = make(map[string][]memory.Entry)
	}
	a.entries[callID] = append(a.entries[callID], entries...)
	return nil
}

// EndCall implements memory.Archive.
func (a *Archive) EndCall(_ context.Context, callID string, stats memory.CallStats) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.EndErr != nil {
		return a.EndErr
	}
	if a.ended == nil {
		a.ended = make(map[string]memory.CallStats)
	}
	a.ended[callID] = stats
	return nil
}

// Calls returns the recorded call starts.
func (a *Archive) Calls() []memory.CallRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]memory.CallRecord(nil), a.calls...)
}

// Entries returns the entries written for callID.
func (a *Archive) Entries(callID string) []memory.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]memory.Entry(nil), a.entries[callID]...)
}

// Ended returns the stats recorded for callID.
func (a *Archive) Ended(callID string) (memory.CallStats, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.ended[callID]
	return s, ok
}

// WriteCount returns how many WriteEntries calls were made, failed ones included.
func (a *Archive) WriteCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writes
}
