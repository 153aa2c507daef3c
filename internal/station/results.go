package station

import (
	"sync"

	"github.com/sctest/station/internal/diag"
)

// Results holds the current result of every catalog test. Entries are
// created Untested from the catalog and never added or removed afterwards.
type Results struct {
	mu     sync.RWMutex
	order  []string
	status map[string]diag.Result
}

// NewResults creates a store with every test of c Untested.
func NewResults(c *diag.Catalog) *Results {
	r := &Results{status: make(map[string]diag.Result, c.Len())}
	for _, d := range c.Tests() {
		r.order = append(r.order, d.Label)
		r.status[d.Label] = diag.Untested
	}
	return r
}

// Record sets the result for label. Unknown labels are ignored and Record
// reports false.
func (r *Results) Record(label string, res diag.Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.status[label]; !ok {
		return false
	}
	r.status[label] = res
	return true
}

// Get returns the result for label.
func (r *Results) Get(label string) (diag.Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.status[label]
	return res, ok
}

// Len returns the number of known tests.
func (r *Results) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.status)
}

// Snapshot returns the results in catalog order.
func (r *Results) Snapshot() diag.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]diag.Entry, len(r.order))
	for i, label := range r.order {
		entries[i] = diag.Entry{Label: label, Result: r.status[label]}
	}
	return diag.Report{Entries: entries}
}

// Reset marks every test Untested.
func (r *Results) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for label := range r.status {
		r.status[label] = diag.Untested
	}
}
