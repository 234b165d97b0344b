// Package fragment tracks which byte ranges of an entry have been
// written so far: a mutex-guarded map keyed by name holding a sorted
// list of ranges per key, with a completeness check against the
// entry's declared total size. Unlike IP fragment reassembly (which
// trims on overlap, preferring first-arrival data per BSD-Right
// semantics), this ledger always coalesces overlapping or adjacent
// ranges — there is no "first write wins" rule for archive restores.
package fragment

import "sync"

// Range is a half-open byte interval [Lo, Hi).
type Range struct {
	Lo uint64
	Hi uint64
}

func (r Range) overlapsOrAdjoins(o Range) bool {
	return r.Lo <= o.Hi && o.Lo <= r.Hi
}

// Node tracks the parts received so far for one logical entry name.
type Node struct {
	Name      string
	TotalSize uint64
	Parts     []Range
}

// IsComplete reports whether Parts coalesce into exactly [0, TotalSize).
func (n *Node) IsComplete() bool {
	if n.TotalSize == 0 {
		return true
	}
	return len(n.Parts) == 1 && n.Parts[0].Lo == 0 && n.Parts[0].Hi == n.TotalSize
}

// RangeExists reports whether [lo, hi) is already fully covered by Parts.
func (n *Node) RangeExists(lo, hi uint64) bool {
	for _, p := range n.Parts {
		if p.Lo <= lo && hi <= p.Hi {
			return true
		}
	}
	return false
}

func (n *Node) add(lo, hi uint64) {
	if lo >= hi {
		return
	}
	r := Range{Lo: lo, Hi: hi}
	merged := make([]Range, 0, len(n.Parts)+1)
	for _, p := range n.Parts {
		if r.overlapsOrAdjoins(p) {
			if p.Lo < r.Lo {
				r.Lo = p.Lo
			}
			if p.Hi > r.Hi {
				r.Hi = p.Hi
			}
			continue
		}
		merged = append(merged, p)
	}
	merged = append(merged, r)
	insertSorted(merged)
	n.Parts = merged
}

func insertSorted(parts []Range) {
	for i := len(parts) - 1; i > 0; i-- {
		if parts[i].Lo < parts[i-1].Lo {
			parts[i], parts[i-1] = parts[i-1], parts[i]
		} else {
			break
		}
	}
}

// Ledger is the process-wide fragment tracker for one archive operation.
type Ledger struct {
	mu    sync.Mutex
	nodes map[string]*Node
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{nodes: make(map[string]*Node)}
}

// Add records that [lo, hi) of name has been written. totalSize
// declares the entry's full size; it is only set the first time a name
// is seen and otherwise ignored.
func (l *Ledger) Add(name string, totalSize, lo, hi uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.nodes[name]
	if !ok {
		n = &Node{Name: name, TotalSize: totalSize}
		l.nodes[name] = n
	}
	n.add(lo, hi)
}

// RangeExists reports whether [lo, hi) of name is already covered.
func (l *Ledger) RangeExists(name string, lo, hi uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.nodes[name]
	if !ok {
		return false
	}
	return n.RangeExists(lo, hi)
}

// IsComplete reports whether name's recorded parts cover its full size.
// A name never seen is reported incomplete.
func (l *Ledger) IsComplete(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.nodes[name]
	if !ok {
		return false
	}
	return n.IsComplete()
}

// Discard removes name's tracking entirely (entry closed/finalized).
func (l *Ledger) Discard(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.nodes, name)
}

// Find returns a copy of the node for name, or nil if unknown.
func (l *Ledger) Find(name string) *Node {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.nodes[name]
	if !ok {
		return nil
	}
	cp := &Node{Name: n.Name, TotalSize: n.TotalSize, Parts: append([]Range(nil), n.Parts...)}
	return cp
}

// Keys returns every name currently tracked, for the end-of-operation
// incomplete-entry sweep.
func (l *Ledger) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.nodes))
	for k := range l.nodes {
		keys = append(keys, k)
	}
	return keys
}
