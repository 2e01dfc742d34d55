// Package merge implements MergedStream: a k-way merge over per-source
// LineIterators, yielding entries in non-decreasing timestamp order with
// ascending source-id as the tie-break.
package merge

import (
	"container/heap"
	"context"

	"github.com/bascanada/logium/internal/iterator"
)

// SourceIterator pairs a LineIterator with the source identity used for
// tie-breaking and diagnostics.
type SourceIterator struct {
	SourceID string
	Iter     *iterator.LineIterator
}

// Diagnostic reports a per-entry error surfaced by one source's iterator;
// the merge continues pulling from the other sources.
type Diagnostic struct {
	SourceID string
	Err      error
}

type heapItem struct {
	entry    *iterator.Entry
	sourceID string
	index    int // position in sources, to refill from the same source
}

type entryHeap []heapItem

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].entry.TimestampMs != h[j].entry.TimestampMs {
		return h[i].entry.TimestampMs < h[j].entry.TimestampMs
	}
	return h[i].sourceID < h[j].sourceID
}
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergedStream merges entries from many LineIterators into one
// timestamp-ordered sequence. Not safe for concurrent use.
type MergedStream struct {
	sources []SourceIterator
	heap    entryHeap
	diags   []Diagnostic
}

// New primes the heap by pulling one entry from every source, skipping
// sources that error or end immediately and recording diagnostics for them.
func New(sources []SourceIterator) *MergedStream {
	m := &MergedStream{sources: sources}
	h := make(entryHeap, 0, len(sources))
	for idx, s := range sources {
		m.pullInto(&h, s, idx)
	}
	heap.Init(&h)
	m.heap = h
	return m
}

// pullInto advances one source until it yields an entry, an error (recorded
// as a diagnostic, pulling continues), or end-of-stream.
func (m *MergedStream) pullInto(h *entryHeap, s SourceIterator, index int) {
	for {
		entry, err, more := s.Iter.Next()
		if err != nil {
			m.diags = append(m.diags, Diagnostic{SourceID: s.SourceID, Err: err})
			continue
		}
		if !more {
			return
		}
		heap.Push(h, heapItem{entry: entry, sourceID: s.SourceID, index: index})
		return
	}
}

// Next pops the earliest-ordered entry and refills from its source. Returns
// (nil, nil, false) once every source is exhausted. ctx is checked between
// entries; cancellation drops all remaining iterators and ends the stream.
func (m *MergedStream) Next(ctx context.Context) (*iterator.Entry, []Diagnostic, bool) {
	select {
	case <-ctx.Done():
		m.closeAll()
		return nil, m.drainDiags(), false
	default:
	}

	if m.heap.Len() == 0 {
		return nil, m.drainDiags(), false
	}

	top := heap.Pop(&m.heap).(heapItem)
	m.pullInto(&m.heap, m.sources[top.index], top.index)

	return top.entry, m.drainDiags(), true
}

func (m *MergedStream) drainDiags() []Diagnostic {
	if len(m.diags) == 0 {
		return nil
	}
	d := m.diags
	m.diags = nil
	return d
}

func (m *MergedStream) closeAll() {
	for _, s := range m.sources {
		_ = s.Iter.Close()
	}
	m.heap = nil
}
