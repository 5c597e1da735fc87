package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// Observer is the document's structural change feed. It batches
// mutations until the consumer drains them with TakeRecords, and
// signals arrival of a fresh batch on Ready. The engine disconnects it
// around its own destructive edits so those are never re-processed.
type Observer struct {
	mu      sync.Mutex
	pending []Mutation
	// Disconnect depth. Nested disconnects stack, and recording only
	// resumes once every one of them has reconnected.
	disconnects int
	ready       chan struct{}

	// One-shot marks for nodes inserted by the highlighter itself.
	// A mark is consumed by the first mutation that reports the node.
	known map[*html.Node]struct{}
}

// Observe attaches (or returns) the document's observer. Observation
// starts connected.
func (d *Document) Observe() *Observer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.observer == nil {
		d.observer = &Observer{
			ready: make(chan struct{}, 1),
			known: make(map[*html.Node]struct{}),
		}
	}
	return d.observer
}

// Ready yields once per batch of pending mutations.
func (o *Observer) Ready() <-chan struct{} { return o.ready }

// TakeRecords drains and returns all pending mutations.
func (o *Observer) TakeRecords() []Mutation {
	o.mu.Lock()
	defer o.mu.Unlock()
	records := o.pending
	o.pending = nil
	return records
}

// Disconnect stops recording. Pending records are kept. Disconnects
// nest: each one must be paired with a Reconnect.
func (o *Observer) Disconnect() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disconnects++
}

// Reconnect undoes one Disconnect; recording resumes when the last
// outstanding disconnect has been undone.
func (o *Observer) Reconnect() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disconnects > 0 {
		o.disconnects--
	}
}

// MarkKnown flags a node the highlighter inserted itself so the
// observation pass that next reports it skips it instead of treating
// it as new unmatched content.
func (d *Document) MarkKnown(n *html.Node) {
	d.mu.Lock()
	o := d.observer
	d.mu.Unlock()
	if o == nil {
		return
	}
	o.mu.Lock()
	o.known[n] = struct{}{}
	o.mu.Unlock()
}

// record funnels every Document mutation through the observer.
// inserted is the node added by a ChildList change, if any; a known
// inserted node consumes its mark and suppresses the record.
func (d *Document) record(m Mutation, inserted *html.Node) {
	d.mu.Lock()
	o := d.observer
	d.mu.Unlock()
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disconnects > 0 {
		return
	}
	if inserted != nil {
		if _, ok := o.known[inserted]; ok {
			delete(o.known, inserted)
			return
		}
	}
	o.pending = append(o.pending, m)
	select {
	case o.ready <- struct{}{}:
	default:
	}
}
