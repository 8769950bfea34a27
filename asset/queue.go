package asset

import "go.uber.org/zap"

// DisposalQueue is a LIFO staging area for resources awaiting
// destruction. Entries are only finalized when the queue is drained,
// never inline, so destruction cannot occur while a still-running system
// holds a transient pointer obtained earlier in the same frame.
//
// The queue is driven by a single thread, like the rest of the manager.
type DisposalQueue struct {
	log   *zap.Logger
	stack []Resource
}

func newDisposalQueue(log *zap.Logger) *DisposalQueue {
	return &DisposalQueue{log: log}
}

// Enqueue marks the resource pending and pushes it. Already-disposed and
// already-pending resources are refused.
func (q *DisposalQueue) Enqueue(res Resource) {
	b := res.base()
	if b.disposed || b.pending {
		return
	}
	b.pending = true
	q.stack = append(q.stack, res)
}

// Len returns the number of pending disposals.
func (q *DisposalQueue) Len() int { return len(q.stack) }

// Drain pops until empty, most recently enqueued first. Resources
// enqueued by disposal hooks during the drain are processed in the same
// pass. Resources queued during one frame are typically released in
// dependency order, so LIFO destroys children before parents.
func (q *DisposalQueue) Drain() {
	for len(q.stack) > 0 {
		n := len(q.stack) - 1
		res := q.stack[n]
		q.stack[n] = nil
		q.stack = q.stack[:n]

		b := res.base()
		if b.disposed {
			continue
		}
		b.pending = false
		if err := b.dispose(ReasonExplicit); err != nil {
			q.log.Warn("deferred disposal failed",
				zap.String("name", b.name),
				zap.Uint64("instance", b.id),
				zap.Error(err))
		}
	}
}
