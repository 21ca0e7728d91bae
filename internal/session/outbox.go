package session

import (
	"sync"

	"github.com/codebuildervaibhav/segment-annotator/internal/render"
)

// DefaultRenderBuffer is how many intent batches may wait for one renderer
// before it is detached
const DefaultRenderBuffer = 256

type renderBatch struct {
	track   int
	intents []render.Intent
}

// outbox feeds one renderer from its own goroutine. Edits only ever offer
// batches to it, so a stalled client cannot hold the session lock.
type outbox struct {
	r     render.Renderer
	queue chan renderBatch
	once  sync.Once
}

func newOutbox(r render.Renderer, size int) *outbox {
	return &outbox{r: r, queue: make(chan renderBatch, size)}
}

// offer queues a batch without blocking and reports whether it fit
func (o *outbox) offer(b renderBatch) bool {
	select {
	case o.queue <- b:
		return true
	default:
		return false
	}
}

// run delivers batches in order until the outbox is stopped or the
// renderer fails
func (o *outbox) run(onError func(error)) {
	for b := range o.queue {
		if err := o.r.Render(b.track, b.intents); err != nil {
			onError(err)
			return
		}
	}
}

// stop ends delivery; callers hold s.mu so no offer races the close
func (o *outbox) stop() {
	o.once.Do(func() { close(o.queue) })
}
