package engine

import (
	"context"
	"sync"

	"github.com/homewatch-io/homewatch/internal/event"
)

// assessWork is one queued assessment.
type assessWork struct {
	req     *event.Request
	resultC chan *event.Result // nil for fire-and-forget submissions
}

// workQueue feeds a single consumer goroutine. One consumer serializes every
// pipeline run, so the chain window, duplicate tracking and location history
// are only ever touched by one goroutine at a time.
type workQueue struct {
	ch      chan *assessWork
	process func(*assessWork)
	wg      sync.WaitGroup
}

func newWorkQueue(ctx context.Context, depth int, process func(*assessWork)) *workQueue {
	q := &workQueue{
		ch:      make(chan *assessWork, depth),
		process: process,
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case w, ok := <-q.ch:
				if !ok {
					return
				}
				q.process(w)
			case <-ctx.Done():
				return
			}
		}
	}()
	return q
}

// Submit enqueues without blocking; false means the queue is full.
func (q *workQueue) Submit(w *assessWork) bool {
	select {
	case q.ch <- w:
		return true
	default:
		return false
	}
}

// Drain closes the queue and waits for in-flight work to finish.
func (q *workQueue) Drain() {
	close(q.ch)
	q.wg.Wait()
}

func (q *workQueue) Len() int { return len(q.ch) }

func (q *workQueue) Cap() int { return cap(q.ch) }
