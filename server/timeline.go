// The timeline is the server's serialization point: one worker goroutine
// drains a queue of units of work, so no two units ever touch the model
// concurrently. Connection handling, relay pull, relay push follow-ups
// and the snapshot save all run as units on this queue.

package main

import (
	"sync"
	"time"
)

// Timeline's queue is unbounded: units running on the worker schedule
// follow-up units onto the same queue, so a bounded queue that only the
// worker drains could wedge the worker against itself.
type Timeline struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	done    sync.WaitGroup
}

func newTimeline() *Timeline {
	tl := &Timeline{}
	tl.cond = sync.NewCond(&tl.mu)
	tl.done.Add(1)
	go tl.run()
	return tl
}

func (tl *Timeline) run() {
	defer tl.done.Done()
	tl.mu.Lock()
	for {
		for len(tl.queue) == 0 {
			if tl.stopped {
				tl.mu.Unlock()
				return
			}
			tl.cond.Wait()
		}
		task := tl.queue[0]
		tl.queue = tl.queue[1:]
		if len(tl.queue) == 0 {
			tl.queue = nil
		}
		tl.mu.Unlock()

		task()

		tl.mu.Lock()
	}
}

// Schedule queues a unit of work. Never blocks; safe to call from a unit
// already running on the worker. Units scheduled after Stop are dropped.
func (tl *Timeline) Schedule(task func()) {
	tl.mu.Lock()
	if !tl.stopped {
		tl.queue = append(tl.queue, task)
		tl.cond.Signal()
	}
	tl.mu.Unlock()
}

// ScheduleIn queues the unit after the delay elapses.
func (tl *Timeline) ScheduleIn(d time.Duration, task func()) {
	time.AfterFunc(d, func() { tl.Schedule(task) })
}

// Stop shuts the worker down after draining queued units.
func (tl *Timeline) Stop() {
	tl.mu.Lock()
	tl.stopped = true
	tl.cond.Signal()
	tl.mu.Unlock()
	tl.done.Wait()
}
