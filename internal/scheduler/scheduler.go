// Package scheduler implements the Scheduler component from spec.md §4.6: a
// process-wide priority structure keyed by absolute due-time, drained by a
// background tick loop that invokes due verbs through the dispatcher
// Runner.
//
// Grounded on the teacher's internal/app/services/automation.Scheduler: a
// lifecycle-managed (Name/Start/Stop) ticker goroutine that drains due work
// on every tick and logs per-item failures without tearing down the loop.
// The teacher's job store is polled from Postgres on each tick; this
// scheduler instead holds its due-time queue in memory (spec.md never asks
// for scheduled-call durability across restarts), so the heap replaces the
// teacher's ListJobs poll.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	core "github.com/R3E-Network/worldcore/internal/core/service"
	"github.com/R3E-Network/worldcore/internal/dispatcher"
	"github.com/R3E-Network/worldcore/internal/interp"
)

// entry is one pending scheduled verb call.
type entry struct {
	due      time.Time
	entityID int64
	verbName string
	args     []any
	seq      uint64 // tie-breaker so heap order is stable for equal due times
}

// dueQueue is a container/heap.Interface min-heap ordered by due time.
type dueQueue []*entry

func (q dueQueue) Len() int { return len(q) }
func (q dueQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}
func (q dueQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *dueQueue) Push(x any)   { *q = append(*q, x.(*entry)) }
func (q *dueQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Scheduler drains due scheduled verb calls on a fixed tick. It implements
// opcodes.Scheduler (ScheduleVerb) so the `schedule()` opcode can enqueue
// work into it directly from a running script.
type Scheduler struct {
	runner *dispatcher.Runner
	log    *logrus.Entry
	tick   time.Duration
	gas    int64

	mu      sync.Mutex
	queue   dueQueue
	nextSeq uint64

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New constructs a Scheduler. tick defaults to 100ms and gas to
// interp.DefaultGas when zero, matching spec.md §4.6's "e.g. every 100 ms"
// and the default gas budget it calls for.
func New(runner *dispatcher.Runner, log *logrus.Entry, tick time.Duration, gas int64) *Scheduler {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	if gas <= 0 {
		gas = interp.DefaultGas
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{runner: runner, log: log, tick: tick, gas: gas}
}

// Name identifies the scheduler as a lifecycle-managed component.
func (s *Scheduler) Name() string { return "scheduler" }

// Descriptor implements system.DescriptorProvider.
func (s *Scheduler) Descriptor() core.Descriptor {
	return core.Descriptor{Name: s.Name(), Layer: core.LayerScheduler, Capabilities: []string{"delay-queue"}}
}

// ScheduleVerb enqueues a verb call due delayMS milliseconds from now. It
// satisfies the opcodes.Scheduler interface consumed by the schedule()
// opcode (spec.md §4.6: "may be called from within a verb").
func (s *Scheduler) ScheduleVerb(target int64, verbName string, args []any, delayMS int64) {
	if delayMS < 0 {
		delayMS = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	heap.Push(&s.queue, &entry{
		due:      time.Now().Add(time.Duration(delayMS) * time.Millisecond),
		entityID: target,
		verbName: verbName,
		args:     args,
		seq:      s.nextSeq,
	})
}

// Pending reports the number of calls still waiting to fire, for tests and
// diagnostics.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Start begins the background tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.drain(runCtx)
			}
		}
	}()

	s.log.Info("scheduler started")
	return nil
}

// Stop halts the tick loop and waits for the current drain to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("scheduler stopped")
	return nil
}

// drain pops and invokes every entry whose due time has passed. Each
// invocation gets a fresh context (caller = this = the entity, a default
// gas budget, the entity's stored args); a failing invocation is logged and
// does not stop the loop (spec.md §4.6).
func (s *Scheduler) drain(ctx context.Context) {
	now := time.Now()
	var due []*entry
	s.mu.Lock()
	for s.queue.Len() > 0 && s.queue[0].due.Before(now) {
		due = append(due, heap.Pop(&s.queue).(*entry))
	}
	s.mu.Unlock()

	for _, e := range due {
		args := e.args
		if args == nil {
			args = []any{}
		}
		_, warnings, err := s.runner.InvokeFresh(ctx, e.entityID, e.entityID, e.verbName, args, s.gas, nil)
		log := s.log.WithFields(logrus.Fields{"entity": e.entityID, "verb": e.verbName})
		if err != nil {
			if se, ok := interp.AsScriptError(err); ok {
				log.WithField("kind", se.Kind).Warn("scheduled verb call failed")
			} else {
				log.WithError(err).Warn("scheduled verb call failed")
			}
			continue
		}
		for _, w := range warnings {
			log.Warn("scheduled verb warning: " + w)
		}
	}
}
