package sim

import "container/heap"

// Time is simulated virtual time, in microseconds. Zero is the instant
// the scheduler is created.
type Time int64

// Wake describes why a suspended Activity has been resumed.
type Wake struct {
	Interrupted bool
	Cause       interface{}
}

// Activity is a single cooperative, long-running task (generator, MAC
// send, ACK wait, routing beacon, ...) driven by a Scheduler. It is
// implemented as a goroutine, but the Scheduler never resumes more than
// one Activity at a time: Run blocks on the resumed Activity's yield
// channel until that Activity reaches its next suspension point, so no
// two Activities ever execute their bodies concurrently. This gives the
// single-threaded cooperative semantics spec.md §5 requires while using
// goroutines as the underlying coroutine mechanism, mirroring the
// teacher's per-entity goroutine+channel+select idiom.
type Activity struct {
	name   string
	sched  *Scheduler
	resume chan Wake
	yield  chan struct{}

	finished bool
	waiters  []*Activity

	// cancelCurrentWait, if set, undoes whatever registration the
	// Activity currently has outstanding (a pending timeout event, a
	// resource wait-queue entry, a child-wait registration) so that an
	// Interrupt can supersede it cleanly.
	cancelCurrentWait func()
}

// Name returns the diagnostic name the Activity was spawned with.
func (a *Activity) Name() string { return a.name }

func (a *Activity) suspend() Wake {
	a.yield <- struct{}{}
	w := <-a.resume
	a.cancelCurrentWait = nil
	return w
}

// Timeout suspends the calling Activity until d has elapsed, or until
// it is interrupted, whichever comes first.
func (a *Activity) Timeout(d Time) Wake {
	if d < 0 {
		d = 0
	}
	ev := a.sched.scheduleWake(a, a.sched.now+d, Wake{})
	a.cancelCurrentWait = func() { ev.cancelled = true }
	return a.suspend()
}

// WaitFor suspends the calling Activity until child finishes (or the
// wait is interrupted). Per spec.md §5, a parent that never calls
// WaitFor does not cancel its children: they simply outlive it.
func (a *Activity) WaitFor(child *Activity) Wake {
	if child.finished {
		return Wake{}
	}
	child.waiters = append(child.waiters, a)
	a.cancelCurrentWait = func() {
		for i, w := range child.waiters {
			if w == a {
				child.waiters = append(child.waiters[:i], child.waiters[i+1:]...)
				break
			}
		}
	}
	return a.suspend()
}

// Scheduler is the single source of mutable shared state in the
// simulation: an integer virtual clock plus an event heap ordered by
// (resume_time, insertion_seq). It is not safe for concurrent use from
// more than one goroutine "at once" in the ordinary sense, but that's
// exactly the point: only the Scheduler's own Run loop, and whichever
// single Activity it has currently resumed, ever touch it.
type Scheduler struct {
	now     Time
	horizon Time
	queue   eventQueue
	seq     uint64
}

// NewScheduler creates a Scheduler whose clock starts at zero.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now returns the current virtual time.
func (s *Scheduler) Now() Time { return s.now }

type event struct {
	at        Time
	seq       uint64
	act       *Activity
	w         Wake
	cancelled bool
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x interface{}) {
	*q = append(*q, x.(*event))
}
func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

func (s *Scheduler) scheduleWake(a *Activity, at Time, w Wake) *event {
	s.seq++
	ev := &event{at: at, seq: s.seq, act: a, w: w}
	heap.Push(&s.queue, ev)
	return ev
}

// Spawn creates a new Activity running fn and schedules its first
// resume for the current instant.
func (s *Scheduler) Spawn(name string, fn func(a *Activity)) *Activity {
	a := &Activity{
		name:   name,
		sched:  s,
		resume: make(chan Wake),
		yield:  make(chan struct{}),
	}
	go func() {
		<-a.resume
		fn(a)
		a.finished = true
		waiters := a.waiters
		a.waiters = nil
		for _, w := range waiters {
			s.scheduleWake(w, s.now, Wake{})
		}
		a.yield <- struct{}{}
	}()
	s.scheduleWake(a, s.now, Wake{})
	return a
}

// Interrupt delivers cause to target at its next suspension point,
// cancelling whatever timeout/resource-wait/child-wait it currently
// has outstanding. Per spec.md §5, the target must observe the
// interrupt and handle it; this scheduler only guarantees delivery.
func (s *Scheduler) Interrupt(target *Activity, cause interface{}) {
	if target.finished {
		return
	}
	if target.cancelCurrentWait != nil {
		target.cancelCurrentWait()
		target.cancelCurrentWait = nil
	}
	s.scheduleWake(target, s.now, Wake{Interrupted: true, Cause: cause})
}

// Run drains the event queue, advancing the virtual clock, until no
// events remain or the next event would fire at or after horizon.
func (s *Scheduler) Run(horizon Time) {
	s.horizon = horizon
	for s.queue.Len() > 0 {
		next := s.queue[0]
		if next.at >= s.horizon {
			return
		}
		heap.Pop(&s.queue)
		if next.cancelled {
			continue
		}
		s.now = next.at
		next.act.resume <- next.w
		<-next.act.yield
	}
}
