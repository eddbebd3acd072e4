package sim

// Resource is a single-holder FIFO lock driven by the Scheduler, the
// Go equivalent of simpy.Resource(capacity=1): at most one Activity
// holds it at a time, and Activities that Acquire it while it is held
// queue in arrival order and are granted it, one at a time, as the
// holder Releases. It models both a node's outgoing send buffer and
// the shared channel-use token described in spec.md §4.2.
type Resource struct {
	sched   *Scheduler
	held    bool
	holder  *Activity
	waiters []*Activity
}

// NewResource creates an unheld Resource bound to sched.
func NewResource(sched *Scheduler) *Resource {
	return &Resource{sched: sched}
}

// Lease is the receipt returned by a successful Acquire. Release is
// idempotent: calling it more than once, or on a nil Lease, is a no-op,
// which lets callers defer Release unconditionally.
type Lease struct {
	r        *Resource
	a        *Activity
	released bool
}

// Release hands the Resource to the next waiter in FIFO order, if any,
// or marks it free.
func (l *Lease) Release() {
	if l == nil || l.released {
		return
	}
	l.released = true
	l.r.release()
}

// Holder reports which Activity currently owns the Resource, or nil if
// it is free.
func (r *Resource) Holder() *Activity { return r.holder }

// Acquire blocks the calling Activity a until the Resource is granted
// to it, returning a Lease to Release when done. If the wait is
// interrupted before the grant, Acquire returns a nil Lease and the
// interrupting Wake so the caller can inspect Wake.Cause.
func (r *Resource) Acquire(a *Activity) (*Lease, Wake) {
	if !r.held {
		r.held = true
		r.holder = a
		return &Lease{r: r, a: a}, Wake{}
	}
	r.waiters = append(r.waiters, a)
	a.cancelCurrentWait = func() {
		for i, w := range r.waiters {
			if w == a {
				r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
				break
			}
		}
	}
	w := a.suspend()
	if w.Interrupted {
		return nil, w
	}
	return &Lease{r: r, a: a}, w
}

func (r *Resource) release() {
	if len(r.waiters) > 0 {
		next := r.waiters[0]
		r.waiters = r.waiters[1:]
		r.holder = next
		r.sched.scheduleWake(next, r.sched.now, Wake{})
		return
	}
	r.held = false
	r.holder = nil
}
