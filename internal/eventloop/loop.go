// Package eventloop implements the two-queue cooperative scheduler of
// spec.md §4.7: a `promiseEvents` microtask FIFO and a `postedEvents`
// host-callback FIFO, drained under the rule "empty promiseEvents
// completely before taking one postedEvents item, re-checking
// promiseEvents after each posted dispatch" (spec.md §5 ordering
// guarantees). Timers are delegated to a host-supplied Ops vtable so the
// loop itself never touches a real clock or goroutine scheduler directly.
package eventloop

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/njs-go/njs/internal/value"
)

// Dispatch is a callback an Event or microtask runs when the loop
// services it; the args are whatever the poster supplied to PostEvent.
type Dispatch func(args []value.Value) (value.Value, error)

// Ops is the host's timer vtable (spec.md §4.7 "set_timer/clear_timer").
// The loop never blocks waiting on a timer itself; SetTimer's fire
// callback is expected to call Loop.PostEvent from whatever goroutine the
// host's timer implementation runs on.
type Ops interface {
	SetTimer(delay time.Duration, fire func()) (handle any)
	ClearTimer(handle any)
}

// defaultOps backs timers with time.AfterFunc, adequate for the CLI and
// for tests; a server host embedding the VM supplies its own Ops tied to
// its real event loop (epoll, a worker's own timer wheel, and so on).
type defaultOps struct{}

func (defaultOps) SetTimer(delay time.Duration, fire func()) any {
	return time.AfterFunc(delay, fire)
}

func (defaultOps) ClearTimer(handle any) {
	if t, ok := handle.(*time.Timer); ok {
		t.Stop()
	}
}

// Status is the result of one Tick, mirroring spec.md §6's run() contract.
type Status int

const (
	OK Status = iota
	AGAIN
)

func (s Status) String() string {
	if s == AGAIN {
		return "AGAIN"
	}
	return "OK"
}

// Event is a registered callback with an identity `del_event` can cancel
// and a `once` flag the loop consults after each dispatch (spec.md §4.7).
type Event struct {
	id         uint64
	once       bool
	fn         Dispatch
	hostHandle any
	destructor func()
	deleted    bool
}

type job struct {
	ev   *Event // nil for a bare microtask with no cancellable identity
	fn   Dispatch
	args []value.Value
}

// Loop is one VM instance's scheduler. It is safe to call PostEvent from
// a goroutine other than the one driving Tick (a host timer firing on its
// own goroutine is the expected case); Tick/AddEvent/DelEvent are not
// meant to be called concurrently with each other.
type Loop struct {
	mu            sync.Mutex
	promiseEvents []job
	postedEvents  []job
	events        map[uint64]*Event
	nextID        uint64
	waitingTimers int // registered-but-not-yet-fired timer count

	ops    Ops
	logger *slog.Logger
}

func New(ops Ops) *Loop {
	if ops == nil {
		ops = defaultOps{}
	}
	level := slog.LevelWarn
	if os.Getenv("NJS_DEBUG_LOOP") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	return &Loop{ops: ops, events: make(map[uint64]*Event), logger: logger}
}

// AddEvent registers a callback (spec.md §6 `add_event`). hostHandle and
// destructor are opaque host bookkeeping returned verbatim to DelEvent's
// cleanup; a timer-backed Event stores its *time.Timer (or host
// equivalent) there so ClearTimer can find it again.
func (l *Loop) AddEvent(fn Dispatch, once bool, hostHandle any, destructor func()) *Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	ev := &Event{id: l.nextID, once: once, fn: fn, hostHandle: hostHandle, destructor: destructor}
	l.events[ev.id] = ev
	return ev
}

// SetHostHandle records the handle returned by Ops.SetTimer once the
// caller has it (AddEvent typically runs before the timer is armed, since
// the timer's fire closure needs the Event it posts to).
func (l *Loop) SetHostHandle(ev *Event, handle any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev.hostHandle = handle
}

// StartTimer arms a host timer that posts to ev when it fires, tracking
// the loop's Waiting() count until the timer either fires or is deleted.
func (l *Loop) StartTimer(ev *Event, delay time.Duration, args []value.Value) {
	l.mu.Lock()
	l.waitingTimers++
	l.mu.Unlock()
	handle := l.ops.SetTimer(delay, func() {
		l.mu.Lock()
		if l.waitingTimers > 0 {
			l.waitingTimers--
		}
		l.mu.Unlock()
		l.PostEvent(ev, args)
	})
	l.SetHostHandle(ev, handle)
}

// PostEvent enqueues a dispatch of a previously registered Event (spec.md
// §6 `post_event`); safe to call from any goroutine.
func (l *Loop) PostEvent(ev *Event, args []value.Value) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ev.deleted {
		return
	}
	l.postedEvents = append(l.postedEvents, job{ev: ev, fn: ev.fn, args: args})
	l.logger.Debug("post event", "id", ev.id, "once", ev.once)
}

// PostMicrotask enqueues a callback with no cancellable Event identity —
// the shape Promise resolution uses to schedule a `.then` reaction.
func (l *Loop) PostMicrotask(fn Dispatch, args []value.Value) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.promiseEvents = append(l.promiseEvents, job{fn: fn, args: args})
}

// DelEvent cancels a registered Event (spec.md §4.7 "safe from any
// point"): it is removed from the registry, dequeued from postedEvents if
// currently pending, has its host timer cleared, and its destructor run.
func (l *Loop) DelEvent(ev *Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ev.deleted {
		return
	}
	ev.deleted = true
	delete(l.events, ev.id)
	filtered := l.postedEvents[:0]
	for _, j := range l.postedEvents {
		if j.ev == ev {
			continue
		}
		filtered = append(filtered, j)
	}
	l.postedEvents = filtered
	if ev.hostHandle != nil {
		l.ops.ClearTimer(ev.hostHandle)
	}
	if ev.destructor != nil {
		ev.destructor()
	}
}

// Tick drains every pending microtask, then dispatches at most one posted
// event, re-checking microtasks afterward (spec.md §4.7's drain rule;
// §8's "microtask ordering" testable property falls directly out of this
// loop shape: nothing posted before a promise resolves can run before the
// resolution's reactions do).
func (l *Loop) Tick() (Status, error) {
	for {
		j, ok := l.popPromiseEvent()
		if !ok {
			break
		}
		if _, err := j.fn(j.args); err != nil {
			return AGAIN, err
		}
	}
	j, ok := l.popPostedEvent()
	if ok {
		if _, err := j.fn(j.args); err != nil {
			return AGAIN, err
		}
		if j.ev != nil && j.ev.once {
			l.DelEvent(j.ev)
		}
	}
	if l.Pending() {
		return AGAIN, nil
	}
	return OK, nil
}

func (l *Loop) popPromiseEvent() (job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.promiseEvents) == 0 {
		return job{}, false
	}
	j := l.promiseEvents[0]
	l.promiseEvents = l.promiseEvents[1:]
	return j, true
}

func (l *Loop) popPostedEvent() (job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.postedEvents) == 0 {
		return job{}, false
	}
	j := l.postedEvents[0]
	l.postedEvents = l.postedEvents[1:]
	return j, true
}

// Posted reports whether a postedEvents item is ready to dispatch now.
func (l *Loop) Posted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.postedEvents) > 0
}

// Waiting reports whether any armed-but-not-yet-fired timer exists; a
// host loop must keep polling while this is true even with both queues
// momentarily empty.
func (l *Loop) Waiting() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waitingTimers > 0
}

// Pending reports whether the loop has any reason to be ticked again:
// queued work or an outstanding timer.
func (l *Loop) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.promiseEvents) > 0 || len(l.postedEvents) > 0 || l.waitingTimers > 0
}
