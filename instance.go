package hsmx

import (
	"context"
	"sync"
)

// Snapshot is an externally-visible view of an instance: current state path
// and a deep-cloned context.
type Snapshot struct {
	State   string
	Context Context
}

// Change describes one applied transition or rollback, delivered to
// subscribers.
type Change struct {
	Previous Snapshot
	Next     Snapshot
	Event    Event
	Rollback bool
}

// Listener receives changes. Panicking listeners are tolerated: a faulty
// observer is isolated and cannot break notification of the others or the
// instance itself.
type Listener func(Change)

// Result is the outcome of a Send: the state and context after the event
// was applied (unchanged for unmatched events) and the action results in
// execution order.
type Result struct {
	State   string
	Context Context
	Results []ActionResult
}

// Instance is a running machine: one current state path, one context, a
// serialized event queue, and a bounded history. The worker goroutine is
// the sole writer of state and context, so every mutation happens at a
// single well-defined apply point per transition.
type Instance struct {
	machine *Machine
	history *History
	queue   *taskQueue

	mu   sync.RWMutex
	node int
	path string
	mctx Context

	subMu   sync.Mutex
	subs    map[int]Listener
	nextSub int

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Start creates an Instance in the deepest state reachable by following
// initial pointers from the machine's initial state, running the entry
// actions of every entered level outer-to-inner. When initial is nil the
// definition's default context is used; either way the instance owns a
// deep clone, so instances never share mutable context.
func (m *Machine) Start(initial Context, opts ...Option) (*Instance, error) {
	o := options{historySize: DefaultHistorySize, queueSize: DefaultQueueSize}
	for _, opt := range opts {
		opt(&o)
	}

	mctx := initial
	if mctx == nil {
		mctx = m.defCtx
	}
	mctx = cloneCtx(mctx)
	if mctx == nil {
		mctx = Context{}
	}

	levels := m.tree.initialDescent(m.initial)
	entryLists := make([][]Action, len(levels))
	for i, lvl := range levels {
		entryLists[i] = m.tree.nodes[lvl].entry
	}
	evt := Event{Name: TriggerStart}
	mctx, _, err := executeLists(context.Background(), m.registry, mctx, evt, entryLists...)
	if err != nil {
		return nil, err
	}

	deepest := levels[len(levels)-1]
	in := &Instance{
		machine: m,
		history: newHistory(o.historySize),
		queue:   newTaskQueue(o.queueSize),
		node:    deepest,
		path:    m.tree.nodes[deepest].path,
		mctx:    mctx,
		subs:    make(map[int]Listener),
		quit:    make(chan struct{}),
	}
	in.history.add(newHistoryEntry("", in.path, mctx, TriggerStart))

	if o.logger != nil {
		in.Subscribe(LogChanges(o.logger))
	}

	in.wg.Add(1)
	go in.run()
	return in, nil
}

// State returns the current dot-separated state path.
func (in *Instance) State() string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.path
}

// Context returns a deep clone of the current context. Mutating the clone
// never affects the instance.
func (in *Instance) Context() Context {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return cloneCtx(in.mctx)
}

// History returns the instance's transition log.
func (in *Instance) History() *History {
	return in.history
}

// Send submits an event and blocks until it has been applied, returning
// the resulting state, context, and action results. Events apply in exact
// Send order. An unmatched event returns the unchanged state and context;
// a failing action returns its error with no partial commit. ctx bounds
// the wait and is handed to deferred actions; cancelling it abandons an
// event that has not started, but never an in-flight transition.
func (in *Instance) Send(ctx context.Context, event string, payload any) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &task{
		kind: taskEvent,
		ctx:  ctx,
		evt:  NewEvent(event, payload),
		done: make(chan taskResult, 1),
	}
	if err := in.queue.push(t); err != nil {
		return Result{}, err
	}
	select {
	case r := <-t.done:
		return r.res, r.err
	case <-ctx.Done():
		if t.state.CompareAndSwap(taskPending, taskCleared) {
			in.queue.remove(t)
			return Result{}, ctx.Err()
		}
		// Already claimed by the worker; the transition completes.
		r := <-t.done
		return r.res, r.err
	}
}

// ClearQueue settles every queued-but-not-started event with
// ErrQueueCleared. The in-flight transition, if any, completes normally.
func (in *Instance) ClearQueue() {
	in.queue.clear(ErrQueueCleared)
}

// SendPriority clears the pending queue and submits the event, so it runs
// immediately after any in-flight transition.
func (in *Instance) SendPriority(ctx context.Context, event string, payload any) (Result, error) {
	in.ClearQueue()
	return in.Send(ctx, event, payload)
}

// Rollback restores the state and context recorded in entry without
// re-running any entry or exit actions — it is a restoration, not a replay.
// The pending queue is cleared first. Returns the number of steps back from
// the current history position. An absent or evicted entry yields
// ErrEntryNotFound.
func (in *Instance) Rollback(entry *HistoryEntry) (int, error) {
	if !in.history.CanRollback(entry) {
		return 0, ErrEntryNotFound
	}
	in.ClearQueue()
	t := &task{
		kind:  taskRollback,
		ctx:   context.Background(),
		entry: entry,
		done:  make(chan taskResult, 1),
	}
	if err := in.queue.push(t); err != nil {
		return 0, err
	}
	r := <-t.done
	return r.stepsBack, r.err
}

// Subscribe registers a listener for every applied transition and
// rollback. The returned function unsubscribes it.
func (in *Instance) Subscribe(l Listener) func() {
	in.subMu.Lock()
	id := in.nextSub
	in.nextSub++
	in.subs[id] = l
	in.subMu.Unlock()
	return func() {
		in.subMu.Lock()
		delete(in.subs, id)
		in.subMu.Unlock()
	}
}

// Stop shuts the worker down. Pending events settle with ErrStopped; the
// in-flight transition completes first. Safe to call multiple times.
func (in *Instance) Stop() {
	in.stopOnce.Do(func() {
		in.queue.close(ErrStopped)
		close(in.quit)
		in.wg.Wait()
	})
}

// run is the single worker loop: one transition in flight at a time, queue
// draining as ordinary message passing.
func (in *Instance) run() {
	defer in.wg.Done()
	for {
		select {
		case <-in.quit:
			return
		case t := <-in.queue.ch:
			in.queue.remove(t)
			if !t.state.CompareAndSwap(taskPending, taskRunning) {
				continue // cleared while queued
			}
			switch t.kind {
			case taskEvent:
				res, err := in.process(t.ctx, t.evt)
				t.settle(taskResult{res: res, err: err})
			case taskRollback:
				steps, err := in.applyRollback(t.entry)
				t.settle(taskResult{stepsBack: steps, err: err})
			}
		}
	}
}

func (in *Instance) notify(c Change) {
	in.subMu.Lock()
	listeners := make([]Listener, 0, len(in.subs))
	for _, l := range in.subs {
		listeners = append(listeners, l)
	}
	in.subMu.Unlock()
	for _, l := range listeners {
		notifyOne(l, c)
	}
}

func notifyOne(l Listener, c Change) {
	defer func() {
		_ = recover() // one faulty observer must not break the rest
	}()
	l(c)
}
