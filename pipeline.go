package hsmx

import "context"

// The event pipeline: Idle → Resolving → (InternalApply | ExternalApply) →
// Idle, executed entirely on the worker goroutine. One context value
// threads through every stage; the instance is only touched at the single
// apply point with whole-transition results, so a mid-pipeline failure
// leaves it exactly as it was.

// executeLists runs the given action lists in order against one threaded
// context. The pre-flight check picks the path for the whole set: if no
// involved action is deferred the fast synchronous path runs with no
// suspension machinery, otherwise every list goes through the deferred
// path, awaiting each action in declaration order.
func executeLists(ctx context.Context, reg *Registry, mctx Context, evt Event, lists ...[]Action) (Context, []ActionResult, error) {
	var results []ActionResult
	if hasDeferred(reg, lists...) {
		for _, list := range lists {
			var rs []ActionResult
			var err error
			mctx, rs, err = runDeferred(ctx, reg, list, mctx, evt)
			results = append(results, rs...)
			if err != nil {
				return mctx, results, err
			}
		}
		return mctx, results, nil
	}
	for _, list := range lists {
		var rs []ActionResult
		var err error
		mctx, rs, err = runImmediate(reg, list, mctx, evt)
		results = append(results, rs...)
		if err != nil {
			return mctx, results, err
		}
	}
	return mctx, results, nil
}

// process applies one event: resolve, execute, apply, record, notify.
func (in *Instance) process(ctx context.Context, evt Event) (Result, error) {
	in.mu.RLock()
	node, path := in.node, in.path
	// Guards and actions are caller code; they work on a clone so direct
	// mutation can never corrupt the committed context.
	mctx := cloneCtx(in.mctx)
	in.mu.RUnlock()

	m := in.machine
	mt, ok := m.findTransition(evt, node, mctx)
	if !ok {
		// Unmatched events are a no-op, not an error.
		return Result{State: path, Context: mctx}, nil
	}

	if mt.internal {
		newCtx, results, err := executeLists(ctx, m.registry, mctx, evt, mt.trans.Actions)
		if err != nil {
			return Result{}, err
		}
		in.apply(node, newCtx, evt, path)
		return Result{State: path, Context: cloneCtx(newCtx), Results: results}, nil
	}

	// External: exit the current node, run transition actions, move to the
	// target, descend its initial chain, then enter outer-to-inner.
	levels := m.tree.initialDescent(mt.target)
	lists := make([][]Action, 0, len(levels)+2)
	lists = append(lists, m.tree.nodes[node].exit, mt.trans.Actions)
	for _, lvl := range levels {
		lists = append(lists, m.tree.nodes[lvl].entry)
	}

	newCtx, results, err := executeLists(ctx, m.registry, mctx, evt, lists...)
	if err != nil {
		return Result{}, err
	}

	deepest := levels[len(levels)-1]
	newPath := m.tree.nodes[deepest].path
	in.apply(deepest, newCtx, evt, path)
	return Result{State: newPath, Context: cloneCtx(newCtx), Results: results}, nil
}

// apply is the pipeline's single state-update point: path and context
// commit together, the history entry is recorded, subscribers are
// notified.
func (in *Instance) apply(node int, newCtx Context, evt Event, prevPath string) {
	prev := Snapshot{State: prevPath, Context: in.Context()}

	in.mu.Lock()
	in.node = node
	in.path = in.machine.tree.nodes[node].path
	in.mctx = newCtx
	next := Snapshot{State: in.path, Context: cloneCtx(newCtx)}
	in.mu.Unlock()

	in.history.add(newHistoryEntry(prev.State, next.State, newCtx, evt.Name))
	in.notify(Change{Previous: prev, Next: next, Event: evt})
}

// applyRollback restores the snapshot in entry. No entry or exit actions
// run: rollback is explicitly not equivalent to replaying transitions.
func (in *Instance) applyRollback(entry *HistoryEntry) (int, error) {
	// Re-check presence on the worker: the entry may have been evicted
	// between validation and execution.
	steps, ok := in.history.StepsBack(entry)
	if !ok {
		return 0, ErrEntryNotFound
	}
	node, ok := in.machine.tree.resolve(entry.ToState)
	if !ok {
		return 0, ErrEntryNotFound
	}

	in.mu.RLock()
	prev := Snapshot{State: in.path, Context: cloneCtx(in.mctx)}
	in.mu.RUnlock()

	restored := cloneCtx(entry.Context)
	in.mu.Lock()
	in.node = node
	in.path = entry.ToState
	in.mctx = restored
	next := Snapshot{State: in.path, Context: cloneCtx(restored)}
	in.mu.Unlock()

	rec := newHistoryEntry(prev.State, next.State, restored, TriggerRollback)
	rec.Rollback = true
	rec.TargetEntryID = entry.ID
	in.history.add(rec)

	in.notify(Change{
		Previous: prev,
		Next:     next,
		Event:    Event{Name: TriggerRollback},
		Rollback: true,
	})
	return steps, nil
}
