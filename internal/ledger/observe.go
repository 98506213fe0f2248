package ledger

import "errors"

var errInvalidCurrency = errors.New("must be a three letter code")

// Subscribe registers fn to receive a snapshot after every committed change.
// Calls happen outside the ledger lock on the mutating goroutine; fn must
// not block. Use Snapshot.Version to discard stale deliveries.
func (l *Ledger) Subscribe(fn func(Snapshot)) (cancel func()) {
	l.subsMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.subsMu.Unlock()

	return func() {
		l.subsMu.Lock()
		delete(l.subs, id)
		l.subsMu.Unlock()
	}
}

func (l *Ledger) hasSubscribers() bool {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	return len(l.subs) > 0
}

// commitLocked bumps the version and captures a snapshot for subscribers.
// The caller holds l.mu for writing.
func (l *Ledger) commitLocked() *Snapshot {
	l.version++
	if !l.hasSubscribers() {
		return nil
	}
	s := l.snapshotLocked()
	return &s
}

func (l *Ledger) publish(s *Snapshot) {
	if s == nil {
		return
	}
	l.subsMu.Lock()
	fns := make([]func(Snapshot), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.subsMu.Unlock()

	for _, fn := range fns {
		fn(*s)
	}
}
