// Package command implements SEAP's command table (component C5): the
// code-to-handler registry for both command classes, and the outstanding
// -requests map that correlates a reply CMD packet back to the waiter
// blocked on it.
package command

import (
	"context"
	"errors"
	"sync"

	"github.com/openscap-probes/seap/seap/packet"
	"github.com/openscap-probes/seap/sexp"
)

// Handler answers a locally dispatched CMD. Per spec.md §4.4 a handler
// takes the descriptor it arrived on and the request's argument S-exp
// and returns a freshly owned result S-exp (an empty list if it has
// nothing to report). Handlers close over whatever context they need
// rather than receiving one positionally — the idiomatic Go analogue of
// the teacher's Connect-as-first-argument command constructors
// (asdu/cproc.go), generalized so a handler can be a plain closure
// registered at setup time.
type Handler func(sd int, args *sexp.Value) (*sexp.Value, error)

// Sentinel errors for command-table usage mistakes. Named in the
// teacher's plain sentinel-error style (asdu/codec.go's ErrCmdCause,
// ErrTypeIDNotMatch) rather than as seaperr.Errno values: these are
// component-internal misuse errors, not wire-boundary codes.
var (
	ErrUnknownCommand = errors.New("command: no handler registered for code")
	ErrNoMatch        = errors.New("command: no outstanding request for reply id")
	ErrAlreadyPending = errors.New("command: request id already has an outstanding waiter")
	ErrCancelled      = errors.New("command: outstanding request cancelled")
)

// Waiter is the correlation record for a locally issued CMD that expects
// a reply: a result slot plus a completion signal, per spec.md §4.4.
type Waiter struct {
	done  chan struct{}
	value *sexp.Value
	err   error
	once  sync.Once
}

// NewWaiter returns an unresolved Waiter.
func NewWaiter() *Waiter {
	return &Waiter{done: make(chan struct{})}
}

// Wait blocks until the waiter is resolved or ctx is done.
func (w *Waiter) Wait(ctx context.Context) (*sexp.Value, error) {
	select {
	case <-w.done:
		return w.value, w.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *Waiter) resolve(value *sexp.Value, err error) {
	w.once.Do(func() {
		w.value, w.err = value, err
		close(w.done)
	})
}

// Table holds the USR/SYS handler registries and the outstanding-request
// map for one descriptor (seap.Context gives every descriptor its own
// Table — see spec.md §3's Descriptor field (e)).
type Table struct {
	mu       sync.Mutex
	handlers [2]map[uint32]Handler
	pending  map[uint64]*Waiter
}

// NewTable returns an empty command table.
func NewTable() *Table {
	return &Table{
		handlers: [2]map[uint32]Handler{
			packet.ClassUSR: make(map[uint32]Handler),
			packet.ClassSYS: make(map[uint32]Handler),
		},
		pending: make(map[uint64]*Waiter),
	}
}

// Register installs handler for code in the given class, overwriting any
// existing registration (spec.md §4.4: "idempotent overwrite").
func (t *Table) Register(class packet.Class, code uint32, handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[class][code] = handler
}

// Unregister removes the handler, if any, for code in the given class.
func (t *Table) Unregister(class packet.Class, code uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers[class], code)
}

// ExecLocal looks up code in class's table and invokes its handler
// synchronously (spec.md §4.4's EXEC_LOCAL mode).
func (t *Table) ExecLocal(class packet.Class, sd int, code uint32, args *sexp.Value) (*sexp.Value, error) {
	t.mu.Lock()
	handler, ok := t.handlers[class][code]
	t.mu.Unlock()
	if !ok {
		return nil, ErrUnknownCommand
	}
	return handler(sd, args)
}

// Enqueue registers w as the waiter for requestID, returning
// ErrAlreadyPending if one is already outstanding.
func (t *Table) Enqueue(requestID uint64, w *Waiter) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.pending[requestID]; exists {
		return ErrAlreadyPending
	}
	t.pending[requestID] = w
	return nil
}

// Resolve delivers value as the reply to replyID's waiter and wakes it
// (spec.md §4.4's EXEC_WQUEUE mode, reached through ExecWQueue below, and
// the happy path of dispatch_err). It returns ErrNoMatch if no waiter for
// replyID is outstanding.
func (t *Table) Resolve(replyID uint64, value *sexp.Value, err error) error {
	t.mu.Lock()
	w, ok := t.pending[replyID]
	if ok {
		delete(t.pending, replyID)
	}
	t.mu.Unlock()
	if !ok {
		return ErrNoMatch
	}
	w.resolve(value, err)
	return nil
}

// ExecWQueue treats replyID as the id of a CMD previously sent and not
// yet resolved, delivering args as its reply (spec.md §4.4's EXEC_WQUEUE
// mode).
func (t *Table) ExecWQueue(replyID uint64, args *sexp.Value) error {
	return t.Resolve(replyID, args, nil)
}

// CancelAll fails every outstanding waiter with err, used when the
// descriptor they were waiting on is closed (spec.md §8 invariant 3: "the
// waiter is cancelled by close").
func (t *Table) CancelAll(err error) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[uint64]*Waiter)
	t.mu.Unlock()
	for _, w := range pending {
		w.resolve(nil, err)
	}
}

// PendingCount reports the number of outstanding requests, for
// introspection/metrics.
func (t *Table) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
