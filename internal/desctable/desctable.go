// Package desctable implements SEAP's descriptor table (component C3): a
// dense, reusable-handle mapping from small nonnegative integers to
// descriptor state, plus the per-descriptor monotonic id generators the
// send paths stamp packets with.
package desctable

import (
	"sync"
	"sync/atomic"

	"github.com/openscap-probes/seap/seap/command"
	"github.com/openscap-probes/seap/seap/scheme"
	"github.com/openscap-probes/seap/seaperr"
	"github.com/openscap-probes/seap/sexp"
)

// Descriptor is the per-link state a table slot owns.
type Descriptor struct {
	Conn   scheme.Conn
	Scheme string
	Cmds   *command.Table

	nextMsgID uint64
	nextCmdID uint64

	mu          sync.Mutex
	sendPending bool
	pendingErrs []PendingErr
}

// PendingErr is an ERR packet that arrived with no matching local waiter,
// queued for later retrieval via recv_err/recv_err_by_id.
type PendingErr struct {
	Type     uint8
	Code     uint32
	TargetID uint64
	Data     *sexp.Value
}

// GenMsgID returns the next strictly increasing message id for this
// descriptor. Wraps on overflow per spec.md §4.2.
func (d *Descriptor) GenMsgID() uint64 {
	return atomic.AddUint64(&d.nextMsgID, 1)
}

// GenCmdID returns the next strictly increasing command id for this
// descriptor.
func (d *Descriptor) GenCmdID() uint64 {
	return atomic.AddUint64(&d.nextCmdID, 1)
}

// SendPending reports whether this descriptor has an in-progress partial
// send that must be flushed before any other send, per spec.md §9's
// ostate note.
func (d *Descriptor) SendPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendPending
}

// SetSendPending records or clears the in-progress marker.
func (d *Descriptor) SetSendPending(pending bool) {
	d.mu.Lock()
	d.sendPending = pending
	d.mu.Unlock()
}

// PushPendingErr queues an ERR packet that arrived with no matching local
// waiter, for later retrieval via RecvErr/RecvErrByID.
func (d *Descriptor) PushPendingErr(e PendingErr) {
	d.mu.Lock()
	d.pendingErrs = append(d.pendingErrs, e)
	d.mu.Unlock()
}

// RecvErr pops the oldest pending ERR. ok is false if none are queued.
func (d *Descriptor) RecvErr() (e PendingErr, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pendingErrs) == 0 {
		return PendingErr{}, false
	}
	e, d.pendingErrs = d.pendingErrs[0], d.pendingErrs[1:]
	return e, true
}

// RecvErrByID pops the first pending ERR whose TargetID matches id. ok is
// false if none match.
func (d *Descriptor) RecvErrByID(id uint64) (e PendingErr, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, pe := range d.pendingErrs {
		if pe.TargetID == id {
			d.pendingErrs = append(d.pendingErrs[:i], d.pendingErrs[i+1:]...)
			return pe, true
		}
	}
	return PendingErr{}, false
}

// Table is the slice-backed dense descriptor table; a nil slot is free.
// Add/Del mutate the
// slot slice and must only be called from the table's owning goroutine
// (spec.md §5: "all other table mutation requires exclusive access");
// the id generators on individual Descriptors remain safe for concurrent
// use from any goroutine.
type Table struct {
	mu       sync.Mutex
	slots    []*Descriptor
	maxSlots int
}

// DefaultMaxDescriptors is SEAP_MAX_OPENDESC's default.
const DefaultMaxDescriptors = 1024

// New returns an empty table bounded at maxSlots. A maxSlots of 0 uses
// DefaultMaxDescriptors.
func New(maxSlots int) *Table {
	if maxSlots <= 0 {
		maxSlots = DefaultMaxDescriptors
	}
	return &Table{maxSlots: maxSlots}
}

// Add allocates the lowest free slot and stores d there, per spec.md
// §4.2's allocation tie-break. Reports EMFILE if the table is full.
func (t *Table) Add(d *Descriptor) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, slot := range t.slots {
		if slot == nil {
			t.slots[i] = d
			return i, nil
		}
	}
	if len(t.slots) >= t.maxSlots {
		return -1, seaperr.New("desctable.Add", seaperr.EMFILE)
	}
	t.slots = append(t.slots, d)
	return len(t.slots) - 1, nil
}

// Get returns the descriptor at handle, or EBADF if the slot is empty or
// out of range.
func (t *Table) Get(handle int) (*Descriptor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if handle < 0 || handle >= len(t.slots) || t.slots[handle] == nil {
		return nil, seaperr.New("desctable.Get", seaperr.EBADF)
	}
	return t.slots[handle], nil
}

// Del frees handle so it can be reused by a later Add. Reports EBADF if
// the slot was already empty.
func (t *Table) Del(handle int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if handle < 0 || handle >= len(t.slots) || t.slots[handle] == nil {
		return seaperr.New("desctable.Del", seaperr.EBADF)
	}
	t.slots[handle] = nil
	return nil
}

// Len reports how many slots are currently occupied.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, slot := range t.slots {
		if slot != nil {
			n++
		}
	}
	return n
}

// Snapshot is a point-in-time, read-only view of one occupied slot, for
// introspection endpoints.
type Snapshot struct {
	SD             int
	Scheme         string
	PendingReplies int
}

// Snapshots returns a Snapshot for every occupied slot, ordered by
// handle.
func (t *Table) Snapshots() []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Snapshot, 0, len(t.slots))
	for i, d := range t.slots {
		if d == nil {
			continue
		}
		out = append(out, Snapshot{SD: i, Scheme: d.Scheme, PendingReplies: d.Cmds.PendingCount()})
	}
	return out
}

// CloseAll calls conn.Close for every occupied slot and empties the
// table, the descriptor-table half of Context teardown (spec.md §3's
// "destroys its descriptor table, closing all still-open descriptors").
func (t *Table) CloseAll() {
	t.mu.Lock()
	slots := t.slots
	t.slots = nil
	t.mu.Unlock()

	for _, d := range slots {
		if d == nil {
			continue
		}
		if d.Conn != nil {
			d.Conn.Close()
		}
		if d.Cmds != nil {
			d.Cmds.CancelAll(command.ErrCancelled)
		}
	}
}
