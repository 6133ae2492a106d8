// Package tasksync keeps the local task list consistent with the ledger
// contract's authoritative state and serializes user-initiated mutations.
package tasksync

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chaintask/internal/service"
)

// SessionSource exposes the current session. Mutation completions compare
// the session they were issued under against it before applying results.
type SessionSource interface {
	Session() service.Session
}

// Synchronizer owns the in-memory task list: a filtered, newest-first
// projection of the contract's task set for the current session. Only the
// synchronizer mutates the list; session fields belong to the session
// manager.
type Synchronizer struct {
	session SessionSource
	log     *zap.Logger

	mu      sync.Mutex
	ledger  service.Ledger
	tasks   []service.Task
	draft   service.Draft
	loading bool
	busy    bool

	// seq numbers issued loads; applied is the newest committed one.
	// An older in-flight load must never overwrite a newer result.
	seq     uint64
	applied uint64

	subs map[string]func()
}

// New creates a synchronizer. The ledger handle arrives later via SetLedger,
// once the session manager has bound one.
func New(session SessionSource, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{
		session: session,
		log:     log,
		subs:    make(map[string]func()),
	}
}

// SetLedger replaces the bound contract handle. Called by the session
// manager on connect, account switch, and teardown (nil).
func (s *Synchronizer) SetLedger(l service.Ledger) {
	s.mu.Lock()
	s.ledger = l
	s.mu.Unlock()
}

// Tasks returns a snapshot of the local list.
func (s *Synchronizer) Tasks() []service.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]service.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Draft returns the pending unsubmitted input.
func (s *Synchronizer) Draft() service.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft stores unsubmitted input.
func (s *Synchronizer) SetDraft(d service.Draft) {
	s.mu.Lock()
	s.draft = d
	s.mu.Unlock()
}

// Loading reports whether a load is in flight.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Busy reports whether a mutation is outstanding.
func (s *Synchronizer) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Reset discards the local list and pending draft. Called on session
// invalidation; supersedes any in-flight load.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.tasks = nil
	s.draft = service.Draft{}
	s.seq++
	s.applied = s.seq
	s.loading = false
	s.mu.Unlock()
	s.notify()
}

// Subscribe registers a change listener and returns a handle for
// Unsubscribe.
func (s *Synchronizer) Subscribe(fn func()) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.subs[id] = fn
	return id
}

// Unsubscribe removes a listener. Unknown handles are ignored.
func (s *Synchronizer) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func (s *Synchronizer) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Load replaces the local list with the contract's current task set, keeping
// only active tasks, newest id first. Without a connected session and bound
// ledger it is a no-op: that is the normal state before the first connect,
// not an error.
//
// Overlapping loads are resolved last-writer-wins: each load takes a
// sequence number and a completed fetch is discarded when a newer one has
// already committed. On a fetch error the previous list is retained.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.mu.Lock()
	ledger := s.ledger
	if ledger == nil || !s.session.Session().IsConnected() {
		s.mu.Unlock()
		return nil
	}
	s.seq++
	seq := s.seq
	s.loading = true
	issued := s.session.Session()
	s.mu.Unlock()

	fetched, err := ledger.GetMyTasks(ctx)

	s.mu.Lock()
	if seq == s.seq {
		s.loading = false
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", service.ErrSyncFailure, err)
	}
	if seq <= s.applied || s.session.Session() != issued {
		// Superseded by a newer load or a session change.
		s.mu.Unlock()
		s.log.Debug("discarding stale load", zap.Uint64("seq", seq))
		return nil
	}
	s.tasks = project(fetched)
	s.applied = seq
	s.mu.Unlock()

	s.notify()
	return nil
}

// AddTask validates and submits the draft, waits for confirmation, and
// requires the AddTask completion event on the receipt: a confirmed
// transaction that silently did nothing is a rejection, and the draft is
// kept so the input is not lost. On success the draft clears and the list
// reloads.
func (s *Synchronizer) AddTask(ctx context.Context, draft service.Draft) error {
	if err := draft.Validate(); err != nil {
		return err
	}

	ledger, issued, err := s.beginMutation(draft)
	if err != nil {
		return err
	}
	defer s.endMutation()

	tx, err := ledger.AddTask(ctx, draft.Title, draft.Text, false)
	if err != nil {
		return service.WrapProvider(err)
	}
	receipt, err := tx.Wait(ctx)
	if err != nil {
		return service.WrapProvider(err)
	}
	if s.superseded(issued) {
		return nil
	}
	if !service.HasEvent(receipt, service.EventAddTask) {
		return fmt.Errorf("%w: %s", service.ErrMutationRejected, service.EventAddTask)
	}

	s.mu.Lock()
	s.draft = service.Draft{}
	s.mu.Unlock()
	s.notify()
	return s.Load(ctx)
}

// DeleteTask submits a soft delete for id and waits for confirmation under
// the same completion-event rule as AddTask. An ownership rejection from the
// contract surfaces as ErrNotOwner.
func (s *Synchronizer) DeleteTask(ctx context.Context, id uint64) error {
	ledger, issued, err := s.beginMutation(s.Draft())
	if err != nil {
		return err
	}
	defer s.endMutation()

	tx, err := ledger.DeleteTask(ctx, id)
	if err != nil {
		return service.WrapProvider(err)
	}
	receipt, err := tx.Wait(ctx)
	if err != nil {
		return service.WrapProvider(err)
	}
	if s.superseded(issued) {
		return nil
	}
	if !service.HasEvent(receipt, service.EventDeleteTask) {
		return fmt.Errorf("%w: %s", service.ErrMutationRejected, service.EventDeleteTask)
	}
	return s.Load(ctx)
}

// beginMutation takes the single mutation slot. Mutations are serialized per
// session: a second one is rejected with ErrBusy rather than interleaved, so
// conflicting on-chain operations are never issued concurrently.
func (s *Synchronizer) beginMutation(draft service.Draft) (service.Ledger, service.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session.Session()
	if s.ledger == nil || !sess.IsConnected() {
		return nil, service.Session{}, service.ErrNotConnected
	}
	if s.busy {
		return nil, service.Session{}, service.ErrBusy
	}
	s.busy = true
	s.draft = draft
	return s.ledger, sess, nil
}

// endMutation releases the mutation slot. Runs on every exit path.
func (s *Synchronizer) endMutation() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// superseded reports whether the session a mutation was issued under is no
// longer current. Its completion then applies nothing; a disconnect or
// account change while a confirmation is outstanding must not corrupt the
// new session's state.
func (s *Synchronizer) superseded(issued service.Session) bool {
	if s.session.Session() == issued {
		return false
	}
	s.log.Debug("dropping completion for superseded session",
		zap.String("address", issued.Address))
	return true
}

// project filters out soft-deleted tasks and orders by id descending.
func project(tasks []service.Task) []service.Task {
	out := make([]service.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.IsDeleted {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}
