// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"sync"

	"chaintask/internal/service"
)

// FakeLedger is an in-memory implementation of service.Ledger for testing.
// Mutations apply at confirmation time (Wait), and only when the configured
// receipt actually carries the matching event, mirroring how the real
// contract behaves.
type FakeLedger struct {
	mu     sync.Mutex
	tasks  []service.Task
	nextID uint64

	// Error injection for testing
	GetErr    error
	AddErr    error
	DeleteErr error
	WaitErr   error

	// Receipt events for the next mutations. nil means the expected event.
	AddEvents    []string
	DeleteEvents []string

	// WaitGate, when set, blocks Wait until the channel is closed.
	WaitGate chan struct{}

	// Call counters
	GetCalls    int
	AddCalls    int
	DeleteCalls int
}

// NewFakeLedger creates an empty fake ledger.
func NewFakeLedger() *FakeLedger {
	return &FakeLedger{nextID: 1}
}

// Seed replaces the raw task set, including soft-deleted entries.
func (f *FakeLedger) Seed(tasks ...service.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append([]service.Task(nil), tasks...)
	for _, t := range tasks {
		if t.ID >= f.nextID {
			f.nextID = t.ID + 1
		}
	}
}

// Raw returns the raw task set, including soft-deleted entries.
func (f *FakeLedger) Raw() []service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.Task(nil), f.tasks...)
}

// GetMyTasks implements service.Ledger.
func (f *FakeLedger) GetMyTasks(ctx context.Context) ([]service.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	return append([]service.Task(nil), f.tasks...), nil
}

// AddTask implements service.Ledger.
func (f *FakeLedger) AddTask(ctx context.Context, title, text string, isDeleted bool) (service.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AddCalls++
	if f.AddErr != nil {
		return nil, f.AddErr
	}

	events := f.AddEvents
	if events == nil {
		events = []string{service.EventAddTask}
	}
	return &fakeTx{
		events:  events,
		waitErr: f.WaitErr,
		gate:    f.WaitGate,
		apply: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if !hasName(events, service.EventAddTask) {
				return
			}
			f.tasks = append(f.tasks, service.Task{
				ID:        f.nextID,
				Title:     title,
				Text:      text,
				IsDeleted: isDeleted,
			})
			f.nextID++
		},
	}, nil
}

// DeleteTask implements service.Ledger.
func (f *FakeLedger) DeleteTask(ctx context.Context, id uint64) (service.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		return nil, f.DeleteErr
	}

	events := f.DeleteEvents
	if events == nil {
		events = []string{service.EventDeleteTask}
	}
	return &fakeTx{
		events:  events,
		waitErr: f.WaitErr,
		gate:    f.WaitGate,
		apply: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if !hasName(events, service.EventDeleteTask) {
				return
			}
			for i := range f.tasks {
				if f.tasks[i].ID == id {
					f.tasks[i].IsDeleted = true
				}
			}
		},
	}, nil
}

// Bind adapts the fake to the session manager's binder signature; every
// address binds to the same ledger.
func (f *FakeLedger) Bind(ctx context.Context, address string) (service.Ledger, error) {
	return f, nil
}

type fakeTx struct {
	events  []string
	waitErr error
	gate    chan struct{}
	apply   func()
}

func (t *fakeTx) Wait(ctx context.Context) (service.Receipt, error) {
	if t.gate != nil {
		select {
		case <-t.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if t.waitErr != nil {
		return nil, t.waitErr
	}
	t.apply()
	return &fakeReceipt{events: t.events}, nil
}

type fakeReceipt struct {
	events []string
}

func (r *fakeReceipt) Events() []string {
	return r.events
}

func hasName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
