package account

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wireapp/wire-desktop/internal/events"
	"github.com/wireapp/wire-desktop/internal/logging"
)

// Listener is called after every committed change with the new snapshot.
// Listeners run in commit order outside the store lock. They may call
// Snapshot and Subscribe but must not call Dispatch.
type Listener func(State)

// Store owns the account list. Dispatch commits one action at a time;
// readers get value snapshots.
type Store struct {
	mu    sync.Mutex
	state State

	listeners map[int]Listener
	nextID    int

	// Commits are numbered under mu; notification waits on turn until
	// every earlier commit has notified.
	committed uint64
	notified  uint64
	turnMu    sync.Mutex
	turn      *sync.Cond

	bus    *events.EventBus
	logger *logging.Logger
	newID  func() string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithEventBus publishes change events on bus.
func WithEventBus(bus *events.EventBus) StoreOption {
	return func(s *Store) { s.bus = bus }
}

// WithStoreLogger sets the store logger.
func WithStoreLogger(l *logging.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithIDGenerator overrides the generator for account and session ids.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) { s.newID = fn }
}

// NewStore creates a store holding initial.
func NewStore(initial State, opts ...StoreOption) *Store {
	s := &Store{
		state:     initial.Clone(),
		listeners: make(map[int]Listener),
		logger:    logging.NewNopLogger(),
		newID:     uuid.NewString,
	}
	s.turn = sync.NewCond(&s.turnMu)
	if s.state.MaximumAccounts <= 0 {
		s.state.MaximumAccounts = NewState(0).MaximumAccounts
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dispatch applies action and returns the resulting snapshot. Unset ids on
// AddAccountWithSession and ResetIdentity are generated here so Reduce stays
// deterministic.
func (s *Store) Dispatch(action Action) State {
	s.mu.Lock()

	switch a := action.(type) {
	case AddAccountWithSession:
		if a.ID == "" {
			a.ID = s.newID()
		}
		if a.SessionID == "" {
			a.SessionID = s.newID()
		}
		action = a
	case ResetIdentity:
		if a.SessionID == "" {
			a.SessionID = s.newID()
		}
		action = a
	}

	prev := s.state
	next := Reduce(prev, action)
	if Equal(prev, next) {
		snapshot := prev.Clone()
		s.mu.Unlock()
		s.logger.Debug().Str("action", action.Name()).Msg("Account action had no effect")
		return snapshot
	}
	s.state = next

	seq := s.committed
	s.committed++
	listeners := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	s.waitTurn(seq)
	defer s.endTurn()

	s.logger.Debug().Str("action", action.Name()).Int("accounts", len(next.Accounts)).Msg("Account action committed")
	s.publish(action, prev, next)
	for _, fn := range listeners {
		fn(next.Clone())
	}
	return next.Clone()
}

// waitTurn blocks until every commit before seq has notified.
func (s *Store) waitTurn(seq uint64) {
	s.turnMu.Lock()
	for s.notified != seq {
		s.turn.Wait()
	}
	s.turnMu.Unlock()
}

func (s *Store) endTurn() {
	s.turnMu.Lock()
	s.notified++
	s.turnMu.Unlock()
	s.turn.Broadcast()
}

func (s *Store) publish(action Action, prev, next State) {
	if s.bus == nil {
		return
	}

	visible := ""
	if cur := CurrentAccount(next); cur != nil {
		visible = cur.ID
	}
	s.bus.Publish(&events.AccountsChangedEvent{
		BaseEvent:        events.NewBase(events.EventAccountsChanged),
		Action:           action.Name(),
		AccountCount:     len(next.Accounts),
		VisibleAccountID: visible,
	})

	if before, after := TotalBadgeCount(prev), TotalBadgeCount(next); before != after {
		s.bus.Publish(&events.BadgeCountChangedEvent{
			BaseEvent: events.NewBase(events.EventBadgeCountChanged),
			Total:     after,
			Previous:  before,
		})
	}
}

// Subscribe registers fn for committed changes and returns a function that
// removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// AddAccount dispatches AddAccountWithSession and returns the new account.
// ok is false when the list is full or an unbound account already exists.
func (s *Store) AddAccount(ssoCode string) (Account, bool) {
	id := s.generateID()
	next := s.Dispatch(AddAccountWithSession{ID: id, SSOCode: ssoCode})
	return AccountByID(next, id)
}

func (s *Store) generateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newID()
}
