package session

import (
	"sync"
	"time"

	"github.com/jupiterlabs/reengage/internal/log"
)

// Config configures the store.
type Config struct {
	// TTL evicts sessions idle longer than this. 0 disables expiry.
	TTL time.Duration

	// Clock overrides time.Now, for tests. nil means time.Now.
	Clock func() time.Time
}

// entry is the mutable per-user state behind the Session snapshots.
//
// Two locks with distinct jobs: turnMu serializes whole dialogue turns for
// one user (held across classification, retrieval, and generation by
// Store.Lock), while mu guards the fields for the short read/write sections.
// Append must never need turnMu or callers holding Lock would deadlock.
type entry struct {
	turnMu sync.Mutex
	mu     sync.Mutex

	userID         string
	displayName    string
	conversationID string
	stage          Stage
	turns          []Turn
	offerShows     int
	createdAt      time.Time
	updatedAt      time.Time
	lastTimestamp  time.Time
}

// Store is the in-memory session store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	ttl    time.Duration
	now    func() time.Time
	logger log.Logger
}

// NewStore creates a session store.
func NewStore(cfg Config, logger log.Logger) *Store {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      cfg.TTL,
		now:      now,
		logger:   logger,
	}
}

// getEntry returns the live entry for userID, evicting it first if expired.
// Creates the entry when create is true.
func (st *Store) getEntry(userID string, create bool) (*entry, bool) {
	st.mu.RLock()
	e, ok := st.sessions[userID]
	st.mu.RUnlock()

	if ok && st.expired(e) {
		st.mu.Lock()
		// Re-check under the write lock: another goroutine may have
		// already evicted or replaced it.
		if cur, still := st.sessions[userID]; still && cur == e && st.expired(cur) {
			delete(st.sessions, userID)
		}
		st.mu.Unlock()
		ok = false
	}

	if ok || !create {
		return e, ok
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if e, ok = st.sessions[userID]; ok && !st.expired(e) {
		return e, true
	}
	now := st.now()
	e = &entry{
		userID:         userID,
		conversationID: newConversationID(),
		createdAt:      now,
		updatedAt:      now,
	}
	st.sessions[userID] = e
	st.logger.Debug("session created",
		"user_id", userID, "conversation_id", e.conversationID)
	return e, true
}

func (st *Store) expired(e *entry) bool {
	if st.ttl <= 0 {
		return false
	}
	e.mu.Lock()
	updated := e.updatedAt
	e.mu.Unlock()
	return st.now().Sub(updated) > st.ttl
}

// GetOrCreate returns a snapshot of the user's session, creating it when
// absent. DisplayName is recorded only when the session does not have one yet.
func (st *Store) GetOrCreate(userID, displayName string) Session {
	e, _ := st.getEntry(userID, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.displayName == "" && displayName != "" {
		e.displayName = displayName
	}
	return e.snapshotLocked()
}

// Get returns a snapshot of an existing session or ErrSessionNotFound.
func (st *Store) Get(userID string) (Session, error) {
	e, ok := st.getEntry(userID, false)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(), nil
}

// Append records turns for the user atomically: either all of them become
// visible together or none. Timestamps are assigned here and are strictly
// increasing per session even when the clock is frozen, so turn order stays
// total. The session is created if absent.
func (st *Store) Append(userID string, turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	e, _ := st.getEntry(userID, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := st.now()
	for i := range turns {
		ts := now
		if !ts.After(e.lastTimestamp) {
			ts = e.lastTimestamp.Add(time.Nanosecond)
		}
		turns[i].Timestamp = ts
		e.lastTimestamp = ts
	}
	e.turns = append(e.turns, turns...)
	e.updatedAt = now
}

// Reset clears the user's conversation, keeping the session but starting a
// fresh conversation id. Resetting an unknown user is a no-op.
func (st *Store) Reset(userID string) {
	e, ok := st.getEntry(userID, false)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = nil
	e.offerShows = 0
	e.stage = ""
	e.conversationID = newConversationID()
	e.updatedAt = st.now()
	st.logger.Debug("session reset",
		"user_id", userID, "conversation_id", e.conversationID)
}

// SetStage records the funnel stage the user dropped off at.
func (st *Store) SetStage(userID string, stage Stage) {
	e, _ := st.getEntry(userID, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stage = stage
	e.updatedAt = st.now()
}

// TryShowOffer atomically checks the per-session offer counter against cap
// and increments it when under. Exactly one caller wins the last slot under
// concurrency; once the cap is reached every later call returns false.
func (st *Store) TryShowOffer(userID string, limit int) bool {
	if limit <= 0 {
		return false
	}
	e, _ := st.getEntry(userID, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.offerShows >= limit {
		return false
	}
	e.offerShows++
	e.updatedAt = st.now()
	return true
}

// Lock acquires the per-user turn lock and returns its release. Holding it
// serializes complete dialogue turns for one user; other users are
// unaffected.
func (st *Store) Lock(userID string) (unlock func()) {
	e, _ := st.getEntry(userID, true)
	e.turnMu.Lock()
	return e.turnMu.Unlock
}

// Stats counts live sessions and turns.
func (st *Store) Stats() Stats {
	st.mu.RLock()
	entries := make([]*entry, 0, len(st.sessions))
	for _, e := range st.sessions {
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	var s Stats
	for _, e := range entries {
		if st.expired(e) {
			continue
		}
		e.mu.Lock()
		s.ActiveSessions++
		s.TotalTurns += len(e.turns)
		e.mu.Unlock()
	}
	return s
}

// SweepExpired evicts sessions idle past the TTL and reports how many were
// removed. A no-op when expiry is disabled.
func (st *Store) SweepExpired() int {
	if st.ttl <= 0 {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, e := range st.sessions {
		e.mu.Lock()
		idle := st.now().Sub(e.updatedAt)
		e.mu.Unlock()
		if idle > st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		st.logger.Debug("expired sessions evicted", "count", removed)
	}
	return removed
}

// snapshotLocked copies the entry into an immutable Session. Caller holds e.mu.
func (e *entry) snapshotLocked() Session {
	turns := make([]Turn, len(e.turns))
	copy(turns, e.turns)
	return Session{
		UserID:         e.userID,
		DisplayName:    e.displayName,
		ConversationID: e.conversationID,
		Stage:          e.stage,
		Turns:          turns,
		OfferShows:     e.offerShows,
		CreatedAt:      e.createdAt,
		UpdatedAt:      e.updatedAt,
	}
}
