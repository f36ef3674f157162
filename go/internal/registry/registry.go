package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"

	"github.com/mcdev12/guessroom/go/internal/models"
)

const (
	sessionIDPrefix = "session_"
	sessionIDLength = 9
)

// Registry owns every live session and the player -> session index.
//
// Lock order is always session lock first, registry lock second. The
// registry never acquires a session lock while holding its own.
type Registry struct {
	mu             deadlock.RWMutex
	sessions       map[string]*models.GameSession
	playerSessions map[string]string
	clock          clockwork.Clock
}

// NewRegistry creates an empty registry
func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		sessions:       make(map[string]*models.GameSession),
		playerSessions: make(map[string]string),
		clock:          clock,
	}
}

// CanonicalID folds a user supplied session id to the stored form
func CanonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Create registers a new waiting session with masterID as its only player.
func (r *Registry) Create(masterID, masterName string, roundSeconds int) (*models.GameSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.playerSessions[masterID]; ok {
		return nil, fmt.Errorf("player %s already in session %s: %w", masterID, existing, models.ErrDuplicate)
	}

	id := r.newSessionIDLocked()
	sess := models.NewGameSession(id, masterID, masterName, r.clock.Now(), roundSeconds)
	r.sessions[id] = sess
	r.playerSessions[masterID] = id

	log.Debug().
		Str("session_id", id).
		Str("master_id", masterID).
		Msg("Session registered")

	return sess, nil
}

func (r *Registry) newSessionIDLocked() string {
	for {
		raw := strings.ReplaceAll(uuid.NewString(), "-", "")
		id := sessionIDPrefix + raw[:sessionIDLength]
		if _, taken := r.sessions[id]; !taken {
			return id
		}
	}
}

// Find returns the session with the given id. The id is canonicalized first.
func (r *Registry) Find(id string) (*models.GameSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[CanonicalID(id)]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	return sess, nil
}

// FindByPlayer returns the session a player currently belongs to
func (r *Registry) FindByPlayer(playerID string) (*models.GameSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.playerSessions[playerID]
	if !ok {
		return nil, false
	}
	sess, ok := r.sessions[id]
	return sess, ok
}

// FindByMaster returns the session in which playerID is the current master.
// The session lock is taken only after the registry lock has been released.
func (r *Registry) FindByMaster(playerID string) (*models.GameSession, bool) {
	sess, ok := r.FindByPlayer(playerID)
	if !ok {
		return nil, false
	}
	sess.Lock()
	defer sess.Unlock()
	if sess.Closed() || sess.MasterID != playerID {
		return nil, false
	}
	return sess, true
}

// AddMembership adds a player to sess and indexes it. The caller must hold
// the session lock.
func (r *Registry) AddMembership(sess *models.GameSession, playerID, name string) (*models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.playerSessions[playerID]; ok {
		return nil, fmt.Errorf("player %s already in session %s: %w", playerID, existing, models.ErrDuplicate)
	}
	p, err := sess.AddPlayer(playerID, name, false)
	if err != nil {
		return nil, err
	}
	r.playerSessions[playerID] = sess.ID
	return p, nil
}

// RemoveMembership removes a player from sess and from the index. The caller
// must hold the session lock.
func (r *Registry) RemoveMembership(sess *models.GameSession, playerID string) (*models.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := sess.RemovePlayer(playerID)
	if r.playerSessions[playerID] == sess.ID {
		delete(r.playerSessions, playerID)
	}
	return p, ok
}

// Rekey moves a member to a new player id, preserving its state. The caller
// must hold the session lock.
func (r *Registry) Rekey(sess *models.GameSession, oldID, newID string) (*models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.playerSessions[newID]; ok {
		return nil, fmt.Errorf("player %s already in session %s: %w", newID, existing, models.ErrDuplicate)
	}
	p, err := sess.RenamePlayer(oldID, newID)
	if err != nil {
		return nil, err
	}
	delete(r.playerSessions, oldID)
	r.playerSessions[newID] = sess.ID
	return p, nil
}

// Teardown removes sess and every index entry pointing at it, then marks it
// closed. The caller must hold the session lock. It returns the ids that were
// unindexed.
func (r *Registry) Teardown(sess *models.GameSession) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for pid, sid := range r.playerSessions {
		if sid == sess.ID {
			delete(r.playerSessions, pid)
			removed = append(removed, pid)
		}
	}
	if current, ok := r.sessions[sess.ID]; ok && current == sess {
		delete(r.sessions, sess.ID)
	}
	sess.MarkClosed()

	log.Debug().
		Str("session_id", sess.ID).
		Int("players_removed", len(removed)).
		Msg("Session torn down")

	return removed
}

// Members returns the player ids indexed to a session. It reads only the
// index so it is safe to call while holding a session lock.
func (r *Registry) Members(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for pid, sid := range r.playerSessions {
		if sid == sessionID {
			out = append(out, pid)
		}
	}
	sort.Strings(out)
	return out
}

// List returns every live session ordered by creation time
func (r *Registry) List() []*models.GameSession {
	r.mu.RLock()
	out := make([]*models.GameSession, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PlayerCount returns the number of indexed players
func (r *Registry) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.playerSessions)
}
