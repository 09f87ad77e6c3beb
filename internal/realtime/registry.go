// Package realtime owns live session presence, broadcast group membership
// and the routing of ride events to their audience.
package realtime

import (
	"sync"

	"ridehail/internal/models"
	"ridehail/internal/observability"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session is a read-only view of a registered session.
type Session struct {
	ID      string
	Kind    models.ActorKind
	ActorID primitive.ObjectID
}

type actorKey struct {
	kind models.ActorKind
	id   primitive.ObjectID
}

type sessionEntry struct {
	actor  actorKey
	groups map[GroupID]struct{}
}

// Registry maps actors to their single live session and tracks group
// membership. One mutex guards both so that a session never appears in a
// group after it has been disconnected.
type Registry struct {
	mu       sync.RWMutex
	actors   map[actorKey]string
	sessions map[string]*sessionEntry
	groups   map[GroupID]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		actors:   make(map[actorKey]string),
		sessions: make(map[string]*sessionEntry),
		groups:   make(map[GroupID]map[string]struct{}),
	}
}

// Connect binds sessionID to the actor. A previous session of the same actor
// is dropped with all its groups and its id is returned so the transport can
// close it.
func (r *Registry) Connect(kind models.ActorKind, actorID primitive.ObjectID, sessionID string) (string, error) {
	if !kind.IsValid() {
		return "", utils.NewValidationError("invalid actor kind", map[string]string{"kind": string(kind)})
	}
	if sessionID == "" || actorID.IsZero() {
		return "", utils.NewValidationError("session id and actor id are required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := actorKey{kind: kind, id: actorID}

	if _, ok := r.sessions[sessionID]; ok {
		r.removeSessionLocked(sessionID)
	}

	replaced, hadPrevious := r.actors[key]
	if hadPrevious && replaced != sessionID {
		r.removeSessionLocked(replaced)
		observability.SessionsReplaced.Inc()
	} else {
		replaced = ""
	}

	r.actors[key] = sessionID
	r.sessions[sessionID] = &sessionEntry{
		actor:  key,
		groups: make(map[GroupID]struct{}),
	}
	r.syncGaugesLocked()

	return replaced, nil
}

// Disconnect removes the session and every group membership it holds. It is
// a no-op for unknown sessions.
func (r *Registry) Disconnect(sessionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	s := Session{ID: sessionID, Kind: entry.actor.kind, ActorID: entry.actor.id}
	r.removeSessionLocked(sessionID)
	r.syncGaugesLocked()
	return s, true
}

func (r *Registry) Lookup(kind models.ActorKind, actorID primitive.ObjectID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, ok := r.actors[actorKey{kind: kind, id: actorID}]
	return sessionID, ok
}

func (r *Registry) Session(sessionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return Session{ID: sessionID, Kind: entry.actor.kind, ActorID: entry.actor.id}, true
}

func (r *Registry) Join(sessionID string, group GroupID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return utils.NewNotFoundError("session")
	}
	r.joinLocked(sessionID, group)
	r.syncGaugesLocked()
	return nil
}

func (r *Registry) Leave(sessionID string, group GroupID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(sessionID, group)
	r.syncGaugesLocked()
}

// Members returns a snapshot of the sessions in group, minus any excluded ids.
func (r *Registry) Members(group GroupID, exclude ...string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.groups[group]
	out := make([]string, 0, len(members))
	for sessionID := range members {
		if containsString(exclude, sessionID) {
			continue
		}
		out = append(out, sessionID)
	}
	return out
}

func (r *Registry) Groups(sessionID string) []GroupID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]GroupID, 0, len(entry.groups))
	for g := range entry.groups {
		out = append(out, g)
	}
	return out
}

func (r *Registry) IsMember(sessionID string, group GroupID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.groups[group][sessionID]
	return ok
}

func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Drain clears all presence state and returns the ids of the sessions that
// were live.
func (r *Registry) Drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.actors = make(map[actorKey]string)
	r.sessions = make(map[string]*sessionEntry)
	r.groups = make(map[GroupID]map[string]struct{})
	r.syncGaugesLocked()
	return ids
}

func (r *Registry) removeSessionLocked(sessionID string) {
	entry, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	for g := range entry.groups {
		r.dropMemberLocked(g, sessionID)
	}
	if current, ok := r.actors[entry.actor]; ok && current == sessionID {
		delete(r.actors, entry.actor)
	}
	delete(r.sessions, sessionID)
}

func (r *Registry) joinLocked(sessionID string, group GroupID) {
	entry, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	members, ok := r.groups[group]
	if !ok {
		members = make(map[string]struct{})
		r.groups[group] = members
	}
	members[sessionID] = struct{}{}
	entry.groups[group] = struct{}{}
}

func (r *Registry) leaveLocked(sessionID string, group GroupID) {
	if entry, ok := r.sessions[sessionID]; ok {
		delete(entry.groups, group)
	}
	r.dropMemberLocked(group, sessionID)
}

func (r *Registry) dropMemberLocked(group GroupID, sessionID string) {
	members, ok := r.groups[group]
	if !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(r.groups, group)
	}
}

func (r *Registry) syncGaugesLocked() {
	observability.SessionsConnected.Set(float64(len(r.sessions)))
	observability.RidersAvailable.Set(float64(len(r.groups[AvailablePool()])))
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
