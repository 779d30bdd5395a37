package identity

import (
	"context"
	"sync"
)

// Scorer roles, highest first.
const (
	RoleCreator = "creator"
	RoleAdmin   = "admin"
	RoleScorer  = "scorer"
)

// AllowList is an in-memory scorer registry used when no database is
// configured.
type AllowList struct {
	mu     sync.RWMutex
	grants map[string]map[string]string // match -> user -> role
}

func NewAllowList() *AllowList {
	return &AllowList{grants: make(map[string]map[string]string)}
}

func (a *AllowList) Grant(_ context.Context, matchID, userID, role string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	users := a.grants[matchID]
	if users == nil {
		users = make(map[string]string)
		a.grants[matchID] = users
	}
	if _, ok := users[userID]; !ok {
		users[userID] = role
	}
	return nil
}

func (a *AllowList) Revoke(_ context.Context, matchID, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.grants[matchID], userID)
	return nil
}

func (a *AllowList) CanScore(_ context.Context, userID, matchID string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.grants[matchID][userID]
	return ok, nil
}
