// Package memory provides in-memory implementations of the checkout storage
// capabilities, used in tests and for running the API without a database.
package memory

import (
	"context"
	"sync"

	"github.com/nordkart/checkout-api/internal/domain/checkout"
)

var _ checkout.Store = (*SessionStore)(nil)

// SessionStore keeps sessions in a mutex-guarded map. Records are copied on
// the way in and out so callers can't mutate stored state.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*checkout.Session
}

// NewSessionStore returns an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*checkout.Session)}
}

// Create stores a copy of the session.
func (s *SessionStore) Create(_ context.Context, sess *checkout.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

// Get returns a copy of the stored session, or checkout.ErrSessionNotFound.
func (s *SessionStore) Get(_ context.Context, id string) (*checkout.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, checkout.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

// Update replaces the stored record, returning checkout.ErrSessionNotFound
// for an unknown id.
func (s *SessionStore) Update(_ context.Context, sess *checkout.Session) (*checkout.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return nil, checkout.ErrSessionNotFound
	}
	s.sessions[sess.ID] = cloneSession(sess)
	return cloneSession(sess), nil
}

func cloneSession(sess *checkout.Session) *checkout.Session {
	c := *sess
	c.Items = append([]checkout.PricedLineItem(nil), sess.Items...)
	c.ShippingOptions = append([]checkout.ShippingOption(nil), sess.ShippingOptions...)
	c.Messages = append([]string(nil), sess.Messages...)
	if sess.ShippingAddress != nil {
		addr := *sess.ShippingAddress
		c.ShippingAddress = &addr
	}
	return &c
}
