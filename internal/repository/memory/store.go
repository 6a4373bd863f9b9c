// Package memory implements repository.Store in process memory. It backs
// tests and the STORAGE_BACKEND=memory mode.
package memory

import (
	"context"
	"sync"
	"time"

	"podshare/internal/models"
	"podshare/internal/repository"
)

type memberKey struct {
	podID, userID uint
}

// Store is an in-memory repository.Store. Values are copied in and out so
// callers never alias stored rows.
type Store struct {
	mu       sync.RWMutex
	users    map[uint]models.User
	pods     map[uint]models.Pod
	requests map[uint]models.JoinRequest
	members  map[memberKey]models.PodMember

	nextUserID    uint
	nextPodID     uint
	nextRequestID uint
	nextMemberID  uint

	locks *repository.PodLocks
	now   func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:    make(map[uint]models.User),
		pods:     make(map[uint]models.Pod),
		requests: make(map[uint]models.JoinRequest),
		members:  make(map[memberKey]models.PodMember),
		locks:    repository.NewPodLocks(),
		now:      time.Now,
	}
}

// journal collects undo steps for writes made inside InPodTx.
type journal struct {
	undo []func()
}

func (j *journal) record(fn func()) {
	if j != nil {
		j.undo = append(j.undo, fn)
	}
}

// view is a Store bound to an optional transaction journal.
type view struct {
	s *Store
	j *journal
}

func (s *Store) root() view { return view{s: s} }

func (s *Store) Users() repository.UserRepository               { return userRepo{s.root()} }
func (s *Store) Pods() repository.PodRepository                 { return podRepo{s.root()} }
func (s *Store) JoinRequests() repository.JoinRequestRepository { return requestRepo{s.root()} }
func (s *Store) Members() repository.MemberRepository           { return memberRepo{s.root()} }

// InPodTx serializes fn with other transactions on podID and undoes its
// writes if it returns an error.
func (s *Store) InPodTx(_ context.Context, podID uint, fn func(tx repository.Store) error) error {
	unlock := s.locks.Lock(podID)
	defer unlock()

	if !s.podExists(podID) {
		return models.NewNotFoundError("Pod", podID)
	}

	j := &journal{}
	if err := fn(txStore{view{s: s, j: j}}); err != nil {
		s.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) podExists(podID uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pods[podID]
	return ok
}

// txStore is the Store handed to InPodTx callbacks.
type txStore struct {
	v view
}

func (t txStore) Users() repository.UserRepository               { return userRepo{t.v} }
func (t txStore) Pods() repository.PodRepository                 { return podRepo{t.v} }
func (t txStore) JoinRequests() repository.JoinRequestRepository { return requestRepo{t.v} }
func (t txStore) Members() repository.MemberRepository           { return memberRepo{t.v} }

// InPodTx inside a transaction joins the outer one.
func (t txStore) InPodTx(_ context.Context, podID uint, fn func(tx repository.Store) error) error {
	if !t.v.s.podExists(podID) {
		return models.NewNotFoundError("Pod", podID)
	}
	return fn(t)
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Store = txStore{}
)
