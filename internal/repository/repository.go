// Package repository defines the storage interfaces used by the services
// and implements them on GORM.
package repository

import (
	"context"
	"time"

	"podshare/internal/models"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
}

// PodRepository defines persistence operations for pods. Listing methods
// return pods in insertion order.
type PodRepository interface {
	Create(ctx context.Context, pod *models.Pod) error
	GetByID(ctx context.Context, id uint) (*models.Pod, error)
	GetBySlug(ctx context.Context, slug string) (*models.Pod, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Pod, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListActive(ctx context.Context) ([]models.Pod, error)
	ListByLeader(ctx context.Context, leaderID uint) ([]models.Pod, error)
	// Search matches an already normalized query against active pods.
	Search(ctx context.Context, query string) ([]models.Pod, error)
	Filter(ctx context.Context, filter models.PodFilter) ([]models.Pod, error)
	Update(ctx context.Context, pod *models.Pod) error
	// AdjustAvailableSpots moves AvailableSpots by delta, failing with
	// PodFullError rather than going below zero and with InvalidStateError
	// rather than exceeding TotalSpots.
	AdjustAvailableSpots(ctx context.Context, podID uint, delta int) error
}

// JoinRequestRepository defines persistence operations for join requests.
// Listing methods return requests oldest first.
type JoinRequestRepository interface {
	Create(ctx context.Context, req *models.JoinRequest) error
	GetByID(ctx context.Context, id uint) (*models.JoinRequest, error)
	// FindPending returns nil, nil when the user has no pending request.
	FindPending(ctx context.Context, podID, userID uint) (*models.JoinRequest, error)
	// Transition moves a request from one status to another and fails with
	// InvalidStateError when it is no longer in from.
	Transition(ctx context.Context, id uint, from, to models.JoinRequestStatus, decidedBy uint, at time.Time) error
	ListByPod(ctx context.Context, podID uint) ([]models.JoinRequest, error)
	ListByUser(ctx context.Context, userID uint) ([]models.JoinRequest, error)
	ListByLeader(ctx context.Context, leaderID uint) ([]models.JoinRequest, error)
}

// MemberRepository defines persistence operations for pod memberships.
type MemberRepository interface {
	// Get returns the membership row in any state, or nil, nil.
	Get(ctx context.Context, podID, userID uint) (*models.PodMember, error)
	// Activate creates the row or reactivates an inactive one.
	Activate(ctx context.Context, podID, userID uint, at time.Time) (*models.PodMember, error)
	// Deactivate fails with NotFound when there is no active row.
	Deactivate(ctx context.Context, podID, userID uint, at time.Time) error
	ListActiveByPod(ctx context.Context, podID uint) ([]models.PodMember, error)
	CountActiveByPod(ctx context.Context, podID uint) (int, error)
	CountActiveByPods(ctx context.Context, podIDs []uint) (map[uint]int, error)
	ListActivePodIDsByUser(ctx context.Context, userID uint) ([]uint, error)
}

// Store groups the repositories behind one storage backend.
type Store interface {
	Users() UserRepository
	Pods() PodRepository
	JoinRequests() JoinRequestRepository
	Members() MemberRepository

	// InPodTx runs fn atomically and serialized against every other InPodTx
	// on the same pod. Pods never contend with each other. The Store passed
	// to fn must be used for all reads and writes inside the transaction; if
	// fn returns an error none of its writes survive. It fails with NotFound
	// when the pod does not exist.
	InPodTx(ctx context.Context, podID uint, fn func(tx Store) error) error
}
