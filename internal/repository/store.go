package repository

import (
	"context"
	"errors"

	"podshare/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db    *gorm.DB
	locks *PodLocks
	inTx  bool
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db, locks: NewPodLocks()}
}

func (s *gormStore) Users() UserRepository               { return &userRepository{db: s.db} }
func (s *gormStore) Pods() PodRepository                 { return &podRepository{db: s.db, lock: s.inTx} }
func (s *gormStore) JoinRequests() JoinRequestRepository { return &joinRequestRepository{db: s.db, lock: s.inTx} }
func (s *gormStore) Members() MemberRepository           { return &memberRepository{db: s.db} }

// InPodTx takes the in-process pod mutex, opens a transaction and locks the
// pod row FOR UPDATE so writers in other processes queue behind it too.
func (s *gormStore) InPodTx(ctx context.Context, podID uint, fn func(tx Store) error) error {
	if s.inTx {
		if err := lockPodRow(s.db.WithContext(ctx), podID); err != nil {
			return err
		}
		return fn(s)
	}

	unlock := s.locks.Lock(podID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPodRow(tx, podID); err != nil {
			return err
		}
		return fn(&gormStore{db: tx, locks: s.locks, inTx: true})
	})
}

func lockPodRow(tx *gorm.DB, podID uint) error {
	var pod models.Pod
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&pod, podID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Pod", podID)
		}
		return models.NewInternalError(err)
	}
	return nil
}
