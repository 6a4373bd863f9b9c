package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"podshare/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type joinRequestRepository struct {
	db   *gorm.DB
	lock bool
}

// NewJoinRequestRepository returns a new JoinRequestRepository implementation.
func NewJoinRequestRepository(db *gorm.DB) JoinRequestRepository {
	return &joinRequestRepository{db: db}
}

func (r *joinRequestRepository) Create(ctx context.Context, req *models.JoinRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewDuplicateRequestError(req.PodID, req.UserID)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *joinRequestRepository) GetByID(ctx context.Context, id uint) (*models.JoinRequest, error) {
	q := r.db.WithContext(ctx)
	if r.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var req models.JoinRequest
	if err := q.First(&req, id).Error; err != nil {
		return nil, lookupError(err, "JoinRequest", id)
	}
	return &req, nil
}

func (r *joinRequestRepository) FindPending(ctx context.Context, podID, userID uint) (*models.JoinRequest, error) {
	var req models.JoinRequest
	err := r.db.WithContext(ctx).
		Where("pod_id = ? AND user_id = ? AND status = ?", podID, userID, models.JoinRequestPending).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *joinRequestRepository) Transition(ctx context.Context, id uint, from, to models.JoinRequestStatus, decidedBy uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.JoinRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":             to,
			"decided_by_user_id": decidedBy,
			"decided_at":         at,
			"updated_at":         at,
		})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return models.NewInvalidStateError(fmt.Sprintf("join request %d is %s, not %s", id, current.Status, from))
}

func (r *joinRequestRepository) ListByPod(ctx context.Context, podID uint) ([]models.JoinRequest, error) {
	return r.list(r.db.WithContext(ctx).Where("pod_id = ?", podID))
}

func (r *joinRequestRepository) ListByUser(ctx context.Context, userID uint) ([]models.JoinRequest, error) {
	return r.list(r.db.WithContext(ctx).Where("user_id = ?", userID))
}

func (r *joinRequestRepository) ListByLeader(ctx context.Context, leaderID uint) ([]models.JoinRequest, error) {
	return r.list(r.db.WithContext(ctx).
		Joins("JOIN pods ON pods.id = join_requests.pod_id").
		Where("pods.leader_id = ?", leaderID))
}

func (r *joinRequestRepository) list(q *gorm.DB) ([]models.JoinRequest, error) {
	reqs := []models.JoinRequest{}
	if err := q.Order("join_requests.created_at ASC, join_requests.id ASC").Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}
