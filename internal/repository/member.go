package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"podshare/internal/models"

	"gorm.io/gorm"
)

type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository returns a new MemberRepository implementation.
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) Get(ctx context.Context, podID, userID uint) (*models.PodMember, error) {
	var m models.PodMember
	err := r.db.WithContext(ctx).Where("pod_id = ? AND user_id = ?", podID, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &m, nil
}

func (r *memberRepository) Activate(ctx context.Context, podID, userID uint, at time.Time) (*models.PodMember, error) {
	existing, err := r.Get(ctx, podID, userID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		m := &models.PodMember{PodID: podID, UserID: userID, JoinedAt: at, Active: true}
		if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
		return m, nil
	}
	if existing.Active {
		return nil, models.NewValidationError(fmt.Sprintf("user %d is already a member of pod %d", userID, podID))
	}

	err = r.db.WithContext(ctx).Model(existing).Updates(map[string]interface{}{
		"active":    true,
		"joined_at": at,
		"left_at":   nil,
	}).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	existing.Active = true
	existing.JoinedAt = at
	existing.LeftAt = nil
	return existing, nil
}

func (r *memberRepository) Deactivate(ctx context.Context, podID, userID uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.PodMember{}).
		Where("pod_id = ? AND user_id = ? AND active = ?", podID, userID, true).
		Updates(map[string]interface{}{"active": false, "left_at": at})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Membership", fmt.Sprintf("%d/%d", podID, userID))
	}
	return nil
}

func (r *memberRepository) ListActiveByPod(ctx context.Context, podID uint) ([]models.PodMember, error) {
	members := []models.PodMember{}
	err := r.db.WithContext(ctx).
		Where("pod_id = ? AND active = ?", podID, true).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return members, nil
}

func (r *memberRepository) CountActiveByPod(ctx context.Context, podID uint) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PodMember{}).
		Where("pod_id = ? AND active = ?", podID, true).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return int(count), nil
}

func (r *memberRepository) CountActiveByPods(ctx context.Context, podIDs []uint) (map[uint]int, error) {
	out := make(map[uint]int, len(podIDs))
	if len(podIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		PodID uint
		Count int
	}
	err := r.db.WithContext(ctx).Model(&models.PodMember{}).
		Select("pod_id, COUNT(*) AS count").
		Where("pod_id IN ? AND active = ?", podIDs, true).
		Group("pod_id").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		out[row.PodID] = row.Count
	}
	return out, nil
}

func (r *memberRepository) ListActivePodIDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).Model(&models.PodMember{}).
		Where("user_id = ? AND active = ?", userID, true).
		Order("pod_id ASC").
		Pluck("pod_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
