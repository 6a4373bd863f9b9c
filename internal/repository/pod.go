package repository

import (
	"context"
	"fmt"
	"strings"

	"podshare/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type podRepository struct {
	db   *gorm.DB
	lock bool
}

// NewPodRepository returns a new PodRepository implementation.
func NewPodRepository(db *gorm.DB) PodRepository {
	return &podRepository{db: db}
}

func (r *podRepository) Create(ctx context.Context, pod *models.Pod) error {
	if err := r.db.WithContext(ctx).Create(pod).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewValidationError(fmt.Sprintf("slug %q is already taken", pod.Slug))
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *podRepository) GetByID(ctx context.Context, id uint) (*models.Pod, error) {
	q := r.db.WithContext(ctx)
	if r.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var pod models.Pod
	if err := q.First(&pod, id).Error; err != nil {
		return nil, lookupError(err, "Pod", id)
	}
	return &pod, nil
}

func (r *podRepository) GetBySlug(ctx context.Context, slug string) (*models.Pod, error) {
	var pod models.Pod
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&pod).Error; err != nil {
		return nil, lookupError(err, "Pod", slug)
	}
	return &pod, nil
}

func (r *podRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Pod, error) {
	pods := []models.Pod{}
	if len(ids) == 0 {
		return pods, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&pods).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return pods, nil
}

func (r *podRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Pod{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *podRepository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("active = ?", true).Order("id ASC")
}

func (r *podRepository) ListActive(ctx context.Context) ([]models.Pod, error) {
	pods := []models.Pod{}
	if err := r.active(ctx).Find(&pods).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return pods, nil
}

func (r *podRepository) ListByLeader(ctx context.Context, leaderID uint) ([]models.Pod, error) {
	pods := []models.Pod{}
	if err := r.db.WithContext(ctx).Where("leader_id = ?", leaderID).Order("id ASC").Find(&pods).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return pods, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *podRepository) Search(ctx context.Context, query string) ([]models.Pod, error) {
	if query == "" {
		return r.ListActive(ctx)
	}
	like := "%" + likeEscaper.Replace(query) + "%"

	pods := []models.Pod{}
	err := r.active(ctx).
		Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(club_name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(address) LIKE ? ESCAPE '\')`,
			like, like, like, like).
		Find(&pods).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return pods, nil
}

// Filter pushes region and membership type into SQL; amenities are stored
// as JSON text and matched in Go.
func (r *podRepository) Filter(ctx context.Context, filter models.PodFilter) ([]models.Pod, error) {
	q := r.active(ctx)
	if filter.Region != "" {
		q = q.Where("region = ?", filter.Region)
	}
	if filter.MembershipType != "" {
		q = q.Where("membership_type = ?", filter.MembershipType)
	}

	var pods []models.Pod
	if err := q.Find(&pods).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	out := make([]models.Pod, 0, len(pods))
	for i := range pods {
		if filter.Matches(&pods[i]) {
			out = append(out, pods[i])
		}
	}
	return out, nil
}

func (r *podRepository) Update(ctx context.Context, pod *models.Pod) error {
	res := r.db.WithContext(ctx).Model(pod).Select(
		"Title", "Description", "Rules", "Amenities", "TotalSpots", "AvailableSpots", "Active", "UpdatedAt",
	).Updates(pod)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Pod", pod.ID)
	}
	return nil
}

func (r *podRepository) AdjustAvailableSpots(ctx context.Context, podID uint, delta int) error {
	res := r.db.WithContext(ctx).Model(&models.Pod{}).
		Where("id = ? AND available_spots + ? >= 0 AND available_spots + ? <= total_spots", podID, delta, delta).
		UpdateColumn("available_spots", gorm.Expr("available_spots + ?", delta))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Pod{}).Where("id = ?", podID).Count(&count).Error; err != nil {
		return models.NewInternalError(err)
	}
	if count == 0 {
		return models.NewNotFoundError("Pod", podID)
	}
	if delta < 0 {
		return models.NewPodFullError(podID)
	}
	return models.NewInvalidStateError(fmt.Sprintf("pod %d cannot release more spots than it has", podID))
}
