package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"podshare/internal/cache"
	"podshare/internal/featureflags"
	"podshare/internal/middleware"
	"podshare/internal/models"
	"podshare/internal/observability"
	"podshare/internal/repository"
	"podshare/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const maxSlugAttempts = 50

type PodService struct {
	store  repository.Store
	cache  *cache.Cache
	flags  *featureflags.Flags
	podTTL time.Duration
}

type CreatePodInput struct {
	ClubName           string                `json:"club_name" validate:"notblank,max=120"`
	Region             string                `json:"region" validate:"notblank,max=80"`
	Address            string                `json:"address" validate:"notblank,max=255"`
	MembershipType     models.MembershipType `json:"membership_type" validate:"membership_type"`
	Title              string                `json:"title" validate:"notblank,max=160"`
	Description        string                `json:"description" validate:"max=5000"`
	CostPerPersonCents int64                 `json:"cost_per_person_cents" validate:"min=0"`
	TotalSpots         int                   `json:"total_spots" validate:"min=1,max=100"`
	// AvailableSpots is optional; when set it must equal TotalSpots.
	AvailableSpots *int     `json:"available_spots,omitempty"`
	Amenities      []string `json:"amenities" validate:"max=30,dive,max=40"`
	Rules          *string  `json:"rules,omitempty"`
}

// UpdatePodInput changes the listed fields; nil leaves a field unchanged.
type UpdatePodInput struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Rules       *string  `json:"rules"`
	Amenities   []string `json:"amenities" validate:"max=30,dive,max=40"`
	TotalSpots  *int     `json:"total_spots"`
}

// BrowseInput combines free-text search with structured filters.
type BrowseInput struct {
	Query  string
	Filter models.PodFilter
	Sort   models.PodSort
}

func NewPodService(store repository.Store, c *cache.Cache, flags *featureflags.Flags, podTTL time.Duration) *PodService {
	if podTTL <= 0 {
		podTTL = cache.DefaultPodTTL
	}
	return &PodService{store: store, cache: c, flags: flags, podTTL: podTTL}
}

func (s *PodService) CreatePod(ctx context.Context, leaderID uint, in CreatePodInput) (*models.Pod, error) {
	span, ctx := observability.NewSpan(ctx, "PodService.CreatePod", attribute.Int64("leader_id", int64(leaderID)))
	defer span.End()

	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.AvailableSpots != nil && *in.AvailableSpots != in.TotalSpots {
		return nil, models.NewValidationError("available_spots must equal total_spots for a new pod")
	}
	if in.Rules != nil && len(*in.Rules) > 5000 {
		return nil, models.NewValidationError("rules must not exceed 5000 characters")
	}
	if _, err := s.store.Users().GetByID(ctx, leaderID); err != nil {
		return nil, err
	}

	pod := &models.Pod{
		LeaderID:           leaderID,
		ClubName:           strings.TrimSpace(in.ClubName),
		Region:             strings.TrimSpace(in.Region),
		Address:            strings.TrimSpace(in.Address),
		MembershipType:     in.MembershipType,
		Title:              strings.TrimSpace(in.Title),
		Description:        strings.TrimSpace(in.Description),
		CostPerPersonCents: in.CostPerPersonCents,
		TotalSpots:         in.TotalSpots,
		AvailableSpots:     in.TotalSpots,
		Amenities:          models.NormalizeAmenities(in.Amenities),
		Rules:              in.Rules,
		Active:             true,
	}

	if err := s.createWithSlug(ctx, pod); err != nil {
		span.SetError(err)
		return nil, err
	}
	span.AddAttributes(attribute.Int64("pod_id", int64(pod.ID)))

	middleware.Logger.InfoContext(ctx, "pod created",
		slog.Uint64("pod_id", uint64(pod.ID)),
		slog.Uint64("leader_id", uint64(leaderID)),
		slog.String("slug", pod.Slug),
	)
	return pod, nil
}

// createWithSlug takes the first free slug among base, base-2, base-3...
// A slug taken between the check and the insert moves on to the next one.
func (s *PodService) createWithSlug(ctx context.Context, pod *models.Pod) error {
	base := validation.PodSlug(pod.ClubName, pod.Title)
	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := validation.SlugCandidate(base, n)
		taken, err := s.store.Pods().SlugExists(ctx, candidate)
		if err != nil {
			return err
		}
		if taken {
			continue
		}
		pod.Slug = candidate
		err = s.store.Pods().Create(ctx, pod)
		if err == nil {
			return nil
		}
		if models.ErrorCode(err) != models.CodeValidation {
			return err
		}
	}
	return models.NewValidationError(fmt.Sprintf("could not find a free slug for %q", base))
}

func (s *PodService) useCache() bool {
	return s.flags.Enabled(featureflags.PodCache, 0)
}

// GetPod returns the pod whether or not it is still active.
func (s *PodService) GetPod(ctx context.Context, id uint) (*models.Pod, error) {
	if !s.useCache() {
		return s.store.Pods().GetByID(ctx, id)
	}
	var pod models.Pod
	err := s.cache.Aside(ctx, "pod", cache.PodKey(id), &pod, s.podTTL, func() error {
		p, err := s.store.Pods().GetByID(ctx, id)
		if err != nil {
			return err
		}
		pod = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pod, nil
}

func (s *PodService) GetPodBySlug(ctx context.Context, slug string) (*models.Pod, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, models.NewValidationError("slug is required")
	}
	if !s.useCache() {
		return s.store.Pods().GetBySlug(ctx, slug)
	}
	var pod models.Pod
	err := s.cache.Aside(ctx, "pod_slug", cache.PodSlugKey(slug), &pod, s.podTTL, func() error {
		p, err := s.store.Pods().GetBySlug(ctx, slug)
		if err != nil {
			return err
		}
		pod = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pod, nil
}

// ListPods returns active pods in insertion order, or ordered by sort.
func (s *PodService) ListPods(ctx context.Context, sort models.PodSort) ([]models.Pod, error) {
	if !sort.Valid() {
		return nil, invalidSort(sort)
	}
	pods, err := s.store.Pods().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	models.SortPods(pods, sort)
	return pods, nil
}

// SearchPods matches query case-insensitively against title, club name,
// description and address. A blank query lists every active pod.
func (s *PodService) SearchPods(ctx context.Context, query string, sort models.PodSort) ([]models.Pod, error) {
	q := models.NormalizeQuery(query)
	if q == "" {
		return s.ListPods(ctx, sort)
	}
	if !sort.Valid() {
		return nil, invalidSort(sort)
	}
	pods, err := s.store.Pods().Search(ctx, q)
	if err != nil {
		return nil, err
	}
	models.SortPods(pods, sort)
	return pods, nil
}

// FilterPods applies exact region and membership type matches and requires
// every listed amenity.
func (s *PodService) FilterPods(ctx context.Context, filter models.PodFilter, sort models.PodSort) ([]models.Pod, error) {
	filter = normalizeFilter(filter)
	if filter.IsEmpty() {
		return s.ListPods(ctx, sort)
	}
	if !sort.Valid() {
		return nil, invalidSort(sort)
	}
	pods, err := s.store.Pods().Filter(ctx, filter)
	if err != nil {
		return nil, err
	}
	models.SortPods(pods, sort)
	return pods, nil
}

// Browse applies a search query and a filter together.
func (s *PodService) Browse(ctx context.Context, in BrowseInput) ([]models.Pod, error) {
	q := models.NormalizeQuery(in.Query)
	if q == "" {
		return s.FilterPods(ctx, in.Filter, in.Sort)
	}
	pods, err := s.SearchPods(ctx, q, in.Sort)
	if err != nil {
		return nil, err
	}
	filter := normalizeFilter(in.Filter)
	if filter.IsEmpty() {
		return pods, nil
	}
	out := make([]models.Pod, 0, len(pods))
	for i := range pods {
		if filter.Matches(&pods[i]) {
			out = append(out, pods[i])
		}
	}
	return out, nil
}

func normalizeFilter(f models.PodFilter) models.PodFilter {
	f.Region = strings.TrimSpace(f.Region)
	f.MembershipType = models.MembershipType(strings.TrimSpace(string(f.MembershipType)))
	f.Amenities = models.NormalizeAmenities(f.Amenities)
	return f
}

func invalidSort(sort models.PodSort) error {
	return models.NewValidationError(fmt.Sprintf("unknown sort %q", sort))
}

// ListLeaderPods returns every pod the user leads, including inactive ones.
func (s *PodService) ListLeaderPods(ctx context.Context, leaderID uint) ([]models.Pod, error) {
	return s.store.Pods().ListByLeader(ctx, leaderID)
}

// UpdatePod edits a pod on behalf of its leader. Changing TotalSpots
// re-derives AvailableSpots and cannot drop below the active member count.
func (s *PodService) UpdatePod(ctx context.Context, podID, actorID uint, in UpdatePodInput) (*models.Pod, error) {
	span, ctx := observability.NewSpan(ctx, "PodService.UpdatePod", attribute.Int64("pod_id", int64(podID)))
	defer span.End()

	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Title != nil && (strings.TrimSpace(*in.Title) == "" || len(*in.Title) > 160) {
		return nil, models.NewValidationError("title must be 1-160 characters")
	}
	if in.Description != nil && len(*in.Description) > 5000 {
		return nil, models.NewValidationError("description must not exceed 5000 characters")
	}
	if in.TotalSpots != nil && (*in.TotalSpots < 1 || *in.TotalSpots > 100) {
		return nil, models.NewValidationError("total_spots must be between 1 and 100")
	}

	var updated *models.Pod
	err := s.store.InPodTx(ctx, podID, func(tx repository.Store) error {
		pod, err := tx.Pods().GetByID(ctx, podID)
		if err != nil {
			return err
		}
		if pod.LeaderID != actorID {
			return models.NewForbiddenError("only the pod leader can edit this pod")
		}
		if in.Title != nil {
			pod.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			pod.Description = strings.TrimSpace(*in.Description)
		}
		if in.Rules != nil {
			pod.Rules = in.Rules
		}
		if in.Amenities != nil {
			pod.Amenities = models.NormalizeAmenities(in.Amenities)
		}
		if in.TotalSpots != nil {
			active, err := tx.Members().CountActiveByPod(ctx, podID)
			if err != nil {
				return err
			}
			if *in.TotalSpots < active {
				return models.NewValidationError(fmt.Sprintf("total_spots cannot be lower than the %d active members", active))
			}
			pod.TotalSpots = *in.TotalSpots
			pod.AvailableSpots = *in.TotalSpots - active
		}
		if err := tx.Pods().Update(ctx, pod); err != nil {
			return err
		}
		updated = pod
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.cache.InvalidatePod(ctx, updated.ID, updated.Slug)
	return updated, nil
}

// DeactivatePod hides a pod from listings. Memberships and requests are
// left as they are; deactivating twice is a no-op.
func (s *PodService) DeactivatePod(ctx context.Context, podID, actorID uint) (*models.Pod, error) {
	var out *models.Pod
	err := s.store.InPodTx(ctx, podID, func(tx repository.Store) error {
		pod, err := tx.Pods().GetByID(ctx, podID)
		if err != nil {
			return err
		}
		if pod.LeaderID != actorID {
			return models.NewForbiddenError("only the pod leader can deactivate this pod")
		}
		out = pod
		if !pod.Active {
			return nil
		}
		pod.Active = false
		return tx.Pods().Update(ctx, pod)
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidatePod(ctx, out.ID, out.Slug)
	middleware.Logger.InfoContext(ctx, "pod deactivated",
		slog.Uint64("pod_id", uint64(podID)),
		slog.Uint64("leader_id", uint64(actorID)),
	)
	return out, nil
}
