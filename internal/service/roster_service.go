package service

import (
	"context"
	"log/slog"
	"time"

	"podshare/internal/cache"
	"podshare/internal/middleware"
	"podshare/internal/models"
	"podshare/internal/notifications"
	"podshare/internal/observability"
	"podshare/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// RosterService projects memberships into rosters and dashboard figures and
// handles members leaving.
type RosterService struct {
	store  repository.Store
	events notifications.Publisher
	cache  *cache.Cache
	now    func() time.Time
}

func NewRosterService(store repository.Store, events notifications.Publisher, c *cache.Cache) *RosterService {
	if events == nil {
		events = notifications.Discard
	}
	return &RosterService{store: store, events: events, cache: c, now: time.Now}
}

// GetRoster lists the leader first, then active members by join time.
func (s *RosterService) GetRoster(ctx context.Context, podID uint) ([]models.RosterEntry, error) {
	pod, err := s.store.Pods().GetByID(ctx, podID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.Members().ListActiveByPod(ctx, podID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(members)+1)
	ids = append(ids, pod.LeaderID)
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := s.store.Users().GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	leader := users[pod.LeaderID]
	roster := make([]models.RosterEntry, 0, len(members)+1)
	roster = append(roster, models.RosterEntry{
		UserID:   pod.LeaderID,
		Name:     leader.Name,
		Email:    leader.Email,
		Role:     models.RosterRoleLeader,
		JoinedAt: pod.CreatedAt,
	})
	for _, m := range members {
		if m.UserID == pod.LeaderID {
			continue
		}
		u := users[m.UserID]
		roster = append(roster, models.RosterEntry{
			UserID:   m.UserID,
			Name:     u.Name,
			Email:    u.Email,
			Role:     models.RosterRoleMember,
			JoinedAt: m.JoinedAt,
		})
	}
	return roster, nil
}

// RemoveMember deactivates a membership and returns its spot to the pod.
// The leader may remove anyone but themselves; members may remove
// themselves.
func (s *RosterService) RemoveMember(ctx context.Context, podID, userID, actorID uint) error {
	span, ctx := observability.NewSpan(ctx, "RosterService.RemoveMember",
		attribute.Int64("pod_id", int64(podID)),
		attribute.Int64("user_id", int64(userID)),
	)
	defer span.End()

	var pod *models.Pod
	err := s.store.InPodTx(ctx, podID, func(tx repository.Store) error {
		p, err := tx.Pods().GetByID(ctx, podID)
		if err != nil {
			return err
		}
		if actorID != p.LeaderID && actorID != userID {
			return models.NewForbiddenError("only the pod leader or the member themselves can remove a membership")
		}
		if userID == p.LeaderID {
			return models.NewValidationError("the pod leader cannot be removed from their own pod")
		}
		if err := tx.Members().Deactivate(ctx, podID, userID, s.now().UTC()); err != nil {
			return err
		}
		if err := tx.Pods().AdjustAvailableSpots(ctx, podID, 1); err != nil {
			return err
		}
		p.AvailableSpots++
		pod = p
		return nil
	})
	if err != nil {
		span.SetError(err)
		return err
	}

	initiator := "leader"
	if actorID == userID {
		initiator = "self"
	}
	observability.MembershipRemovals.WithLabelValues(initiator).Inc()
	s.cache.InvalidatePod(ctx, pod.ID, pod.Slug)

	if member, err := s.store.Users().GetByID(ctx, userID); err == nil {
		s.events.Publish(ctx, notifications.MemberRemoved(pod, member, actorID))
	} else {
		middleware.Logger.WarnContext(ctx, "member lookup for event failed", slog.String("error", err.Error()))
	}

	middleware.Logger.InfoContext(ctx, "member removed",
		slog.Uint64("pod_id", uint64(podID)),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("initiator", initiator),
	)
	return nil
}

// Leave removes the caller from a pod.
func (s *RosterService) Leave(ctx context.Context, podID, userID uint) error {
	return s.RemoveMember(ctx, podID, userID, userID)
}

// LeaderDashboard sums members and monthly revenue over the leader's
// active pods. Revenue is cost per person times active members, excluding
// the leader.
func (s *RosterService) LeaderDashboard(ctx context.Context, leaderID uint) (*models.LeaderDashboard, error) {
	pods, err := s.store.Pods().ListByLeader(ctx, leaderID)
	if err != nil {
		return nil, err
	}

	active := make([]models.Pod, 0, len(pods))
	ids := make([]uint, 0, len(pods))
	for _, p := range pods {
		if p.Active {
			active = append(active, p)
			ids = append(ids, p.ID)
		}
	}
	counts, err := s.store.Members().CountActiveByPods(ctx, ids)
	if err != nil {
		return nil, err
	}

	dash := &models.LeaderDashboard{ActivePods: len(active)}
	for _, p := range active {
		n := counts[p.ID]
		dash.TotalMembers += n
		dash.MonthlyRevenueCents += p.CostPerPersonCents * int64(n)
	}

	reqs, err := s.store.JoinRequests().ListByLeader(ctx, leaderID)
	if err != nil {
		return nil, err
	}
	dash.PendingRequests = len(models.FilterJoinRequests(reqs, models.JoinRequestPending))
	return dash, nil
}

// MemberPods returns the active pods the user has joined as a member.
func (s *RosterService) MemberPods(ctx context.Context, userID uint) ([]models.Pod, error) {
	ids, err := s.store.Members().ListActivePodIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	pods, err := s.store.Pods().GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Pod, 0, len(pods))
	for _, p := range pods {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

// ReconcileCapacity recomputes AvailableSpots from active memberships and
// reports whether the stored value had drifted.
func (s *RosterService) ReconcileCapacity(ctx context.Context, podID uint) (bool, error) {
	var (
		repaired bool
		pod      *models.Pod
		was      int
	)
	err := s.store.InPodTx(ctx, podID, func(tx repository.Store) error {
		p, err := tx.Pods().GetByID(ctx, podID)
		if err != nil {
			return err
		}
		active, err := tx.Members().CountActiveByPod(ctx, podID)
		if err != nil {
			return err
		}
		want := p.TotalSpots - active
		if want < 0 {
			// more members than seats; grow the pod rather than evict anyone
			middleware.Logger.ErrorContext(ctx, "pod over capacity",
				slog.Uint64("pod_id", uint64(podID)),
				slog.Int("total_spots", p.TotalSpots),
				slog.Int("active_members", active),
			)
			p.TotalSpots = active
			want = 0
		} else if p.AvailableSpots == want {
			return nil
		}
		was = p.AvailableSpots
		p.AvailableSpots = want
		if err := tx.Pods().Update(ctx, p); err != nil {
			return err
		}
		repaired, pod = true, p
		return nil
	})
	if err != nil || !repaired {
		return false, err
	}

	observability.CapacityRepairs.Inc()
	s.cache.InvalidatePod(ctx, pod.ID, pod.Slug)
	middleware.Logger.WarnContext(ctx, "pod capacity repaired",
		slog.Uint64("pod_id", uint64(podID)),
		slog.Int("was", was),
		slog.Int("now", pod.AvailableSpots),
	)
	return true, nil
}

// ReconcileAll runs ReconcileCapacity over every active pod and returns how
// many were repaired. A failing pod is logged and skipped.
func (s *RosterService) ReconcileAll(ctx context.Context) (int, error) {
	pods, err := s.store.Pods().ListActive(ctx)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, p := range pods {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		ok, err := s.ReconcileCapacity(ctx, p.ID)
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "capacity reconcile failed",
				slog.Uint64("pod_id", uint64(p.ID)), slog.String("error", err.Error()))
			continue
		}
		if ok {
			repaired++
		}
	}
	return repaired, nil
}
