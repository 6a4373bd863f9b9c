package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"podshare/internal/cache"
	"podshare/internal/middleware"
	"podshare/internal/models"
	"podshare/internal/notifications"
	"podshare/internal/observability"
	"podshare/internal/repository"
	"podshare/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// LifecycleService runs the join request state machine. Capacity checks and
// writes for one pod happen inside a single pod transaction; events are
// published only after it commits.
type LifecycleService struct {
	store  repository.Store
	events notifications.Publisher
	cache  *cache.Cache
	now    func() time.Time
}

type SubmitInput struct {
	PodID   uint
	UserID  uint
	Message string `validate:"max=2000"`
	// Contact defaults to the requester's profile when nil.
	Contact *models.ContactSnapshot
}

type contactInput struct {
	Name  string `json:"contact.name" validate:"notblank,max=120"`
	Email string `json:"contact.email" validate:"required,email,max=255"`
}

func NewLifecycleService(store repository.Store, events notifications.Publisher, c *cache.Cache) *LifecycleService {
	if events == nil {
		events = notifications.Discard
	}
	return &LifecycleService{store: store, events: events, cache: c, now: time.Now}
}

func (s *LifecycleService) Submit(ctx context.Context, in SubmitInput) (*models.JoinRequest, error) {
	span, ctx := observability.NewSpan(ctx, "LifecycleService.Submit",
		attribute.Int64("pod_id", int64(in.PodID)),
		attribute.Int64("user_id", int64(in.UserID)),
	)
	defer span.End()

	req, pod, err := s.submit(ctx, in)
	observability.JoinRequestOutcomes.WithLabelValues("submit", outcome(err, "created")).Inc()
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	leader, err := s.store.Users().GetByID(ctx, pod.LeaderID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "leader lookup for event failed", slog.String("error", err.Error()))
		leader = nil
	}
	s.events.Publish(ctx, notifications.JoinRequestCreated(pod, leader, req))

	middleware.Logger.InfoContext(ctx, "join request submitted",
		slog.Uint64("request_id", uint64(req.ID)),
		slog.Uint64("pod_id", uint64(pod.ID)),
		slog.Uint64("user_id", uint64(in.UserID)),
	)
	return req, nil
}

func (s *LifecycleService) submit(ctx context.Context, in SubmitInput) (*models.JoinRequest, *models.Pod, error) {
	in.Message = strings.TrimSpace(in.Message)
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}

	user, err := s.store.Users().GetByID(ctx, in.UserID)
	if err != nil {
		return nil, nil, err
	}
	contact := user.Contact()
	if in.Contact != nil {
		contact = models.ContactSnapshot{
			Name:  strings.TrimSpace(in.Contact.Name),
			Email: strings.ToLower(strings.TrimSpace(in.Contact.Email)),
			Phone: in.Contact.Phone,
		}
		if err := validation.Struct(contactInput{Name: contact.Name, Email: contact.Email}); err != nil {
			return nil, nil, err
		}
	}

	var (
		req *models.JoinRequest
		pod *models.Pod
	)
	err = s.store.InPodTx(ctx, in.PodID, func(tx repository.Store) error {
		p, err := tx.Pods().GetByID(ctx, in.PodID)
		if err != nil {
			return err
		}
		if !p.Active {
			return models.NewNotFoundError("Pod", in.PodID)
		}
		if p.LeaderID == in.UserID {
			return models.NewValidationError("the pod leader cannot request to join their own pod")
		}
		m, err := tx.Members().Get(ctx, in.PodID, in.UserID)
		if err != nil {
			return err
		}
		if m != nil && m.Active {
			return models.NewValidationError("user is already a member of this pod")
		}
		if p.AvailableSpots <= 0 {
			return models.NewPodFullError(in.PodID)
		}
		existing, err := tx.JoinRequests().FindPending(ctx, in.PodID, in.UserID)
		if err != nil {
			return err
		}
		if existing != nil {
			return models.NewDuplicateRequestError(in.PodID, in.UserID)
		}

		r := &models.JoinRequest{
			PodID:   in.PodID,
			UserID:  in.UserID,
			Status:  models.JoinRequestPending,
			Message: in.Message,
			Contact: contact,
		}
		if err := tx.JoinRequests().Create(ctx, r); err != nil {
			return err
		}
		req, pod = r, p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return req, pod, nil
}

// Decide accepts or rejects a pending request on behalf of the pod leader.
// Accepting a request for a pod that filled up since submission fails with
// PodFullError and leaves the request pending.
func (s *LifecycleService) Decide(ctx context.Context, requestID uint, decision models.JoinRequestStatus, actorID uint) (*models.JoinRequest, error) {
	span, ctx := observability.NewSpan(ctx, "LifecycleService.Decide",
		attribute.Int64("request_id", int64(requestID)),
		attribute.String("decision", string(decision)),
	)
	defer span.End()

	req, pod, err := s.decide(ctx, requestID, decision, actorID)
	observability.JoinRequestOutcomes.WithLabelValues("decide", outcome(err, string(decision))).Inc()
	if err != nil {
		span.SetError(err)
		if models.IsPodFull(err) {
			middleware.Logger.WarnContext(ctx, "join request accept hit full pod",
				slog.Uint64("request_id", uint64(requestID)))
		}
		return nil, err
	}

	var event notifications.Event
	if decision == models.JoinRequestAccepted {
		s.cache.InvalidatePod(ctx, pod.ID, pod.Slug)
		leader, err := s.store.Users().GetByID(ctx, pod.LeaderID)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "leader lookup for event failed", slog.String("error", err.Error()))
			leader = nil
		}
		event = notifications.JoinRequestAccepted(pod, leader, req)
	} else {
		event = notifications.JoinRequestRejected(pod, req)
	}
	s.events.Publish(ctx, event)

	middleware.Logger.InfoContext(ctx, "join request decided",
		slog.Uint64("request_id", uint64(req.ID)),
		slog.Uint64("pod_id", uint64(pod.ID)),
		slog.String("status", string(req.Status)),
	)
	return req, nil
}

func (s *LifecycleService) decide(ctx context.Context, requestID uint, decision models.JoinRequestStatus, actorID uint) (*models.JoinRequest, *models.Pod, error) {
	if decision != models.JoinRequestAccepted && decision != models.JoinRequestRejected {
		return nil, nil, models.NewValidationError(fmt.Sprintf("decision must be %q or %q", models.JoinRequestAccepted, models.JoinRequestRejected))
	}

	found, err := s.store.JoinRequests().GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}

	var (
		req *models.JoinRequest
		pod *models.Pod
	)
	err = s.store.InPodTx(ctx, found.PodID, func(tx repository.Store) error {
		r, err := tx.JoinRequests().GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		p, err := tx.Pods().GetByID(ctx, r.PodID)
		if err != nil {
			return err
		}
		if p.LeaderID != actorID {
			return models.NewForbiddenError("only the pod leader can decide join requests")
		}
		if r.Status != models.JoinRequestPending {
			return models.NewInvalidStateError(fmt.Sprintf("join request %d is already %s", r.ID, r.Status))
		}

		now := s.now().UTC()
		if decision == models.JoinRequestAccepted {
			if !p.Active {
				return models.NewValidationError("cannot accept members into an inactive pod")
			}
			if p.AvailableSpots <= 0 {
				return models.NewPodFullError(p.ID)
			}
			if err := tx.Pods().AdjustAvailableSpots(ctx, p.ID, -1); err != nil {
				return err
			}
			if _, err := tx.Members().Activate(ctx, p.ID, r.UserID, now); err != nil {
				return err
			}
			p.AvailableSpots--
		}
		if err := tx.JoinRequests().Transition(ctx, r.ID, models.JoinRequestPending, decision, actorID, now); err != nil {
			return err
		}

		r.Status = decision
		r.DecidedByUserID = &actorID
		r.DecidedAt = &now
		req, pod = r, p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return req, pod, nil
}

// ListForPod returns a pod's requests oldest first. An empty status returns
// every request.
func (s *LifecycleService) ListForPod(ctx context.Context, podID uint, status models.JoinRequestStatus) ([]models.JoinRequest, error) {
	if err := checkStatus(status); err != nil {
		return nil, err
	}
	reqs, err := s.store.JoinRequests().ListByPod(ctx, podID)
	if err != nil {
		return nil, err
	}
	return models.FilterJoinRequests(reqs, status), nil
}

// ListForUser returns the requests a user has made, oldest first.
func (s *LifecycleService) ListForUser(ctx context.Context, userID uint, status models.JoinRequestStatus) ([]models.JoinRequest, error) {
	if err := checkStatus(status); err != nil {
		return nil, err
	}
	reqs, err := s.store.JoinRequests().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return models.FilterJoinRequests(reqs, status), nil
}

// ListForLeader returns requests across every pod the user leads.
func (s *LifecycleService) ListForLeader(ctx context.Context, leaderID uint, status models.JoinRequestStatus) ([]models.JoinRequest, error) {
	if err := checkStatus(status); err != nil {
		return nil, err
	}
	reqs, err := s.store.JoinRequests().ListByLeader(ctx, leaderID)
	if err != nil {
		return nil, err
	}
	return models.FilterJoinRequests(reqs, status), nil
}

func checkStatus(status models.JoinRequestStatus) error {
	switch status {
	case "", models.JoinRequestPending, models.JoinRequestAccepted, models.JoinRequestRejected:
		return nil
	}
	return models.NewValidationError(fmt.Sprintf("unknown status %q", status))
}

// outcome labels a metric with success or the error code.
func outcome(err error, success string) string {
	if err == nil {
		return success
	}
	if code := models.ErrorCode(err); code != "" {
		return strings.ToLower(code)
	}
	return "error"
}
