// Package notifications turns lifecycle transitions into events and delivers
// them asynchronously to Redis, email and the log.
package notifications

import (
	"context"
	"time"

	"podshare/internal/models"

	"github.com/google/uuid"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventJoinRequestCreated  EventType = "JoinRequestCreated"
	EventJoinRequestAccepted EventType = "JoinRequestAccepted"
	EventJoinRequestRejected EventType = "JoinRequestRejected"
	EventMemberRemoved       EventType = "MemberRemoved"
)

// Event is the payload published for every lifecycle transition. ID is
// unique per event so consumers can drop redeliveries.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	OccurredAt     time.Time `json:"occurredAt"`
	PodID          uint      `json:"podId"`
	PodTitle       string    `json:"podTitle"`
	RequestID      uint      `json:"requestId,omitempty"`
	LeaderID       uint      `json:"leaderId"`
	LeaderName     string    `json:"leaderName,omitempty"`
	LeaderEmail    string    `json:"leaderEmail,omitempty"`
	ApplicantID    uint      `json:"applicantId"`
	ApplicantName  string    `json:"applicantName"`
	ApplicantEmail string    `json:"applicantEmail"`
	RemovedByID    uint      `json:"removedById,omitempty"`
}

// Recipient is who the event is addressed to.
type Recipient struct {
	UserID uint
	Name   string
	Email  string
}

// Recipient returns the leader for new requests and the applicant or member
// for everything else.
func (e Event) Recipient() Recipient {
	if e.Type == EventJoinRequestCreated {
		return Recipient{UserID: e.LeaderID, Name: e.LeaderName, Email: e.LeaderEmail}
	}
	return Recipient{UserID: e.ApplicantID, Name: e.ApplicantName, Email: e.ApplicantEmail}
}

func newEvent(t EventType, pod *models.Pod) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		PodID:      pod.ID,
		PodTitle:   pod.Title,
		LeaderID:   pod.LeaderID,
	}
}

func withRequest(e Event, req *models.JoinRequest) Event {
	e.RequestID = req.ID
	e.ApplicantID = req.UserID
	e.ApplicantName = req.Contact.Name
	e.ApplicantEmail = req.Contact.Email
	return e
}

func withLeader(e Event, leader *models.User) Event {
	if leader != nil {
		e.LeaderName = leader.Name
		e.LeaderEmail = leader.Email
	}
	return e
}

// JoinRequestCreated is sent to the leader when someone applies.
func JoinRequestCreated(pod *models.Pod, leader *models.User, req *models.JoinRequest) Event {
	return withLeader(withRequest(newEvent(EventJoinRequestCreated, pod), req), leader)
}

// JoinRequestAccepted is sent to the applicant on acceptance.
func JoinRequestAccepted(pod *models.Pod, leader *models.User, req *models.JoinRequest) Event {
	return withLeader(withRequest(newEvent(EventJoinRequestAccepted, pod), req), leader)
}

// JoinRequestRejected is sent to the applicant on rejection.
func JoinRequestRejected(pod *models.Pod, req *models.JoinRequest) Event {
	return withRequest(newEvent(EventJoinRequestRejected, pod), req)
}

// MemberRemoved is sent to a member who left or was removed.
func MemberRemoved(pod *models.Pod, member *models.User, removedBy uint) Event {
	e := newEvent(EventMemberRemoved, pod)
	e.ApplicantID = member.ID
	e.ApplicantName = member.Name
	e.ApplicantEmail = member.Email
	e.RemovedByID = removedBy
	return e
}

// Publisher accepts events for delivery. Publish never blocks on delivery
// and never reports delivery failures to the caller.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) {}

// Sink delivers one event to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}
