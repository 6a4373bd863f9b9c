package models

import "time"

// JoinRequestStatus defines lifecycle states for pod join requests.
type JoinRequestStatus string

const (
	// JoinRequestPending indicates the request is awaiting the leader.
	JoinRequestPending JoinRequestStatus = "pending"
	// JoinRequestAccepted indicates the leader admitted the requester.
	JoinRequestAccepted JoinRequestStatus = "accepted"
	// JoinRequestRejected indicates the leader declined the request.
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s JoinRequestStatus) Terminal() bool {
	return s == JoinRequestAccepted || s == JoinRequestRejected
}

// ContactSnapshot is the requester's contact details as of submission.
type ContactSnapshot struct {
	Name  string  `gorm:"size:120;not null" json:"name"`
	Email string  `gorm:"size:255;not null" json:"email"`
	Phone *string `gorm:"size:40" json:"phone,omitempty"`
}

// JoinRequest is a user's application to join a pod. Only one pending
// request may exist per (pod, user).
type JoinRequest struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	PodID           uint              `gorm:"not null;index;uniqueIndex:idx_join_requests_pending,where:status = 'pending'" json:"pod_id"`
	Pod             *Pod              `gorm:"foreignKey:PodID" json:"pod,omitempty"`
	UserID          uint              `gorm:"not null;index;uniqueIndex:idx_join_requests_pending,where:status = 'pending'" json:"user_id"`
	Status          JoinRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Message         string            `gorm:"type:text" json:"message"`
	Contact         ContactSnapshot   `gorm:"embedded;embeddedPrefix:contact_" json:"contact"`
	DecidedByUserID *uint             `json:"decided_by_user_id,omitempty"`
	DecidedAt       *time.Time        `json:"decided_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// TableName returns the table name for JoinRequest.
func (JoinRequest) TableName() string {
	return "join_requests"
}

// FilterJoinRequests keeps the requests in the given status. An empty status
// keeps everything.
func FilterJoinRequests(in []JoinRequest, status JoinRequestStatus) []JoinRequest {
	if status == "" {
		return in
	}
	out := make([]JoinRequest, 0, len(in))
	for _, r := range in {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}
