package models

import "time"

// PodMember is an accepted, non-leader seat in a pod. Rows are deactivated
// rather than deleted; re-acceptance reactivates the same row.
type PodMember struct {
	ID       uint       `gorm:"primaryKey" json:"id"`
	PodID    uint       `gorm:"not null;uniqueIndex:idx_pod_members_pod_user" json:"pod_id"`
	UserID   uint       `gorm:"not null;uniqueIndex:idx_pod_members_pod_user;index" json:"user_id"`
	User     *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	JoinedAt time.Time  `gorm:"not null" json:"joined_at"`
	Active   bool       `gorm:"not null;default:true;index" json:"active"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
}

// TableName returns the table name for PodMember.
func (PodMember) TableName() string {
	return "pod_members"
}

// RosterRole distinguishes the leader from members in a roster.
type RosterRole string

const (
	RosterRoleLeader RosterRole = "leader"
	RosterRoleMember RosterRole = "member"
)

// RosterEntry is one line of a pod roster.
type RosterEntry struct {
	UserID   uint       `json:"user_id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     RosterRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
}

// LeaderDashboard summarises the pods a leader runs.
type LeaderDashboard struct {
	ActivePods          int   `json:"active_pods"`
	TotalMembers        int   `json:"total_members"`
	MonthlyRevenueCents int64 `json:"monthly_revenue_cents"`
	PendingRequests     int   `json:"pending_requests"`
}
