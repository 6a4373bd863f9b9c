// Package models defines the persistent domain types and application errors.
package models

import (
	"slices"
	"sort"
	"strings"
	"time"
)

// MembershipType is the kind of club membership a pod shares.
type MembershipType string

const (
	MembershipSingleClub MembershipType = "Single-Club"
	MembershipMultiClub  MembershipType = "Multi-Club"
	MembershipFamily     MembershipType = "Family"
)

// Valid reports whether t is one of the known membership types.
func (t MembershipType) Valid() bool {
	switch t {
	case MembershipSingleClub, MembershipMultiClub, MembershipFamily:
		return true
	}
	return false
}

// Pod is a group sharing one club membership. AvailableSpots always equals
// TotalSpots minus the number of active PodMember rows; the leader holds no
// row and takes no spot.
type Pod struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	LeaderID           uint           `gorm:"not null;index" json:"leader_id"`
	Leader             *User          `gorm:"foreignKey:LeaderID" json:"leader,omitempty"`
	Slug               string         `gorm:"size:160;not null;uniqueIndex" json:"slug"`
	ClubName           string         `gorm:"size:120;not null" json:"club_name"`
	Region             string         `gorm:"size:80;not null;index" json:"region"`
	Address            string         `gorm:"size:255;not null" json:"address"`
	MembershipType     MembershipType `gorm:"type:varchar(20);not null;index" json:"membership_type"`
	Title              string         `gorm:"size:160;not null" json:"title"`
	Description        string         `gorm:"type:text" json:"description"`
	CostPerPersonCents int64          `gorm:"not null" json:"cost_per_person_cents"`
	TotalSpots         int            `gorm:"not null" json:"total_spots"`
	AvailableSpots     int            `gorm:"not null" json:"available_spots"`
	Amenities          []string       `gorm:"serializer:json;type:text" json:"amenities"`
	Rules              *string        `gorm:"type:text" json:"rules,omitempty"`
	Active             bool           `gorm:"not null;default:true;index" json:"active"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// TableName returns the table name for Pod.
func (Pod) TableName() string {
	return "pods"
}

// HasAmenities reports whether the pod offers every amenity in want.
func (p *Pod) HasAmenities(want []string) bool {
	for _, a := range want {
		if !slices.Contains(p.Amenities, a) {
			return false
		}
	}
	return true
}

// MatchesQuery reports whether q occurs, ignoring case, in the title, club
// name, description or address. q must already be lower-cased and trimmed.
func (p *Pod) MatchesQuery(q string) bool {
	if q == "" {
		return true
	}
	for _, field := range []string{p.Title, p.ClubName, p.Description, p.Address} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// NormalizeQuery prepares free text for MatchesQuery.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// NormalizeAmenities trims and lower-cases tags, dropping blanks and
// repeats while keeping first-seen order.
func NormalizeAmenities(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || slices.Contains(out, a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// PodFilter narrows a pod listing. Zero-valued fields are ignored.
type PodFilter struct {
	Region         string
	MembershipType MembershipType
	Amenities      []string
}

// IsEmpty reports whether the filter constrains nothing.
func (f PodFilter) IsEmpty() bool {
	return f.Region == "" && f.MembershipType == "" && len(f.Amenities) == 0
}

// Matches applies region and membership type as exact matches and
// amenities with all-of semantics.
func (f PodFilter) Matches(p *Pod) bool {
	if f.Region != "" && p.Region != f.Region {
		return false
	}
	if f.MembershipType != "" && p.MembershipType != f.MembershipType {
		return false
	}
	return p.HasAmenities(f.Amenities)
}

// PodSort names an optional ordering for pod listings.
type PodSort string

const (
	PodSortDefault       PodSort = ""
	PodSortCostAsc       PodSort = "cost_asc"
	PodSortCostDesc      PodSort = "cost_desc"
	PodSortNewest        PodSort = "newest"
	PodSortAvailableDesc PodSort = "spots_desc"
)

// Valid reports whether s is a known sort key.
func (s PodSort) Valid() bool {
	switch s {
	case PodSortDefault, PodSortCostAsc, PodSortCostDesc, PodSortNewest, PodSortAvailableDesc:
		return true
	}
	return false
}

// SortPods orders pods in place. Input is expected in insertion order, which
// the stable sort keeps as the tie-break.
func SortPods(pods []Pod, by PodSort) {
	var less func(a, b *Pod) bool
	switch by {
	case PodSortCostAsc:
		less = func(a, b *Pod) bool { return a.CostPerPersonCents < b.CostPerPersonCents }
	case PodSortCostDesc:
		less = func(a, b *Pod) bool { return a.CostPerPersonCents > b.CostPerPersonCents }
	case PodSortNewest:
		less = func(a, b *Pod) bool { return a.CreatedAt.After(b.CreatedAt) }
	case PodSortAvailableDesc:
		less = func(a, b *Pod) bool { return a.AvailableSpots > b.AvailableSpots }
	default:
		return
	}
	sort.SliceStable(pods, func(i, j int) bool { return less(&pods[i], &pods[j]) })
}
