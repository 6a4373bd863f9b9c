package models

import "time"

// User is an account that can lead pods or request to join them.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Phone     *string   `gorm:"size:40" json:"phone,omitempty"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Contact returns the user's current contact details as a snapshot.
func (u *User) Contact() ContactSnapshot {
	return ContactSnapshot{Name: u.Name, Email: u.Email, Phone: u.Phone}
}
