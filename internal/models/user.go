package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleClient  Role = "client"
	RoleProfile Role = "profile"
)

// AvailabilityStatus is the explicit availability a profile user can set.
// It is independent of connection-derived online state.
type AvailabilityStatus string

const (
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityBusy        AvailabilityStatus = "busy"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
	AvailabilityVacation    AvailabilityStatus = "vacation"
)

// Valid reports whether s is one of the known availability values.
func (s AvailabilityStatus) Valid() bool {
	switch s {
	case AvailabilityAvailable, AvailabilityBusy, AvailabilityUnavailable, AvailabilityVacation:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	BaseModel
	Email        string             `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password     string             `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	DisplayName  string             `gorm:"size:100" json:"displayName"`
	Role         Role               `gorm:"size:20;default:'client'" json:"role"`
	ProfileImage string             `json:"profileImage,omitempty"`
	IsActive     bool               `gorm:"default:true" json:"isActive"`
	Availability AvailabilityStatus `gorm:"size:20;default:'unavailable'" json:"availability,omitempty"`
	LastSeenAt   *time.Time         `json:"lastSeenAt,omitempty"`

	// Relations (not always preloaded)
	InitiatedConversations []Conversation `gorm:"foreignKey:InitiatorID" json:"-"`
	RespondedConversations []Conversation `gorm:"foreignKey:ResponderID" json:"-"`
	SentMessages           []Message      `gorm:"foreignKey:SenderID" json:"-"`
	ReceivedMessages       []Message      `gorm:"foreignKey:RecipientID" json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID           string             `json:"id"`
	DisplayName  string             `json:"displayName"`
	Role         Role               `json:"role"`
	ProfileImage string             `json:"profileImage,omitempty"`
	Availability AvailabilityStatus `json:"availability,omitempty"`
	LastSeenAt   *time.Time         `json:"lastSeenAt,omitempty"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:           u.ID,
		DisplayName:  u.DisplayName,
		Role:         u.Role,
		ProfileImage: u.ProfileImage,
		Availability: u.Availability,
		LastSeenAt:   u.LastSeenAt,
	}
}
