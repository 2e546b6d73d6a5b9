package models

import "strings"

// UnknownUserName is shown in place of a display name whose profile document is missing.
const UnknownUserName = "Unknown User"

// Identity providers a user can sign in with.
const (
	ProviderPassword = "password"
	ProviderFirebase = "firebase"
)

// User is the profile document stored at users/{uid}.
type User struct {
	UID              string    `json:"uid"`
	DisplayName      string    `json:"display_name"`
	DisplayNameLower string    `json:"display_name_lower,omitempty"`
	Email            string    `json:"email"`
	PhotoURL         string    `json:"photo_url"`
	Provider         string    `json:"provider,omitempty"`
	CreatedAt        Timestamp `json:"created_at"`
}

// UserCompact is the author block embedded in feed items, comments and notifications.
type UserCompact struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// ToCompact returns the public subset of the profile.
func (u *User) ToCompact() UserCompact {
	return UserCompact{UID: u.UID, DisplayName: u.DisplayName, PhotoURL: u.PhotoURL}
}

// NormalizeName lowers and trims a display name for prefix search.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SignUpRequest is the password sign-up payload.
type SignUpRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=2,max=50"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
}

// SignInRequest is the password sign-in payload.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// FirebaseLoginRequest carries an ID token obtained by the browser through a federated sign-in.
type FirebaseLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// UpdateProfileRequest is the partial profile update payload.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name,omitempty" validate:"omitempty,min=2,max=50"`
	PhotoURL    string `json:"photo_url,omitempty" validate:"omitempty,url"`
}
