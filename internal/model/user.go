package model

import "time"

// UnknownUserName is shown when a profile cannot be resolved.
const UnknownUserName = "Unknown User"

// Identity is the authenticated actor as supplied by the identity provider.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Authenticated reports whether the identity carries a user id.
func (i Identity) Authenticated() bool {
	return i.ID != ""
}

// Profile is a row of the user profile store.
type Profile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	Avatar      string    `json:"avatar,omitempty"`
	CompanyName string    `json:"companyName,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserInfo is the display metadata of a participant.
type UserInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	Avatar      string `json:"avatar,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	LastSeen    int64  `json:"lastSeen"`
	IsOnline    bool   `json:"isOnline"`
}

// Snapshot converts the info into a conversation participant snapshot.
func (u UserInfo) Snapshot() Participant {
	return Participant{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Avatar:      u.Avatar,
		CompanyName: u.CompanyName,
		LastSeen:    u.LastSeen,
		IsOnline:    u.IsOnline,
	}
}

// PlaceholderUser is returned when a lookup fails.
func PlaceholderUser(id string) UserInfo {
	return UserInfo{
		ID:       id,
		Name:     UnknownUserName,
		Email:    "",
		Role:     RoleSponsor,
		IsOnline: false,
	}
}
