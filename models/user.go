package models

import "time"

// User represents a user of the application along with their presence settings
type User struct {
	ID           string  // Discord user ID
	AccessToken  string  // Discord OAuth access token
	RefreshToken string  // Discord OAuth refresh token
	SessionToken *string // Headless session token, nil when no session is active
	Enabled      bool

	Name       *string
	Type       ActivityKind
	Platform   *Platform
	State      *string
	Details    *string
	LargeImage *string
	LargeText  *string
	SmallImage *string
	SmallText  *string

	Button1Text *string
	Button1URL  *string
	Button2Text *string
	Button2URL  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSession reports whether the user holds a headless session token
func (u *User) HasSession() bool {
	return u.SessionToken != nil && *u.SessionToken != ""
}
