package model

import "time"

// DefaultAvatar is assigned to users who never uploaded a picture.
const DefaultAvatar = "https://cdn.libraryconnect.app/avatars/default.png"

type User struct {
	ID           int64     `json:"id,string" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Phone        string    `json:"phone" db:"phone"`
	Location     string    `json:"location" db:"location"`
	Avatar       string    `json:"avatar" db:"avatar"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// UserSummary is the only user projection embedded in chat payloads.
type UserSummary struct {
	ID     int64  `json:"id,string"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// PublicProfile is what other users may see: no email, phone or password hash.
type PublicProfile struct {
	ID        int64     `json:"id,string"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		Name:      u.Name,
		Location:  u.Location,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}
