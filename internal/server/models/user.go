// Package models defines server-side data models persisted in the database.
package models

import "time"

type User struct {
	ID           string
	RoleID       int64
	RoleName     string
	UserName     string
	FullName     string
	Email        string
	PasswordHash string
	DateOfBirth  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
