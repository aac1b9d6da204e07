package api

import "github.com/jonesrussell/gosched/internal/domain"

// LoginRequest is the credentials payload for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the signed token and the authenticated user.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// JobRequest is the declaration payload for POST and PUT /api/v1/jobs.
type JobRequest struct {
	Name           string          `json:"name"`
	JobClassString string          `json:"job_class_string"`
	PubArgs        domain.JSONList `json:"pub_args"`

	Minute    string `json:"minute"`
	Hour      string `json:"hour"`
	Day       string `json:"day"`
	Month     string `json:"month"`
	DayOfWeek string `json:"day_of_week"`
}

// CategoryRequest is the payload for category writes.
type CategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UserRequest is the payload for user writes. Password is optional on
// updates; empty keeps the stored hash.
type UserRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	CategoryID   int64  `json:"category_id"`
	IsAdmin      bool   `json:"is_admin"`
	IsPermission bool   `json:"is_permission"`
}
