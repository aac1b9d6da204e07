package domain

import (
	"time"
)

// User is an operator account. CategoryID scopes visibility: 0 means the
// user sees everything, any other value restricts listings to rows linked
// to that category.
type User struct {
	ID           int64     `db:"id"            json:"id"`
	Username     string    `db:"username"      json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin"      json:"is_admin"`
	IsPermission bool      `db:"is_permission" json:"is_permission"`
	CategoryID   int64     `db:"category_id"   json:"category_id"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}

// Category partitions visibility of jobs, executions and audit logs.
type Category struct {
	ID          int64     `db:"id"          json:"id"`
	Name        string    `db:"name"        json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updated_at"`
}

// UnscopedCategoryID is the reserved category meaning "all"; it is seeded
// at store initialization and can never be modified or deleted.
const UnscopedCategoryID int64 = 0
