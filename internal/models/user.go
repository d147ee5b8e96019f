package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// UserRole is the closed set of platform roles.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleEngineer  UserRole = "ingeniero"
	RoleArchitect UserRole = "arquitecto"
	RoleClient    UserRole = "cliente"
	RoleOther     UserRole = "otro"
)

var roleAliases = map[string]UserRole{
	"admin":         RoleAdmin,
	"administrador": RoleAdmin,
	"ingeniero":     RoleEngineer,
	"engineer":      RoleEngineer,
	"arquitecto":    RoleArchitect,
	"architect":     RoleArchitect,
	"cliente":       RoleClient,
	"client":        RoleClient,
	"otro":          RoleOther,
	"other":         RoleOther,
}

// ParseUserRole maps free text to a role, ignoring case and surrounding space.
func ParseUserRole(raw string) (UserRole, error) {
	if role, ok := roleAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Scan implements sql.Scanner. Legacy rows with an unknown role are read as RoleOther.
func (r *UserRole) Scan(src interface{}) error {
	raw, err := scanText(src)
	if err != nil {
		return fmt.Errorf("scan role: %w", err)
	}
	role, err := ParseUserRole(raw)
	if err != nil {
		role = RoleOther
	}
	*r = role
	return nil
}

// Value implements driver.Valuer.
func (r UserRole) Value() (driver.Value, error) {
	return string(r), nil
}

// UserStatus marks whether the account may log in.
type UserStatus string

const (
	UserStatusActive   UserStatus = "activo"
	UserStatusInactive UserStatus = "inactivo"
)

// User represents an application user stored in the usuarios table.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Name         string     `db:"nombre" json:"nombre"`
	Surname      string     `db:"apellido" json:"apellido"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password" json:"-"`
	Role         UserRole   `db:"rol" json:"rol"`
	Status       UserStatus `db:"estado" json:"estado"`
	Token        *string    `db:"token" json:"-"`
	Deleted      bool       `db:"eliminado" json:"-"`
	CreatedAt    time.Time  `db:"fecha_creacion" json:"fecha_creacion"`
}

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u != nil && !u.Deleted && !strings.EqualFold(string(u.Status), string(UserStatusInactive))
}

// FullName joins name and surname.
func (u *User) FullName() string {
	return strings.TrimSpace(u.Name + " " + u.Surname)
}

// Identity returns the caller identity derived from the user row.
func (u *User) Identity() *Identity {
	return &Identity{UserID: u.ID, Name: u.Name, Surname: u.Surname, Email: u.Email, Role: u.Role}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"pagina"`
	PageSize   int `json:"por_pagina"`
	TotalCount int `json:"total"`
}

// NewPagination normalises page values; page size is capped at max.
func NewPagination(page, size, max int) Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > max {
		size = max
	}
	return Pagination{Page: page, PageSize: size}
}

// Offset is the SQL offset for the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func scanText(src interface{}) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("null value")
	default:
		return "", fmt.Errorf("unsupported type %T", src)
	}
}
