package model

import "github.com/google/uuid"

type UserType string

const (
	UserTypeAdmin    UserType = "admin"
	UserTypeCustomer UserType = "customer"
)

type Principal struct {
	UserUUID uuid.UUID
	UserType UserType
}

func (p Principal) IsAdmin() bool {
	return p.UserType == UserTypeAdmin
}

// CanAccessUser reports whether the principal may act on resources
// owned by userUUID. Admins may act on anyone.
func (p Principal) CanAccessUser(userUUID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return p.UserUUID == userUUID
}
