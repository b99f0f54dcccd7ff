package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleStoreOwner Role = "storeOwner"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleStoreOwner
}

type Address struct {
	Town    string `json:"town"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`
}

func (a Address) IsComplete() bool {
	return strings.TrimSpace(a.Town) != "" &&
		strings.TrimSpace(a.State) != "" &&
		strings.TrimSpace(a.Zipcode) != ""
}

func (a Address) String() string {
	return a.Town + ", " + a.State + ", " + a.Zipcode
}

type User struct {
	ID           uuid.UUID `json:"id"`
	StoreName    string    `json:"store_name"`
	Address      Address   `json:"address"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
