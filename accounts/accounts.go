package accounts

import (
	"context"
	"time"
)

// Principal is the public view of an account. It never carries secret material.
type Principal struct {
	UserId       string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Website      string    `json:"website,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile holds the optional fields supplied at registration.
type Profile struct {
	Name         string `json:"name"`
	Bio          string `json:"bio"`
	Website      string `json:"website"`
	ProfileImage string `json:"profileImage"`
}

type User struct {
	Principal
	HashedPassword string `json:"-"`
}

// Store is the account persistence contract. Lookups report ErrUserNotFound
// when no account matches; SaveUser reports ErrDuplicateUsername when the
// username is taken.
type Store interface {
	SaveUser(ctx context.Context, u User) error
	LoadUserById(ctx context.Context, id string) (User, error)
	LoadUserByUsername(ctx context.Context, username string) (User, error)
}
