// Package profile keeps the player's profile on the client side: identity, display name,
// last known score and whether the account was blocked.
//
// The engine reads the profile once when a session starts and writes the score back every
// time it changes.
package profile

import (
	"context"
	"errors"
)

// Profile is the durable record of one player identity.
type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Score     int    `json:"score"`
	IsBlocked bool   `json:"isBlocked"`
	IsAdmin   bool   `json:"isAdmin"`
}

// ErrNotFound is returned when no profile is stored under the requested id.
var ErrNotFound = errors.New("profile not found")

// Store persists profiles, one per identity.
type Store interface {
	// Load returns the profile stored under id, or ErrNotFound.
	Load(ctx context.Context, id string) (*Profile, error)

	// Save creates or overwrites the profile.
	Save(ctx context.Context, p *Profile) error

	// UpdateScore overwrites the score of an existing profile.
	UpdateScore(ctx context.Context, id string, score int) error

	// SetBlocked marks an existing profile as blocked or unblocked.
	SetBlocked(ctx context.Context, id string, blocked bool) error
}

// LoadOrCreate returns the profile stored under id, creating it with a zero score and
// username as display name if there is none.
func LoadOrCreate(ctx context.Context, s Store, id, username string) (*Profile, error) {
	p, err := s.Load(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if username == "" {
		username = id
	}
	p = &Profile{ID: id, Username: username}
	if err := s.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
