package session

import (
	"context"
	"fmt"

	"github.com/mjappgame/mesa/internal/game"
	"github.com/mjappgame/mesa/internal/profile"
)

// BlockStore records that the server blocked a player.
type BlockStore interface {
	SetBlocked(ctx context.Context, id string, blocked bool) error
}

// ProfileStore is where the engine reads the player's profile at start and writes the
// score and the block back.
type ProfileStore interface {
	ScoreStore
	BlockStore
	Load(ctx context.Context, id string) (*profile.Profile, error)
}

// Open loads the profile of player id and creates an engine for it. A blocked profile
// refuses to start with ErrSessionTerminated.
//
// Self, Username, Score, Store and Blocks in opts are filled from the profile.
func Open(ctx context.Context, store ProfileStore, id string, opts Options) (*Engine, error) {
	p, err := store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %q: %w", id, err)
	}
	if p.IsBlocked {
		return nil, fmt.Errorf("profile %q: %s: %w", id, textProfileBlocked, ErrSessionTerminated)
	}
	opts.Self = game.PlayerID(p.ID)
	opts.Username = p.Username
	opts.Score = p.Score
	opts.Store = store
	opts.Blocks = store
	return NewEngine(opts), nil
}
