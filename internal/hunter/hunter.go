// Package hunter defines the boundary to the platform-specific
// collectors that discover and refresh entities. The engine never
// talks to a platform directly; it hands an identifier and bounds to
// a Hunter and ingests whatever comes back.
package hunter

import (
	"context"

	"github.com/axju/metrico/internal/models"
)

// Count sentinels for refresh bounds. A hunter treats any negative
// value as "use my default"; CountUnset additionally tells the engine
// the caller never set the field, so a scheduled run can substitute
// its own policy.
const (
	CountDefault = -1
	CountUnset   = -2
)

// AccountParams bounds how much related data an account refresh pulls.
type AccountParams struct {
	MediaCount        int
	CommentCount      int
	SubscriptionCount int
}

// DefaultAccountParams returns the bounds used by scheduled runs.
func DefaultAccountParams() AccountParams {
	return AccountParams{
		MediaCount:        CountDefault,
		CommentCount:      CountDefault,
		SubscriptionCount: CountDefault,
	}
}

// MediaParams bounds how much related data a media refresh pulls.
type MediaParams struct {
	CommentCount int
}

// DefaultMediaParams returns the bounds used by scheduled runs.
func DefaultMediaParams() MediaParams {
	return MediaParams{CommentCount: CountDefault}
}

// Hunter is one platform's collector.
type Hunter interface {
	// Platform returns the platform key this hunter serves.
	Platform() string

	// Analyze searches the platform for entities matching query. It is
	// used by discovery, never by the scheduled-refresh path. With
	// full set the hunter also pulls related data for each candidate.
	Analyze(ctx context.Context, query string, full bool) ([]models.AccountData, error)

	// FetchAccount refreshes one account by its platform identifier.
	FetchAccount(ctx context.Context, identifier string, params AccountParams) (models.AccountData, error)

	// FetchMedia refreshes one media by its platform identifier.
	FetchMedia(ctx context.Context, identifier string, params MediaParams) (models.MediaData, error)
}

// Registry maps platform keys to hunters.
type Registry map[string]Hunter

// Register adds a hunter under its platform key.
func (r Registry) Register(h Hunter) {
	r[h.Platform()] = h
}

// Get returns the hunter for a platform, nil when unregistered.
func (r Registry) Get(platform string) Hunter {
	return r[platform]
}
