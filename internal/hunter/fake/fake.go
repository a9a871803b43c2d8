// Package fake implements a simulated platform hunter. It generates
// deterministic accounts, medias and comments from a seed, which makes
// it usable both for engine tests and for benchmarking a deployment
// without touching a real platform.
package fake

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/axju/metrico/internal/hunter"
	"github.com/axju/metrico/internal/models"
)

// Config tunes the generated data volume and drift.
type Config struct {
	// Accounts is how many candidates Analyze returns per query.
	Accounts int
	// Medias and Comments bound generated related data when the caller
	// passes negative counts.
	Medias   int
	Comments int
	// Subscriptions bounds generated follow edges per account.
	Subscriptions int
	// StatsStep is added to every counter on each successive refresh
	// of the same identifier, so deltas are predictable.
	StatsStep int64
	// Seed fixes the generated identifiers and baseline counters.
	Seed int64
}

// DefaultConfig returns a small deterministic setup.
func DefaultConfig() Config {
	return Config{
		Accounts:      2,
		Medias:        3,
		Comments:      2,
		Subscriptions: 1,
		StatsStep:     10,
		Seed:          1,
	}
}

// Hunter is the simulated platform. Refresh counters and injected
// failures are tracked per identifier.
type Hunter struct {
	cfg Config

	mu        sync.Mutex
	refreshes map[string]int64
	failures  map[string]error
}

func New(cfg Config) *Hunter {
	return &Hunter{
		cfg:       cfg,
		refreshes: make(map[string]int64),
		failures:  make(map[string]error),
	}
}

// Platform implements hunter.Hunter.
func (h *Hunter) Platform() string { return "fake" }

// FailWith makes every refresh of identifier return err until cleared
// with a nil err.
func (h *Hunter) FailWith(identifier string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.failures, identifier)
		return
	}
	h.failures[identifier] = err
}

// Analyze implements hunter.Hunter. Candidates derive from the query
// alone, so repeated discovery yields identical identifiers.
func (h *Hunter) Analyze(ctx context.Context, query string, full bool) ([]models.AccountData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make([]models.AccountData, 0, h.cfg.Accounts)
	for i := 0; i < h.cfg.Accounts; i++ {
		identifier := fmt.Sprintf("%s-%d", query, i)
		data := h.accountData(identifier, 0)
		if full {
			data.Medias = h.mediaData(identifier, h.cfg.Medias, h.cfg.Comments, 0)
		}
		candidates = append(candidates, data)
	}
	return candidates, nil
}

// FetchAccount implements hunter.Hunter.
func (h *Hunter) FetchAccount(ctx context.Context, identifier string, params hunter.AccountParams) (models.AccountData, error) {
	if err := ctx.Err(); err != nil {
		return models.AccountData{}, err
	}

	h.mu.Lock()
	if err := h.failures[identifier]; err != nil {
		h.mu.Unlock()
		return models.AccountData{}, err
	}
	h.refreshes[identifier]++
	generation := h.refreshes[identifier]
	h.mu.Unlock()

	data := h.accountData(identifier, generation)
	data.Medias = h.mediaData(identifier, bounded(params.MediaCount, h.cfg.Medias), bounded(params.CommentCount, h.cfg.Comments), generation)

	subs := bounded(params.SubscriptionCount, h.cfg.Subscriptions)
	for i := 0; i < subs; i++ {
		data.Subscriptions = append(data.Subscriptions, h.accountData(fmt.Sprintf("%s-sub-%d", identifier, i), 0))
	}
	return data, nil
}

// FetchMedia implements hunter.Hunter.
func (h *Hunter) FetchMedia(ctx context.Context, identifier string, params hunter.MediaParams) (models.MediaData, error) {
	if err := ctx.Err(); err != nil {
		return models.MediaData{}, err
	}

	h.mu.Lock()
	if err := h.failures[identifier]; err != nil {
		h.mu.Unlock()
		return models.MediaData{}, err
	}
	h.refreshes[identifier]++
	generation := h.refreshes[identifier]
	h.mu.Unlock()

	medias := h.mediaDataFor(identifier, identifier, bounded(params.CommentCount, h.cfg.Comments), generation)
	return medias, nil
}

// bounded resolves a caller count against the configured default.
// Negative means "hunter default" per the sentinel contract.
func bounded(requested, fallback int) int {
	if requested < 0 {
		return fallback
	}
	return requested
}

func (h *Hunter) baseline(identifier string) *rand.Rand {
	seed := h.cfg.Seed
	for _, c := range identifier {
		seed = seed*31 + int64(c)
	}
	return rand.New(rand.NewSource(seed))
}

func (h *Hunter) accountData(identifier string, generation int64) models.AccountData {
	rng := h.baseline(identifier)
	step := h.cfg.StatsStep * generation
	return models.AccountData{
		Identifier: identifier,
		Info: &models.AccountInfoData{
			Name: "Account " + identifier,
			Bio:  fmt.Sprintf("simulated account %s", identifier),
		},
		Stats: &models.AccountStatsData{
			Medias:        rng.Int63n(100) + step,
			Views:         rng.Int63n(1_000_000) + step,
			Followers:     rng.Int63n(100_000) + step,
			Subscriptions: rng.Int63n(1_000),
		},
	}
}

func (h *Hunter) mediaData(owner string, medias, comments int, generation int64) []models.MediaData {
	result := make([]models.MediaData, 0, medias)
	for i := 0; i < medias; i++ {
		identifier := fmt.Sprintf("%s-media-%d", owner, i)
		result = append(result, h.mediaDataFor(owner, identifier, comments, generation))
	}
	return result
}

func (h *Hunter) mediaDataFor(owner, identifier string, comments int, generation int64) models.MediaData {
	rng := h.baseline(identifier)
	step := h.cfg.StatsStep * generation
	data := models.MediaData{
		Identifier: identifier,
		Created:    time.Unix(1_600_000_000+rng.Int63n(100_000_000), 0).UTC(),
		Info: &models.MediaInfoData{
			Title:   "Media " + identifier,
			Caption: fmt.Sprintf("simulated media %s", identifier),
		},
		Stats: &models.MediaStatsData{
			Comments: rng.Int63n(500) + step,
			Likes:    rng.Int63n(10_000) + step,
			Views:    rng.Int63n(1_000_000) + step,
		},
	}
	for i := 0; i < comments; i++ {
		data.Comments = append(data.Comments, models.CommentData{
			Identifier: fmt.Sprintf("%s-comment-%d", identifier, i),
			Author:     h.accountData(fmt.Sprintf("%s-commenter-%d", owner, i), 0),
			Text:       fmt.Sprintf("comment %d on %s", i, identifier),
			Likes:      rng.Int63n(100),
			Created:    time.Unix(1_700_000_000+rng.Int63n(10_000_000), 0).UTC(),
		})
	}
	return data
}
