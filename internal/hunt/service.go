package hunt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/axju/metrico/internal/hunter"
	"github.com/axju/metrico/internal/metrics"
	"github.com/axju/metrico/internal/models"
)

// Service ties the hunter registry to the snapshot store. Every
// refresh goes fetch-then-ingest: the hunter pulls a payload from the
// platform, the repository appends it in one transaction.
type Service struct {
	accounts models.AccountRepository
	medias   models.MediaRepository
	hunters  hunter.Registry

	dispatcher *Dispatcher
	collector  *metrics.Collector
	logger     *slog.Logger
}

func NewService(
	accounts models.AccountRepository,
	medias models.MediaRepository,
	hunters hunter.Registry,
	dispatcher *Dispatcher,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Service {
	return &Service{
		accounts:   accounts,
		medias:     medias,
		hunters:    hunters,
		dispatcher: dispatcher,
		collector:  collector,
		logger:     logger,
	}
}

// Create registers an account for tracking without contacting the
// platform. Resolving an already tracked (platform, identifier) pair
// returns the existing account.
func (s *Service) Create(ctx context.Context, platform, identifier string) (*models.Account, error) {
	if s.hunters.Get(platform) == nil {
		return nil, fmt.Errorf("platform %q: %w", platform, models.ErrNotFound)
	}
	return s.accounts.Resolve(ctx, platform, models.AccountData{Identifier: identifier})
}

// Discover searches for accounts matching query and tracks every
// candidate. An empty platform fans the query out to all registered
// hunters; a broken platform is skipped there instead of aborting the
// others. With full set the candidates arrive with related data, which
// lands as their initial snapshots.
func (s *Service) Discover(ctx context.Context, platform, query string, full bool) ([]*models.Account, error) {
	var hunters []hunter.Hunter
	if platform != "" {
		h := s.hunters.Get(platform)
		if h == nil {
			return nil, fmt.Errorf("platform %q: %w", platform, models.ErrNotFound)
		}
		hunters = append(hunters, h)
	} else {
		for _, h := range s.hunters {
			hunters = append(hunters, h)
		}
	}

	var accounts []*models.Account
	for _, h := range hunters {
		candidates, err := h.Analyze(ctx, query, full)
		if err != nil {
			if platform != "" {
				return nil, &models.HunterError{Platform: platform, Err: err}
			}
			s.logger.Warn("discovery failed on platform",
				slog.String("platform", h.Platform()),
				slog.String("error", err.Error()))
			continue
		}
		for _, data := range candidates {
			account, err := s.accounts.Resolve(ctx, h.Platform(), data)
			if err != nil {
				return accounts, err
			}
			accounts = append(accounts, account)
		}
	}

	s.logger.Info("discovery finished",
		slog.String("platform", platform),
		slog.String("query", query),
		slog.Int("candidates", len(accounts)))
	return accounts, nil
}

// UpdateAccount refreshes one account. A hunter failure marks the
// account status error; a later success flips it back to active.
func (s *Service) UpdateAccount(ctx context.Context, id int64, params hunter.AccountParams) error {
	start := time.Now()
	err := s.updateAccount(ctx, id, params)
	s.collector.ObserveTask("account", err, time.Since(start))
	return err
}

func (s *Service) updateAccount(ctx context.Context, id int64, params hunter.AccountParams) error {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	h := s.hunters.Get(account.Platform)
	if h == nil {
		return fmt.Errorf("platform %q: %w", account.Platform, models.ErrNotFound)
	}

	data, err := h.FetchAccount(ctx, account.Identifier, params)
	if err != nil {
		s.markFetchFailed(ctx, "account", id, account.Status, func() error {
			return s.accounts.SetStatus(ctx, id, models.StatusError)
		})
		return &models.HunterError{Platform: account.Platform, EntityID: id, Err: err}
	}

	if err := s.accounts.Ingest(ctx, id, data); err != nil {
		return err
	}
	s.collector.ObserveIngest("account")

	if account.Status == models.StatusError {
		if err := s.accounts.SetStatus(ctx, id, models.StatusActive); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMedia refreshes one media through the hunter of its owning
// account's platform.
func (s *Service) UpdateMedia(ctx context.Context, id int64, params hunter.MediaParams) error {
	start := time.Now()
	err := s.updateMedia(ctx, id, params)
	s.collector.ObserveTask("media", err, time.Since(start))
	return err
}

func (s *Service) updateMedia(ctx context.Context, id int64, params hunter.MediaParams) error {
	media, err := s.medias.GetByID(ctx, id)
	if err != nil {
		return err
	}
	owner, err := s.accounts.GetByID(ctx, media.AccountID)
	if err != nil {
		return err
	}

	h := s.hunters.Get(owner.Platform)
	if h == nil {
		return fmt.Errorf("platform %q: %w", owner.Platform, models.ErrNotFound)
	}

	data, err := h.FetchMedia(ctx, media.Identifier, params)
	if err != nil {
		s.markFetchFailed(ctx, "media", id, media.Status, func() error {
			return s.medias.SetStatus(ctx, id, models.StatusError)
		})
		return &models.HunterError{Platform: owner.Platform, EntityID: id, Err: err}
	}

	if err := s.medias.Ingest(ctx, id, data); err != nil {
		return err
	}
	s.collector.ObserveIngest("media")

	if media.Status == models.StatusError {
		if err := s.medias.SetStatus(ctx, id, models.StatusActive); err != nil {
			return err
		}
	}
	return nil
}

// markFetchFailed flags an entity after a hunter failure. The flag is
// bookkeeping; a failure to write it must not mask the fetch error.
func (s *Service) markFetchFailed(ctx context.Context, kind string, id int64, current models.Status, set func() error) {
	if current == models.StatusError {
		return
	}
	if err := set(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("could not flag failed entity",
			slog.String("kind", kind),
			slog.Int64("id", id),
			slog.String("error", err.Error()))
	}
}

// UpdateAccounts refreshes a batch of accounts through the dispatcher.
// A positive concurrency overrides the pool default for this batch.
func (s *Service) UpdateAccounts(ctx context.Context, ids []int64, concurrency int, params hunter.AccountParams) Outcome {
	return s.dispatcher.Dispatch(ctx, ids, concurrency, func(ctx context.Context, id int64) error {
		return s.UpdateAccount(ctx, id, params)
	})
}

// UpdateMedias refreshes a batch of medias through the dispatcher.
func (s *Service) UpdateMedias(ctx context.Context, ids []int64, concurrency int, params hunter.MediaParams) Outcome {
	return s.dispatcher.Dispatch(ctx, ids, concurrency, func(ctx context.Context, id int64) error {
		return s.UpdateMedia(ctx, id, params)
	})
}

// UpdateAccountsByQuery refreshes every account matching the filter.
func (s *Service) UpdateAccountsByQuery(ctx context.Context, q models.AccountQuery, concurrency int, params hunter.AccountParams) (Outcome, error) {
	accounts, err := s.accounts.List(ctx, q)
	if err != nil {
		return Outcome{}, err
	}
	ids := make([]int64, len(accounts))
	for i, account := range accounts {
		ids[i] = account.ID
	}
	return s.UpdateAccounts(ctx, ids, concurrency, params), nil
}

// UpdateMediasByQuery refreshes every media matching the filter.
func (s *Service) UpdateMediasByQuery(ctx context.Context, q models.MediaQuery, concurrency int, params hunter.MediaParams) (Outcome, error) {
	medias, err := s.medias.List(ctx, q)
	if err != nil {
		return Outcome{}, err
	}
	ids := make([]int64, len(medias))
	for i, media := range medias {
		ids[i] = media.ID
	}
	return s.UpdateMedias(ctx, ids, concurrency, params), nil
}
