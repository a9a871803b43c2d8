package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/axju/metrico/internal/hunt"
	"github.com/axju/metrico/internal/hunter"
	"github.com/axju/metrico/internal/metrics"
	"github.com/axju/metrico/internal/models"
)

// memoryTriggers implements models.TriggerRepository with a mutex
// standing in for the store's atomic claim.
type memoryTriggers struct {
	mu       sync.Mutex
	nextID   int64
	triggers map[int64]*models.Trigger
	byName   map[string]int64
	accounts map[int64][]int64
	medias   map[int64][]int64
	runs     []*models.TriggerRun
}

func newMemoryTriggers() *memoryTriggers {
	return &memoryTriggers{
		nextID:   1,
		triggers: make(map[int64]*models.Trigger),
		byName:   make(map[string]int64),
		accounts: make(map[int64][]int64),
		medias:   make(map[int64][]int64),
	}
}

func (m *memoryTriggers) Create(ctx context.Context, name string) (*models.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byName[name]; ok {
		return m.triggers[id], nil
	}
	t := &models.Trigger{ID: m.nextID, Name: name, Status: models.TriggerIdle, CreatedAt: time.Now()}
	m.nextID++
	m.triggers[t.ID] = t
	m.byName[name] = t.ID
	return t, nil
}

func (m *memoryTriggers) GetByName(ctx context.Context, name string) (*models.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[name]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *m.triggers[id]
	return &copied, nil
}

func (m *memoryTriggers) List(ctx context.Context, limit int) ([]*models.Trigger, error) {
	return nil, nil
}

func (m *memoryTriggers) BindAccount(ctx context.Context, triggerID, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[triggerID] = append(m.accounts[triggerID], accountID)
	return nil
}

func (m *memoryTriggers) BindMedia(ctx context.Context, triggerID, mediaID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.medias[triggerID] = append(m.medias[triggerID], mediaID)
	return nil
}

func (m *memoryTriggers) AccountIDs(ctx context.Context, triggerID int64, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return truncate(m.accounts[triggerID], limit), nil
}

func (m *memoryTriggers) MediaIDs(ctx context.Context, triggerID int64, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return truncate(m.medias[triggerID], limit), nil
}

func truncate(ids []int64, limit int) []int64 {
	if limit <= 0 {
		return nil
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return append([]int64(nil), ids...)
}

func (m *memoryTriggers) MarkRunning(ctx context.Context, triggerID int64, batchID string, started time.Time) (*models.TriggerRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.triggers[triggerID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if t.Status == models.TriggerRunning {
		return nil, models.ErrAlreadyRunning
	}
	t.Status = models.TriggerRunning
	run := &models.TriggerRun{ID: int64(len(m.runs) + 1), TriggerID: triggerID, BatchID: batchID, Started: started}
	m.runs = append(m.runs, run)
	return run, nil
}

func (m *memoryTriggers) CloseRun(ctx context.Context, runID int64, finished time.Time, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.ID == runID {
			run.Finished = &finished
			run.Success = success
			status := models.TriggerSuccess
			if !success {
				status = models.TriggerFailed
			}
			m.triggers[run.TriggerID].Status = status
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memoryTriggers) Release(ctx context.Context, triggerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.triggers[triggerID]
	if !ok {
		return models.ErrNotFound
	}
	if t.Status == models.TriggerSuccess || t.Status == models.TriggerFailed {
		t.Status = models.TriggerIdle
	}
	return nil
}

func (m *memoryTriggers) SetStatus(ctx context.Context, triggerID int64, status models.TriggerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.triggers[triggerID]
	if !ok {
		return models.ErrNotFound
	}
	t.Status = status
	return nil
}

func (m *memoryTriggers) Runs(ctx context.Context, triggerID int64, limit int) ([]models.TriggerRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runs []models.TriggerRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].TriggerID == triggerID {
			runs = append(runs, *m.runs[i])
		}
	}
	return runs, nil
}

func (m *memoryTriggers) RecoverStuck(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

// recordingHunter counts refreshes and can block or fail on demand.
type recordingHunter struct {
	mu       sync.Mutex
	fetched  map[string]int
	failing  map[string]bool
	blocking chan struct{}
}

func newRecordingHunter() *recordingHunter {
	return &recordingHunter{fetched: make(map[string]int), failing: make(map[string]bool)}
}

func (h *recordingHunter) Platform() string { return "fake" }

func (h *recordingHunter) Analyze(ctx context.Context, query string, full bool) ([]models.AccountData, error) {
	return nil, nil
}

func (h *recordingHunter) FetchAccount(ctx context.Context, identifier string, params hunter.AccountParams) (models.AccountData, error) {
	if h.blocking != nil {
		<-h.blocking
	}
	h.mu.Lock()
	h.fetched[identifier]++
	failing := h.failing[identifier]
	h.mu.Unlock()
	if failing {
		return models.AccountData{}, fmt.Errorf("refresh %s broke", identifier)
	}
	return models.AccountData{Identifier: identifier, Stats: &models.AccountStatsData{Followers: 1}}, nil
}

func (h *recordingHunter) FetchMedia(ctx context.Context, identifier string, params hunter.MediaParams) (models.MediaData, error) {
	if h.blocking != nil {
		<-h.blocking
	}
	h.mu.Lock()
	h.fetched[identifier]++
	failing := h.failing[identifier]
	h.mu.Unlock()
	if failing {
		return models.MediaData{}, fmt.Errorf("refresh %s broke", identifier)
	}
	return models.MediaData{Identifier: identifier, Stats: &models.MediaStatsData{Likes: 1}}, nil
}

func (h *recordingHunter) count(identifier string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fetched[identifier]
}

// memoryAccounts and memoryMedias are minimal stores for wiring the
// hunt service under the scheduler.
type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[int64]*models.Account
}

func (m *memoryAccounts) Resolve(ctx context.Context, platform string, data models.AccountData) (*models.Account, error) {
	return nil, errors.New("not used")
}

func (m *memoryAccounts) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *memoryAccounts) List(ctx context.Context, q models.AccountQuery) ([]*models.Account, error) {
	return nil, nil
}

func (m *memoryAccounts) Ingest(ctx context.Context, id int64, data models.AccountData) error {
	return nil
}

func (m *memoryAccounts) SetStatus(ctx context.Context, id int64, status models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id]; ok {
		account.Status = status
	}
	return nil
}

func (m *memoryAccounts) StatsHistory(ctx context.Context, id int64, limit int) ([]models.AccountStats, error) {
	return nil, nil
}

func (m *memoryAccounts) InfoHistory(ctx context.Context, id int64, limit int) ([]models.AccountInfo, error) {
	return nil, nil
}

func (m *memoryAccounts) Subscriptions(ctx context.Context, id int64, limit int) ([]models.Subscription, error) {
	return nil, nil
}

type memoryMedias struct {
	mu     sync.Mutex
	medias map[int64]*models.Media
}

func (m *memoryMedias) GetByID(ctx context.Context, id int64) (*models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	media, ok := m.medias[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *media
	return &copied, nil
}

func (m *memoryMedias) List(ctx context.Context, q models.MediaQuery) ([]*models.Media, error) {
	return nil, nil
}

func (m *memoryMedias) Ingest(ctx context.Context, id int64, data models.MediaData) error {
	return nil
}

func (m *memoryMedias) SetStatus(ctx context.Context, id int64, status models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if media, ok := m.medias[id]; ok {
		media.Status = status
	}
	return nil
}

func (m *memoryMedias) StatsHistory(ctx context.Context, id int64, limit int) ([]models.MediaStats, error) {
	return nil, nil
}

func (m *memoryMedias) InfoHistory(ctx context.Context, id int64, limit int) ([]models.MediaInfo, error) {
	return nil, nil
}

func (m *memoryMedias) Comments(ctx context.Context, id int64, limit int) ([]models.MediaComment, error) {
	return nil, nil
}

type fixture struct {
	triggers  *memoryTriggers
	accounts  *memoryAccounts
	medias    *memoryMedias
	hunter    *recordingHunter
	scheduler *Scheduler
}

func newFixture(t *testing.T, accountCount, mediaCount int) *fixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	f := &fixture{
		triggers: newMemoryTriggers(),
		accounts: &memoryAccounts{accounts: make(map[int64]*models.Account)},
		medias:   &memoryMedias{medias: make(map[int64]*models.Media)},
		hunter:   newRecordingHunter(),
	}

	for i := 1; i <= accountCount; i++ {
		id := int64(i)
		f.accounts.accounts[id] = &models.Account{
			ID: id, Platform: "fake", Identifier: fmt.Sprintf("account-%d", id), Status: models.StatusActive,
		}
	}
	for i := 1; i <= mediaCount; i++ {
		id := int64(i)
		f.medias.medias[id] = &models.Media{
			ID: id, AccountID: 1, Identifier: fmt.Sprintf("media-%d", id), Status: models.StatusActive,
		}
	}
	if mediaCount > 0 && accountCount == 0 {
		f.accounts.accounts[1] = &models.Account{ID: 1, Platform: "fake", Identifier: "account-1", Status: models.StatusActive}
	}

	registry := hunter.Registry{}
	registry.Register(f.hunter)

	dispatcher, err := hunt.NewDispatcher(4, 5, logger)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	collector, err := metrics.New()
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	service := hunt.NewService(f.accounts, f.medias, registry, dispatcher, collector, logger)
	f.scheduler = NewScheduler(f.triggers, service, collector, logger, 100)
	return f
}

func (f *fixture) createBound(t *testing.T, name string, accountIDs, mediaIDs []int64) *models.Trigger {
	t.Helper()
	trigger, err := f.triggers.Create(context.Background(), name)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	for _, id := range accountIDs {
		if err := f.triggers.BindAccount(context.Background(), trigger.ID, id); err != nil {
			t.Fatalf("bind account %d: %v", id, err)
		}
	}
	for _, id := range mediaIDs {
		if err := f.triggers.BindMedia(context.Background(), trigger.ID, id); err != nil {
			t.Fatalf("bind media %d: %v", id, err)
		}
	}
	return trigger
}

func TestRunUnknownTrigger(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.scheduler.Run(context.Background(), "nope", 0, 0)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRunRejectsNegativeConcurrency(t *testing.T) {
	f := newFixture(t, 0, 0)

	_, err := f.scheduler.Run(context.Background(), "daily", -1, 0)
	if !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunRefreshesBoundEntities(t *testing.T) {
	f := newFixture(t, 2, 2)
	f.createBound(t, "daily", []int64{1, 2}, []int64{1, 2})

	result, err := f.scheduler.Run(context.Background(), "daily", 0, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Success {
		t.Error("expected successful run")
	}
	if result.Accounts.Total != 2 || result.Medias.Total != 2 {
		t.Errorf("got %d accounts, %d medias, want 2/2", result.Accounts.Total, result.Medias.Total)
	}
	for _, identifier := range []string{"account-1", "account-2", "media-1", "media-2"} {
		if f.hunter.count(identifier) != 1 {
			t.Errorf("expected 1 refresh of %s, got %d", identifier, f.hunter.count(identifier))
		}
	}

	trigger, err := f.triggers.GetByName(context.Background(), "daily")
	if err != nil {
		t.Fatalf("get trigger: %v", err)
	}
	if trigger.Status != models.TriggerIdle {
		t.Errorf("expected trigger back to idle, got %q", trigger.Status)
	}

	runs, err := f.triggers.Runs(context.Background(), trigger.ID, 10)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run record, got %d", len(runs))
	}
	if runs[0].Finished == nil || !runs[0].Success {
		t.Errorf("expected a finished successful run record, got %+v", runs[0])
	}
	if runs[0].BatchID != result.BatchID {
		t.Errorf("run record batch %q does not match result batch %q", runs[0].BatchID, result.BatchID)
	}
}

func TestRunLimitSpansBothKinds(t *testing.T) {
	f := newFixture(t, 3, 3)
	f.createBound(t, "capped", []int64{1, 2, 3}, []int64{1, 2, 3})

	result, err := f.scheduler.Run(context.Background(), "capped", 0, 4)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Accounts.Total != 3 {
		t.Errorf("expected all 3 accounts refreshed, got %d", result.Accounts.Total)
	}
	if result.Medias.Total != 1 {
		t.Errorf("expected 1 media within the combined limit, got %d", result.Medias.Total)
	}
	if f.hunter.count("media-1") != 1 || f.hunter.count("media-2") != 0 {
		t.Error("limit did not truncate medias in bind order")
	}
}

func TestRunRecordsFailure(t *testing.T) {
	f := newFixture(t, 2, 0)
	trigger := f.createBound(t, "flaky", []int64{1, 2}, nil)
	f.hunter.failing["account-2"] = true

	result, err := f.scheduler.Run(context.Background(), "flaky", 0, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Success {
		t.Error("expected failed run")
	}
	if result.Accounts.Succeeded != 1 || result.Accounts.Failed != 1 {
		t.Errorf("got %d/%d, want 1/1", result.Accounts.Succeeded, result.Accounts.Failed)
	}

	runs, _ := f.triggers.Runs(context.Background(), trigger.ID, 10)
	if len(runs) != 1 || runs[0].Success {
		t.Errorf("expected a recorded failed run, got %+v", runs)
	}

	got, _ := f.triggers.GetByName(context.Background(), "flaky")
	if got.Status != models.TriggerIdle {
		t.Errorf("expected trigger back to idle after failure, got %q", got.Status)
	}
}

func TestRunMutualExclusion(t *testing.T) {
	f := newFixture(t, 1, 0)
	f.createBound(t, "guarded", []int64{1}, nil)
	f.hunter.blocking = make(chan struct{})

	firstStarted := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		close(firstStarted)
		_, err := f.scheduler.Run(context.Background(), "guarded", 0, 0)
		firstDone <- err
	}()

	<-firstStarted
	waitForStatus(t, f.triggers, "guarded", models.TriggerRunning)

	_, err := f.scheduler.Run(context.Background(), "guarded", 0, 0)
	if !errors.Is(err, models.ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning for concurrent run, got %v", err)
	}

	close(f.hunter.blocking)
	if err := <-firstDone; err != nil {
		t.Fatalf("first run: %v", err)
	}

	if _, err := f.scheduler.Run(context.Background(), "guarded", 0, 0); err != nil {
		t.Errorf("run after guard release: %v", err)
	}
}

func waitForStatus(t *testing.T, triggers *memoryTriggers, name string, want models.TriggerStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		trigger, err := triggers.GetByName(context.Background(), name)
		if err == nil && trigger.Status == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("trigger %q never reached status %q", name, want)
}
