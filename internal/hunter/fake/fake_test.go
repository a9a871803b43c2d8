package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/axju/metrico/internal/hunter"
)

func TestAnalyzeIsDeterministic(t *testing.T) {
	h := New(DefaultConfig())

	first, err := h.Analyze(context.Background(), "cats", false)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	second, err := h.Analyze(context.Background(), "cats", false)
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("candidate count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Identifier != second[i].Identifier {
			t.Errorf("candidate %d changed: %q vs %q", i, first[i].Identifier, second[i].Identifier)
		}
		if first[i].Stats.Followers != second[i].Stats.Followers {
			t.Errorf("candidate %d baseline drifted without a refresh", i)
		}
	}
}

func TestFetchAccountDriftsPerRefresh(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StatsStep = 10
	h := New(cfg)

	first, err := h.FetchAccount(context.Background(), "alice", hunter.DefaultAccountParams())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	second, err := h.FetchAccount(context.Background(), "alice", hunter.DefaultAccountParams())
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if got := second.Stats.Followers - first.Stats.Followers; got != 10 {
		t.Errorf("expected followers to drift by 10 per refresh, got %d", got)
	}
	if len(first.Medias) != cfg.Medias {
		t.Errorf("expected %d medias with default params, got %d", cfg.Medias, len(first.Medias))
	}
}

func TestFetchAccountHonorsBounds(t *testing.T) {
	h := New(DefaultConfig())

	data, err := h.FetchAccount(context.Background(), "alice", hunter.AccountParams{
		MediaCount:        1,
		CommentCount:      0,
		SubscriptionCount: 0,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(data.Medias) != 1 {
		t.Errorf("expected 1 media, got %d", len(data.Medias))
	}
	if len(data.Medias[0].Comments) != 0 {
		t.Errorf("expected no comments, got %d", len(data.Medias[0].Comments))
	}
	if len(data.Subscriptions) != 0 {
		t.Errorf("expected no subscriptions, got %d", len(data.Subscriptions))
	}
}

func TestFailWith(t *testing.T) {
	h := New(DefaultConfig())
	boom := errors.New("boom")

	h.FailWith("alice", boom)
	if _, err := h.FetchAccount(context.Background(), "alice", hunter.DefaultAccountParams()); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
	if _, err := h.FetchAccount(context.Background(), "bob", hunter.DefaultAccountParams()); err != nil {
		t.Errorf("other identifiers must be unaffected: %v", err)
	}

	h.FailWith("alice", nil)
	if _, err := h.FetchAccount(context.Background(), "alice", hunter.DefaultAccountParams()); err != nil {
		t.Errorf("expected recovery after clearing, got %v", err)
	}
}
