package rulecache

import (
	"context"
	"testing"
	"time"

	"admissions_backend/internal/leads/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	rules []domain.Rule
	calls int
}

func (f *fakeSource) ActiveRulesForSchool(_ context.Context, _ uuid.UUID) ([]domain.Rule, error) {
	f.calls++
	return f.rules, nil
}

func testRules(schoolID uuid.UUID) []domain.Rule {
	threshold := 50
	to := domain.StatusInterested
	return []domain.Rule{
		{
			ID:             uuid.New(),
			SchoolID:       &schoolID,
			RuleName:       "hot leads",
			ScoreThreshold: &threshold,
			ToStatus:       &to,
			IsActive:       true,
			CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func newTestCache(t *testing.T, source Source) (*Cache, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, source, time.Minute, nil), client
}

func TestActiveRulesForSchoolReadsThroughOnce(t *testing.T) {
	schoolID := uuid.New()
	source := &fakeSource{rules: testRules(schoolID)}
	cache, _ := newTestCache(t, source)
	ctx := context.Background()

	first, err := cache.ActiveRulesForSchool(ctx, schoolID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 || first[0].RuleName != "hot leads" {
		t.Fatalf("unexpected snapshot: %+v", first)
	}

	second, err := cache.ActiveRulesForSchool(ctx, schoolID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 1 || second[0].ID != first[0].ID {
		t.Fatal("expected the cached snapshot to round-trip")
	}
	if source.calls != 1 {
		t.Fatalf("expected one source load, got %d", source.calls)
	}
}

func TestInvalidateSingleTenantForcesReload(t *testing.T) {
	schoolID := uuid.New()
	source := &fakeSource{rules: testRules(schoolID)}
	cache, _ := newTestCache(t, source)
	ctx := context.Background()

	if _, err := cache.ActiveRulesForSchool(ctx, schoolID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cache.Invalidate(ctx, &schoolID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.ActiveRulesForSchool(ctx, schoolID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if source.calls != 2 {
		t.Fatalf("expected invalidation to force a reload, got %d source loads", source.calls)
	}
}

func TestInvalidateGlobalDropsEveryTenant(t *testing.T) {
	schoolA := uuid.New()
	schoolB := uuid.New()
	source := &fakeSource{rules: testRules(schoolA)}
	cache, _ := newTestCache(t, source)
	ctx := context.Background()

	if _, err := cache.ActiveRulesForSchool(ctx, schoolA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.ActiveRulesForSchool(ctx, schoolB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := cache.Invalidate(ctx, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := cache.ActiveRulesForSchool(ctx, schoolA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.ActiveRulesForSchool(ctx, schoolB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if source.calls != 4 {
		t.Fatalf("expected both tenants to reload after a global invalidation, got %d source loads", source.calls)
	}
}

func TestCorruptCacheEntryFallsThroughToSource(t *testing.T) {
	schoolID := uuid.New()
	source := &fakeSource{rules: testRules(schoolID)}
	cache, client := newTestCache(t, source)
	ctx := context.Background()

	if err := client.Set(ctx, keyPrefix+schoolID.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rules, err := cache.ActiveRulesForSchool(ctx, schoolID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected a fresh snapshot despite the corrupt entry, got %d rules", len(rules))
	}
	if source.calls != 1 {
		t.Fatalf("expected exactly one source load, got %d", source.calls)
	}
}

func TestNilClientDegradesToDirectReads(t *testing.T) {
	schoolID := uuid.New()
	source := &fakeSource{rules: testRules(schoolID)}
	cache := New(nil, source, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rules, err := cache.ActiveRulesForSchool(ctx, schoolID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rules) != 1 {
			t.Fatalf("expected the snapshot on read %d", i)
		}
	}
	if source.calls != 3 {
		t.Fatalf("expected every read to hit the source, got %d", source.calls)
	}

	if err := cache.Invalidate(ctx, &schoolID); err != nil {
		t.Fatalf("expected invalidation without a client to be a no-op, got %v", err)
	}
}
