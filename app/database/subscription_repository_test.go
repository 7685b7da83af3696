package database

import (
	"context"
	"testing"

	"github.com/feedloop/feedloop/app/settings"
)

func intPtr(v int) *int {
	return &v
}

func checkOverride(t *testing.T, name string, got *int, want int) {
	t.Helper()

	if got == nil {
		t.Errorf("Expected %s %d, got nil", name, want)
		return
	}
	if *got != want {
		t.Errorf("Expected %s %d, got %d", name, want, *got)
	}
}

func TestSubscriptionRepositoryCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	source := createTestSource(t, db, "https://example.com/sub.xml")

	sub := &Subscription{
		UserID:      "user-1",
		SourceID:    source.ID,
		DisplayName: "My Feed",
		MaxItems:    intPtr(100),
	}
	if err := repo.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if sub.ID == "" {
		t.Fatal("Expected a generated subscription ID")
	}

	got, err := repo.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got == nil {
		t.Fatal("Expected a subscription, got nil")
	}
	if got.UserID != "user-1" {
		t.Errorf("Expected user user-1, got %q", got.UserID)
	}
	if got.SourceID != source.ID {
		t.Errorf("Expected source %s, got %s", source.ID, got.SourceID)
	}
	if got.DisplayName != "My Feed" {
		t.Errorf("Expected display name My Feed, got %q", got.DisplayName)
	}
	if got.CategoryID != nil {
		t.Errorf("Expected no category, got %v", *got.CategoryID)
	}
	checkOverride(t, "max items", got.MaxItems, 100)
	if got.RefreshIntervalMinutes != nil {
		t.Errorf("Expected no interval override, got %d", *got.RefreshIntervalMinutes)
	}

	got, err = repo.GetSubscription(ctx, "missing")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for a missing subscription, got %+v", got)
	}
}

func TestSubscriptionRepositoryListByUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	first := createTestSource(t, db, "https://example.com/list-a.xml")
	second := createTestSource(t, db, "https://example.com/list-b.xml")

	if err := repo.CreateSubscription(ctx, &Subscription{UserID: "user-1", SourceID: first.ID}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := repo.CreateSubscription(ctx, &Subscription{UserID: "user-1", SourceID: second.ID}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := repo.CreateSubscription(ctx, &Subscription{UserID: "user-2", SourceID: first.ID}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	subs, err := repo.ListSubscriptionsByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("Expected 2 subscriptions for user-1, got %d", len(subs))
	}
	if subs[0].SourceID != first.ID {
		t.Errorf("Expected creation order, got %s first", subs[0].SourceID)
	}

	count, err := repo.GetSubscriptionCount(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 subscriptions in total, got %d", count)
	}
}

func TestSubscriptionRepositoryUniquePerUserAndSource(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	source := createTestSource(t, db, "https://example.com/unique.xml")

	if err := repo.CreateSubscription(ctx, &Subscription{UserID: "user-1", SourceID: source.ID}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	err := repo.CreateSubscription(ctx, &Subscription{UserID: "user-1", SourceID: source.ID})
	if err == nil {
		t.Error("Expected an error for a duplicate subscription")
	}
}

func TestSubscriptionRepositoryUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	source := createTestSource(t, db, "https://example.com/sub-update.xml")

	category := &Category{UserID: "user-1", Name: "Tech"}
	if err := NewCategoryRepository(db).CreateCategory(ctx, category); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	sub := &Subscription{UserID: "user-1", SourceID: source.ID, DisplayName: "Before"}
	if err := repo.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	sub.DisplayName = "After"
	sub.CategoryID = &category.ID
	sub.RefreshIntervalMinutes = intPtr(30)
	sub.MaxItemAgeDays = intPtr(14)
	if err := repo.UpdateSubscription(ctx, sub); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got, err := repo.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.DisplayName != "After" {
		t.Errorf("Expected display name After, got %q", got.DisplayName)
	}
	if got.CategoryID == nil || *got.CategoryID != category.ID {
		t.Errorf("Expected category %s, got %v", category.ID, got.CategoryID)
	}
	checkOverride(t, "interval", got.RefreshIntervalMinutes, 30)
	checkOverride(t, "max item age", got.MaxItemAgeDays, 14)

	// Clearing an override persists as NULL, not zero.
	sub.RefreshIntervalMinutes = nil
	if err := repo.UpdateSubscription(ctx, sub); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got, err = repo.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.RefreshIntervalMinutes != nil {
		t.Errorf("Expected the interval override cleared, got %d", *got.RefreshIntervalMinutes)
	}
}

func TestSubscriptionRepositoryDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	source := createTestSource(t, db, "https://example.com/sub-delete.xml")

	sub := &Subscription{UserID: "user-1", SourceID: source.ID}
	if err := repo.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := repo.DeleteSubscription(ctx, sub.ID); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got, err := repo.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != nil {
		t.Errorf("Expected the subscription gone, got %+v", got)
	}

	if err := repo.DeleteSubscription(ctx, "missing"); err != nil {
		t.Errorf("Expected no error deleting a missing subscription, got: %v", err)
	}
}

func TestSubscriptionSettingsChain(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	source := createTestSource(t, db, "https://example.com/chain.xml")

	category := &Category{
		UserID:                 "user-1",
		Name:                   "Tech",
		RefreshIntervalMinutes: intPtr(120),
		MaxItems:               intPtr(50),
	}
	if err := NewCategoryRepository(db).CreateCategory(ctx, category); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	prefs := settings.Overrides{RefreshIntervalMinutes: intPtr(240)}
	if err := NewPreferenceRepository(db).UpsertPreferences(ctx, "user-1", prefs); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	sub := &Subscription{
		UserID:                 "user-1",
		SourceID:               source.ID,
		CategoryID:             &category.ID,
		RefreshIntervalMinutes: intPtr(30),
	}
	if err := repo.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	chain, err := repo.GetSettingsForSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if chain == nil {
		t.Fatal("Expected a settings chain, got nil")
	}

	checkOverride(t, "subscription interval", chain.Subscription.RefreshIntervalMinutes, 30)
	if chain.Subscription.MaxItems != nil {
		t.Errorf("Expected no subscription max items, got %d", *chain.Subscription.MaxItems)
	}
	checkOverride(t, "category interval", chain.Category.RefreshIntervalMinutes, 120)
	checkOverride(t, "category max items", chain.Category.MaxItems, 50)
	if chain.Category.MaxItemAgeDays != nil {
		t.Errorf("Expected no category max item age, got %d", *chain.Category.MaxItemAgeDays)
	}
	checkOverride(t, "user interval", chain.User.RefreshIntervalMinutes, 240)
	if chain.User.MaxItems != nil {
		t.Errorf("Expected no user max items, got %d", *chain.User.MaxItems)
	}
}

func TestSubscriptionSettingsChainWithoutCategory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	source := createTestSource(t, db, "https://example.com/chain-bare.xml")

	sub := &Subscription{UserID: "user-1", SourceID: source.ID}
	if err := repo.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	chain, err := repo.GetSettingsForSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if chain == nil {
		t.Fatal("Expected a settings chain, got nil")
	}

	empty := settings.Overrides{}
	if chain.Subscription != empty || chain.Category != empty || chain.User != empty {
		t.Errorf("Expected empty overrides at every level, got %+v", chain)
	}
}

func TestSubscriptionSettingsForSource(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	source := createTestSource(t, db, "https://example.com/chain-source.xml")

	first := &Subscription{UserID: "user-1", SourceID: source.ID, RefreshIntervalMinutes: intPtr(30)}
	if err := repo.CreateSubscription(ctx, first); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	second := &Subscription{UserID: "user-2", SourceID: source.ID, MaxItems: intPtr(25)}
	if err := repo.CreateSubscription(ctx, second); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	chains, err := repo.GetSettingsForSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(chains) != 2 {
		t.Fatalf("Expected 2 settings chains, got %d", len(chains))
	}

	other := createTestSource(t, db, "https://example.com/chain-empty.xml")
	chains, err = repo.GetSettingsForSource(ctx, other.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(chains) != 0 {
		t.Errorf("Expected no chains for an unsubscribed source, got %d", len(chains))
	}
}

func TestSubscriptionSettingsForSubscriptionMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)

	chain, err := repo.GetSettingsForSubscription(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if chain != nil {
		t.Errorf("Expected nil for a missing subscription, got %+v", chain)
	}
}
