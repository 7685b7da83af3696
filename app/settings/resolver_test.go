package settings

import (
	"testing"
	"time"
)

func intPtr(v int) *int {
	return &v
}

func testResolver() *Resolver {
	return NewResolver(Defaults{
		RefreshInterval: 60 * time.Minute,
		MaxItems:        0,
		MaxItemAge:      0,
	})
}

func TestForUserDefaults(t *testing.T) {
	resolver := testResolver()

	resolved := resolver.ForUser(SubscriptionSettings{})

	if resolved.RefreshInterval != 60*time.Minute {
		t.Errorf("Expected refresh interval 60m, got %v", resolved.RefreshInterval)
	}

	if resolved.MaxItems != 0 {
		t.Errorf("Expected unlimited max items, got %d", resolved.MaxItems)
	}

	if resolved.MaxItemAge != 0 {
		t.Errorf("Expected unlimited max item age, got %v", resolved.MaxItemAge)
	}
}

func TestForUserPrecedence(t *testing.T) {
	resolver := testResolver()

	resolved := resolver.ForUser(SubscriptionSettings{
		Subscription: Overrides{RefreshIntervalMinutes: intPtr(30)},
		Category:     Overrides{RefreshIntervalMinutes: intPtr(120)},
		User:         Overrides{RefreshIntervalMinutes: intPtr(240)},
	})

	if resolved.RefreshInterval != 30*time.Minute {
		t.Errorf("Expected subscription override to win with 30m, got %v", resolved.RefreshInterval)
	}

	// Without a subscription override the category level wins.
	resolved = resolver.ForUser(SubscriptionSettings{
		Category: Overrides{RefreshIntervalMinutes: intPtr(120)},
		User:     Overrides{RefreshIntervalMinutes: intPtr(240)},
	})

	if resolved.RefreshInterval != 120*time.Minute {
		t.Errorf("Expected category override to win with 120m, got %v", resolved.RefreshInterval)
	}

	resolved = resolver.ForUser(SubscriptionSettings{
		User: Overrides{RefreshIntervalMinutes: intPtr(240)},
	})

	if resolved.RefreshInterval != 240*time.Minute {
		t.Errorf("Expected user override to win with 240m, got %v", resolved.RefreshInterval)
	}
}

func TestForUserFieldsCascadeIndependently(t *testing.T) {
	resolver := testResolver()

	resolved := resolver.ForUser(SubscriptionSettings{
		Subscription: Overrides{RefreshIntervalMinutes: intPtr(30)},
		Category:     Overrides{MaxItems: intPtr(100)},
		User:         Overrides{MaxItemAgeDays: intPtr(14)},
	})

	if resolved.RefreshInterval != 30*time.Minute {
		t.Errorf("Expected refresh interval 30m, got %v", resolved.RefreshInterval)
	}

	if resolved.MaxItems != 100 {
		t.Errorf("Expected max items 100, got %d", resolved.MaxItems)
	}

	if resolved.MaxItemAge != 14*24*time.Hour {
		t.Errorf("Expected max item age 14 days, got %v", resolved.MaxItemAge)
	}
}

func TestForUserInvalidValuesFallThrough(t *testing.T) {
	resolver := testResolver()

	// An out-of-bounds subscription value degrades to the category level.
	resolved := resolver.ForUser(SubscriptionSettings{
		Subscription: Overrides{RefreshIntervalMinutes: intPtr(5)},
		Category:     Overrides{RefreshIntervalMinutes: intPtr(120)},
	})

	if resolved.RefreshInterval != 120*time.Minute {
		t.Errorf("Expected invalid subscription interval to fall through to 120m, got %v", resolved.RefreshInterval)
	}

	resolved = resolver.ForUser(SubscriptionSettings{
		Subscription: Overrides{RefreshIntervalMinutes: intPtr(2000)},
	})

	if resolved.RefreshInterval != 60*time.Minute {
		t.Errorf("Expected invalid interval to fall through to default 60m, got %v", resolved.RefreshInterval)
	}

	resolved = resolver.ForUser(SubscriptionSettings{
		Subscription: Overrides{MaxItems: intPtr(-3), MaxItemAgeDays: intPtr(0)},
		Category:     Overrides{MaxItems: intPtr(50)},
	})

	if resolved.MaxItems != 50 {
		t.Errorf("Expected invalid max items to fall through to 50, got %d", resolved.MaxItems)
	}

	if resolved.MaxItemAge != 0 {
		t.Errorf("Expected invalid max item age to fall through to unlimited, got %v", resolved.MaxItemAge)
	}
}

func TestForSourceNoSubscribers(t *testing.T) {
	resolver := testResolver()

	resolved := resolver.ForSource(nil)

	if resolved.RefreshInterval != 60*time.Minute {
		t.Errorf("Expected default refresh interval 60m, got %v", resolved.RefreshInterval)
	}
}

func TestForSourceMostEagerInterval(t *testing.T) {
	resolver := testResolver()

	resolved := resolver.ForSource([]SubscriptionSettings{
		{Subscription: Overrides{RefreshIntervalMinutes: intPtr(120)}},
		{Subscription: Overrides{RefreshIntervalMinutes: intPtr(30)}},
		{Subscription: Overrides{RefreshIntervalMinutes: intPtr(240)}},
	})

	if resolved.RefreshInterval != 30*time.Minute {
		t.Errorf("Expected most eager subscriber to drive with 30m, got %v", resolved.RefreshInterval)
	}
}

func TestForSourceMostGenerousRetention(t *testing.T) {
	resolver := testResolver()

	resolved := resolver.ForSource([]SubscriptionSettings{
		{Subscription: Overrides{MaxItems: intPtr(50), MaxItemAgeDays: intPtr(7)}},
		{Subscription: Overrides{MaxItems: intPtr(200), MaxItemAgeDays: intPtr(30)}},
	})

	if resolved.MaxItems != 200 {
		t.Errorf("Expected most generous max items 200, got %d", resolved.MaxItems)
	}

	if resolved.MaxItemAge != 30*24*time.Hour {
		t.Errorf("Expected most generous max item age 30 days, got %v", resolved.MaxItemAge)
	}
}

func TestForSourceUnlimitedDominates(t *testing.T) {
	resolver := testResolver()

	// A subscriber without retention overrides resolves to the unlimited
	// defaults, which must win the fold over any finite limit.
	resolved := resolver.ForSource([]SubscriptionSettings{
		{Subscription: Overrides{MaxItems: intPtr(50), MaxItemAgeDays: intPtr(7)}},
		{},
	})

	if resolved.MaxItems != 0 {
		t.Errorf("Expected unlimited max items to dominate, got %d", resolved.MaxItems)
	}

	if resolved.MaxItemAge != 0 {
		t.Errorf("Expected unlimited max item age to dominate, got %v", resolved.MaxItemAge)
	}
}

func TestForSourceFiniteLimitsWithFiniteDefaults(t *testing.T) {
	resolver := NewResolver(Defaults{
		RefreshInterval: 60 * time.Minute,
		MaxItems:        100,
		MaxItemAge:      90 * 24 * time.Hour,
	})

	resolved := resolver.ForSource([]SubscriptionSettings{
		{Subscription: Overrides{MaxItems: intPtr(50)}},
		{Subscription: Overrides{MaxItems: intPtr(20)}},
	})

	if resolved.MaxItems != 50 {
		t.Errorf("Expected max items 50, got %d", resolved.MaxItems)
	}

	if resolved.MaxItemAge != 90*24*time.Hour {
		t.Errorf("Expected default max item age to hold, got %v", resolved.MaxItemAge)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(Overrides{}); err != nil {
		t.Errorf("Expected empty overrides to validate, got %v", err)
	}

	valid := Overrides{
		RefreshIntervalMinutes: intPtr(15),
		MaxItems:               intPtr(1),
		MaxItemAgeDays:         intPtr(1),
	}
	if err := Validate(valid); err != nil {
		t.Errorf("Expected lower-bound overrides to validate, got %v", err)
	}

	if err := Validate(Overrides{RefreshIntervalMinutes: intPtr(1440)}); err != nil {
		t.Errorf("Expected upper-bound interval to validate, got %v", err)
	}

	if err := Validate(Overrides{RefreshIntervalMinutes: intPtr(14)}); err == nil {
		t.Error("Expected error for interval below minimum")
	}

	if err := Validate(Overrides{RefreshIntervalMinutes: intPtr(1441)}); err == nil {
		t.Error("Expected error for interval above maximum")
	}

	if err := Validate(Overrides{MaxItems: intPtr(0)}); err == nil {
		t.Error("Expected error for zero max items")
	}

	if err := Validate(Overrides{MaxItemAgeDays: intPtr(-1)}); err == nil {
		t.Error("Expected error for negative max item age")
	}
}
