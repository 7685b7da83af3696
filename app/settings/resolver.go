package settings

import (
	"fmt"
	"time"
)

// Validation bounds enforced at the write boundary. Stored values outside
// these bounds are treated as absent during resolution, so a bad row degrades
// to the next cascade level instead of producing a pathological schedule.
const (
	MinRefreshIntervalMinutes = 15
	MaxRefreshIntervalMinutes = 1440
)

// Overrides is one cascade level's partial settings. A nil field means the
// level has no opinion and resolution falls through to the next level.
type Overrides struct {
	RefreshIntervalMinutes *int
	MaxItems               *int
	MaxItemAgeDays         *int
}

// SubscriptionSettings is the full override chain for one subscription,
// ordered most-specific first.
type SubscriptionSettings struct {
	Subscription Overrides
	Category     Overrides
	User         Overrides
}

// Resolved is a fully-determined settings record. MaxItems and MaxItemAge
// zero values mean unlimited.
type Resolved struct {
	RefreshInterval time.Duration
	MaxItems        int
	MaxItemAge      time.Duration
}

// Defaults is the system-level bottom of the cascade.
type Defaults struct {
	RefreshInterval time.Duration
	MaxItems        int
	MaxItemAge      time.Duration
}

type Resolver struct {
	defaults Defaults
}

func NewResolver(defaults Defaults) *Resolver {
	return &Resolver{defaults: defaults}
}

// ForUser resolves effective settings for a single subscription. Each field
// cascades independently: subscription, then category, then user preferences,
// then system defaults.
func (r *Resolver) ForUser(s SubscriptionSettings) Resolved {
	resolved := Resolved{
		RefreshInterval: r.defaults.RefreshInterval,
		MaxItems:        r.defaults.MaxItems,
		MaxItemAge:      r.defaults.MaxItemAge,
	}

	for _, level := range []Overrides{s.User, s.Category, s.Subscription} {
		if validInterval(level.RefreshIntervalMinutes) {
			resolved.RefreshInterval = time.Duration(*level.RefreshIntervalMinutes) * time.Minute
		}
		if validCount(level.MaxItems) {
			resolved.MaxItems = *level.MaxItems
		}
		if validCount(level.MaxItemAgeDays) {
			resolved.MaxItemAge = time.Duration(*level.MaxItemAgeDays) * 24 * time.Hour
		}
	}

	return resolved
}

// ForSource folds the per-subscriber resolutions into one source-level
// decision: the most eager subscriber drives the refresh interval, the most
// generous subscriber drives retention. No subscribers means system defaults.
func (r *Resolver) ForSource(subs []SubscriptionSettings) Resolved {
	if len(subs) == 0 {
		return r.ForUser(SubscriptionSettings{})
	}

	folded := r.ForUser(subs[0])
	for _, s := range subs[1:] {
		resolved := r.ForUser(s)
		if resolved.RefreshInterval < folded.RefreshInterval {
			folded.RefreshInterval = resolved.RefreshInterval
		}
		folded.MaxItems = mostGenerous(folded.MaxItems, resolved.MaxItems)
		folded.MaxItemAge = time.Duration(mostGenerous(int(folded.MaxItemAge), int(resolved.MaxItemAge)))
	}

	return folded
}

// Validate rejects override values outside the allowed bounds. Nil fields are
// always acceptable.
func Validate(o Overrides) error {
	if o.RefreshIntervalMinutes != nil {
		v := *o.RefreshIntervalMinutes
		if v < MinRefreshIntervalMinutes || v > MaxRefreshIntervalMinutes {
			return fmt.Errorf("refresh interval must be between %d and %d minutes, got %d",
				MinRefreshIntervalMinutes, MaxRefreshIntervalMinutes, v)
		}
	}
	if o.MaxItems != nil && *o.MaxItems < 1 {
		return fmt.Errorf("max items must be at least 1, got %d", *o.MaxItems)
	}
	if o.MaxItemAgeDays != nil && *o.MaxItemAgeDays < 1 {
		return fmt.Errorf("max item age must be at least 1 day, got %d", *o.MaxItemAgeDays)
	}
	return nil
}

// zero means unlimited, so it dominates any finite limit
func mostGenerous(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > b {
		return a
	}
	return b
}

func validInterval(v *int) bool {
	return v != nil && *v >= MinRefreshIntervalMinutes && *v <= MaxRefreshIntervalMinutes
}

func validCount(v *int) bool {
	return v != nil && *v >= 1
}
