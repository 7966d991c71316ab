// Package caching implements the cache key scheme, the read-through manager
// and the invalidation policy layered on the key-value cache. Keys are a
// pure, deterministic function of entity kind, owner and canonicalized
// filters, so invalidation code can reconstruct exactly the key a prior read
// produced without tracking reverse indexes.
package caching

import (
	"fmt"
	"time"
)

// Entry TTLs by entity kind.
const (
	DeviceUsageTTL = 300 * time.Second
	DeviceListTTL  = 1200 * time.Second
	UserProfileTTL = 1800 * time.Second
)

// FilterAll is the canonical value for an unset filter. "all" supplied
// explicitly and a filter left unset map to the same key, so default-filter
// invalidation covers both.
const FilterAll = "all"

// Range windows for device usage aggregation.
const (
	WindowHour = time.Hour
	WindowDay  = 24 * time.Hour
	WindowWeek = 7 * 24 * time.Hour
)

// RangeWindow maps a range string to its aggregation window. Unrecognized
// ranges fall back to the 24h window; the raw string still participates in
// the cache key, so distinct unrecognized ranges get distinct entries.
func RangeWindow(rng string) time.Duration {
	switch rng {
	case "1h":
		return WindowHour
	case "24h":
		return WindowDay
	case "7d":
		return WindowWeek
	default:
		return WindowDay
	}
}

// DeviceUsageKey returns the cache key for a device's usage aggregate. The
// range string is used verbatim.
func DeviceUsageKey(deviceID, rng string) string {
	return fmt.Sprintf("analytics:device:%s:range:%s", deviceID, rng)
}

// DeviceListKey returns the cache key for an owner's device listing with the
// given filters. Unset filters canonicalize to "all".
func DeviceListKey(ownerID, deviceType, status string) string {
	return fmt.Sprintf("devices:%s:type=%s:status=%s",
		ownerID, canonicalFilter(deviceType), canonicalFilter(status))
}

// UserProfileKey returns the cache key for a user's profile.
func UserProfileKey(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

func canonicalFilter(value string) string {
	if value == "" {
		return FilterAll
	}
	return value
}
