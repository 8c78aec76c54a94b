// Package featureflags provides runtime kill switches for the maps proxy.
package featureflags

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Well-known feature flag keys.
const (
	// FlagDisablePlaceSearch turns place search off.
	FlagDisablePlaceSearch = "disable_place_search"

	// FlagDisableNavigation turns directions off.
	FlagDisableNavigation = "disable_navigation"

	// FlagDisableGeocoding turns address geocoding off.
	FlagDisableGeocoding = "disable_geocoding"

	// FlagNavigationWalkingOnly forces walking directions regardless of the requested mode.
	FlagNavigationWalkingOnly = "navigation_walking_only"
)

var (
	// ErrFlagNotFound is returned when a feature flag is not stored.
	ErrFlagNotFound = errors.New("feature flag not found")

	// ErrInvalidFlag is returned when an update names an unknown key or a non-boolean value.
	ErrInvalidFlag = errors.New("invalid feature flag")
)

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string
	Value     any
	UpdatedAt time.Time
}

// Update is a single requested flag change.
type Update struct {
	Key   string
	Value any
}

// BoolValue returns the flag value as a boolean.
// Returns defaultValue if the flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON numbers decode as float64
		return v != 0
	default:
		return defaultValue
	}
}

// DefaultFlags returns every known flag at its default (all off).
// Defaults carry a zero UpdatedAt.
func DefaultFlags() map[string]*Flag {
	flags := make(map[string]*Flag, len(knownKeys))
	for _, key := range knownKeys {
		flags[key] = &Flag{Key: key, Value: false}
	}
	return flags
}

var knownKeys = []string{
	FlagDisablePlaceSearch,
	FlagDisableNavigation,
	FlagDisableGeocoding,
	FlagNavigationWalkingOnly,
}

// KnownKeys returns the well-known flag keys in sorted order.
func KnownKeys() []string {
	keys := append([]string(nil), knownKeys...)
	sort.Strings(keys)
	return keys
}

// Validate checks that every update names a known flag and carries a boolean.
func Validate(updates []Update) error {
	if len(updates) == 0 {
		return fmt.Errorf("%w: no updates given", ErrInvalidFlag)
	}
	for _, u := range updates {
		if !isKnown(u.Key) {
			return fmt.Errorf("%w: unknown key %q", ErrInvalidFlag, u.Key)
		}
		if _, ok := u.Value.(bool); !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrInvalidFlag, u.Key)
		}
	}
	return nil
}

func isKnown(key string) bool {
	for _, k := range knownKeys {
		if k == key {
			return true
		}
	}
	return false
}
