package tour

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedFile is the YAML layout of a catalog seed.
type SeedFile struct {
	Routes []SeedRoute `yaml:"routes"`
}

// SeedRoute is one route and its points in a seed file.
type SeedRoute struct {
	Name        string            `yaml:"name"`
	Description map[string]string `yaml:"description"`
	Active      *bool             `yaml:"active"`
	Points      []SeedPoint       `yaml:"points"`
}

// SeedPoint is one waypoint in a seed file.
type SeedPoint struct {
	Name          string            `yaml:"name"`
	Latitude      float64           `yaml:"latitude"`
	Longitude     float64           `yaml:"longitude"`
	TriggerRadius float64           `yaml:"triggerRadius"`
	Order         int               `yaml:"order"`
	Description   map[string]string `yaml:"description"`
	AudioContent  map[string]string `yaml:"audioContent"`
}

// LoadSeed reads a seed file from path, or the built-in Amsterdam catalog
// when path is empty.
func LoadSeed(path string) (*SeedFile, error) {
	data := defaultSeed
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates seed YAML.
func ParseSeed(data []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i, route := range seed.Routes {
		if route.Name == "" {
			return nil, fmt.Errorf("seed route %d: name is required", i)
		}
		for j, p := range route.Points {
			if errs := validatePosition(Position{Lat: p.Latitude, Lon: p.Longitude}, ""); len(errs) > 0 {
				return nil, fmt.Errorf("seed route %q point %d: %s %s", route.Name, j, errs[0].Field, errs[0].Message)
			}
			if p.TriggerRadius < 0 {
				return nil, fmt.Errorf("seed route %q point %d: triggerRadius must not be negative", route.Name, j)
			}
		}
	}

	return &seed, nil
}

// Seed inserts the seed catalog when the catalog holds no routes.
// It reports whether anything was inserted.
func Seed(ctx context.Context, catalog Catalog, seed *SeedFile, logger zerolog.Logger) (bool, error) {
	count, err := catalog.CountRoutes(ctx)
	if err != nil {
		return false, fmt.Errorf("count routes: %w", err)
	}
	if count > 0 {
		logger.Debug().Int("routes", count).Msg("catalog already populated, skipping seed")
		return false, nil
	}

	now := time.Now().UTC()
	for _, sr := range seed.Routes {
		ids := make([]string, 0, len(sr.Points))
		for _, sp := range sr.Points {
			radius := sp.TriggerRadius
			if radius == 0 {
				radius = DefaultTriggerRadius
			}
			wp := &Waypoint{
				ID:            "wp_" + uuid.New().String(),
				Name:          sp.Name,
				Position:      Position{Lat: sp.Latitude, Lon: sp.Longitude},
				TriggerRadius: radius,
				Order:         sp.Order,
				Narration:     sp.Description,
				Audio:         sp.AudioContent,
				CreatedAt:     now,
			}
			if err := catalog.CreateWaypoint(ctx, wp); err != nil {
				return false, fmt.Errorf("seed waypoint %q: %w", sp.Name, err)
			}
			ids = append(ids, wp.ID)
		}

		active := true
		if sr.Active != nil {
			active = *sr.Active
		}
		route := &Route{
			ID:          "route_" + uuid.New().String(),
			Name:        sr.Name,
			Description: sr.Description,
			WaypointIDs: ids,
			Active:      active,
			CreatedAt:   now,
		}
		if err := catalog.CreateRoute(ctx, route); err != nil {
			return false, fmt.Errorf("seed route %q: %w", sr.Name, err)
		}

		logger.Info().
			Str("route_id", route.ID).
			Str("route", route.Name).
			Int("waypoints", len(ids)).
			Msg("seeded tour route")
	}

	return true, nil
}
