package tour_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpstunnel/gpstunnel/internal/tour"
)

func amsterdamWaypoints() []tour.Waypoint {
	return []tour.Waypoint{
		{
			ID:            "wp_central",
			Name:          "Central Station Departure",
			Position:      tour.Position{Lat: 52.3791, Lon: 4.9003},
			TriggerRadius: 100,
			Order:         1,
			Narration:     map[string]string{"en": "Welcome aboard!", "nl": "Welkom aan boord!"},
			Audio:         map[string]string{"en": "central-en.mp3"},
		},
		{
			ID:            "wp_jordaan",
			Name:          "Jordaan District",
			Position:      tour.Position{Lat: 52.3738, Lon: 4.8830},
			TriggerRadius: 75,
			Order:         2,
			Narration:     map[string]string{"en": "Entering the Jordaan."},
			Audio:         map[string]string{"en": "jordaan-en.mp3", "nl": "jordaan-nl.mp3"},
		},
	}
}

func routeOf(waypoints []tour.Waypoint) *tour.Route {
	ids := make([]string, 0, len(waypoints))
	for _, wp := range waypoints {
		ids = append(ids, wp.ID)
	}
	return &tour.Route{ID: "route_1", Name: "Test", WaypointIDs: ids, Active: true}
}

func ids(seq []tour.Waypoint) []string {
	out := make([]string, 0, len(seq))
	for _, wp := range seq {
		out = append(out, wp.ID)
	}
	return out
}

func TestSortWaypoints_OrderDeterminism(t *testing.T) {
	waypoints := []tour.Waypoint{
		{ID: "d", Order: 4},
		{ID: "a", Order: 1},
		{ID: "c", Order: 3},
		{ID: "b", Order: 2},
		{ID: "e", Order: 10},
	}
	route := routeOf(waypoints)
	want := []string{"a", "b", "c", "d", "e"}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := append([]tour.Waypoint(nil), waypoints...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		assert.Equal(t, want, ids(tour.SortWaypoints(route, shuffled)))
	}
}

func TestSortWaypoints_Ties(t *testing.T) {
	waypoints := []tour.Waypoint{
		{ID: "x", Order: 1},
		{ID: "y", Order: 1},
		{ID: "z", Order: 0},
	}

	t.Run("equal order follows route list position", func(t *testing.T) {
		route := &tour.Route{WaypointIDs: []string{"y", "z", "x"}}
		assert.Equal(t, []string{"z", "y", "x"}, ids(tour.SortWaypoints(route, waypoints)))

		reversed := []tour.Waypoint{waypoints[2], waypoints[1], waypoints[0]}
		assert.Equal(t, []string{"z", "y", "x"}, ids(tour.SortWaypoints(route, reversed)))
	})

	t.Run("duplicate ids count once at first position", func(t *testing.T) {
		route := &tour.Route{WaypointIDs: []string{"x", "y", "x", "z"}}
		dup := append(append([]tour.Waypoint(nil), waypoints...), tour.Waypoint{ID: "x", Order: 1})
		assert.Equal(t, []string{"z", "x", "y"}, ids(tour.SortWaypoints(route, dup)))
	})

	t.Run("unreferenced waypoints are dropped", func(t *testing.T) {
		route := &tour.Route{WaypointIDs: []string{"x"}}
		assert.Equal(t, []string{"x"}, ids(tour.SortWaypoints(route, waypoints)))
	})
}

func TestDistanceMeters(t *testing.T) {
	seq := amsterdamWaypoints()

	assert.Zero(t, tour.DistanceMeters(seq[0].Position, seq[0].Position))

	// Central Station to the Jordaan is roughly 1.3 km.
	d := tour.DistanceMeters(seq[0].Position, seq[1].Position)
	assert.InDelta(t, 1350, d, 100)
	assert.InDelta(t, d, tour.DistanceMeters(seq[1].Position, seq[0].Position), 1e-9)
}

func TestEvaluate(t *testing.T) {
	seq := amsterdamWaypoints()

	t.Run("inside the target geofence advances one step", func(t *testing.T) {
		p := tour.Evaluate(seq, 0, tour.Location{Position: seq[0].Position})
		assert.True(t, p.Advanced)
		assert.Equal(t, 0, p.PreviousIndex)
		assert.Equal(t, 1, p.CurrentIndex)
		assert.False(t, p.Completed)
		require.NotNil(t, p.Target)
		assert.Equal(t, "wp_central", p.Target.ID)
	})

	t.Run("outside the geofence does not advance", func(t *testing.T) {
		p := tour.Evaluate(seq, 0, tour.Location{Position: tour.Position{Lat: 52.36, Lon: 4.90}})
		assert.False(t, p.Advanced)
		assert.Equal(t, 0, p.CurrentIndex)
		assert.Greater(t, p.DistanceMeters, seq[0].TriggerRadius)
	})

	t.Run("the radius boundary is inclusive", func(t *testing.T) {
		edge := tour.Position{Lat: 52.3791, Lon: 4.9003}
		wp := []tour.Waypoint{{ID: "w", Position: tour.Position{Lat: 52.3800, Lon: 4.9003}}}
		wp[0].TriggerRadius = tour.DistanceMeters(edge, wp[0].Position)

		p := tour.Evaluate(wp, 0, tour.Location{Position: edge})
		assert.True(t, p.Advanced)
	})

	t.Run("never advances more than one step", func(t *testing.T) {
		overlapping := []tour.Waypoint{
			{ID: "a", Position: tour.Position{Lat: 52.0, Lon: 4.0}, TriggerRadius: 500, Order: 1},
			{ID: "b", Position: tour.Position{Lat: 52.0005, Lon: 4.0}, TriggerRadius: 500, Order: 2},
			{ID: "c", Position: tour.Position{Lat: 52.001, Lon: 4.0}, TriggerRadius: 500, Order: 3},
		}
		p := tour.Evaluate(overlapping, 0, tour.Location{Position: tour.Position{Lat: 52.0005, Lon: 4.0}})
		assert.Equal(t, 1, p.CurrentIndex)
	})

	t.Run("a completed tour stays complete", func(t *testing.T) {
		p := tour.Evaluate(seq, len(seq), tour.Location{Position: seq[1].Position})
		assert.False(t, p.Advanced)
		assert.True(t, p.Completed)
		assert.Equal(t, len(seq), p.CurrentIndex)
		assert.Nil(t, p.Target)
	})

	t.Run("reaching the last waypoint completes the tour", func(t *testing.T) {
		p := tour.Evaluate(seq, 1, tour.Location{Position: seq[1].Position})
		assert.True(t, p.Advanced)
		assert.True(t, p.Completed)
		assert.Equal(t, 2, p.CurrentIndex)
	})
}

func TestLocalize(t *testing.T) {
	field := map[string]string{"en": "Hello", "nl": "Hallo"}

	assert.Equal(t, "Hallo", tour.Localize(field, "nl", "en"))
	assert.Equal(t, "Hello", tour.Localize(field, "xx", "en"))
	assert.Equal(t, "Hello", tour.Localize(map[string]string{"en": "Hello"}, "xx", "en"))
	assert.Equal(t, "", tour.Localize(map[string]string{"nl": "Hallo"}, "xx", "en"))
	assert.Equal(t, "", tour.Localize(nil, "en", "en"))
}

func TestResolveContent(t *testing.T) {
	seq := amsterdamWaypoints()

	t.Run("returns the current waypoint with human progress", func(t *testing.T) {
		c := tour.ResolveContent(seq, 1, "nl", "en")
		assert.False(t, c.Completed)
		require.NotNil(t, c.Waypoint)
		assert.Equal(t, "wp_jordaan", c.Waypoint.ID)
		assert.Equal(t, "Entering the Jordaan.", c.Narration)
		assert.Equal(t, "jordaan-nl.mp3", c.Audio)
		assert.Equal(t, tour.Progress{Current: 2, Total: 2}, c.Progress)
	})

	t.Run("signals completion past the last waypoint", func(t *testing.T) {
		c := tour.ResolveContent(seq, 2, "en", "en")
		assert.True(t, c.Completed)
		assert.Nil(t, c.Waypoint)
		assert.Equal(t, tour.Progress{Current: 2, Total: 2}, c.Progress)
	})

	t.Run("an empty route is complete", func(t *testing.T) {
		c := tour.ResolveContent(nil, 0, "en", "en")
		assert.True(t, c.Completed)
		assert.Equal(t, tour.Progress{Current: 0, Total: 0}, c.Progress)
	})
}

func TestSupportedLanguages(t *testing.T) {
	langs := tour.SupportedLanguages()
	require.Len(t, langs, 16)
	assert.Equal(t, "en", langs[0].Code)

	seen := make(map[string]bool)
	for _, l := range langs {
		assert.False(t, seen[l.Code], "duplicate language %s", l.Code)
		seen[l.Code] = true
		assert.NotEmpty(t, l.Name)
	}
}
