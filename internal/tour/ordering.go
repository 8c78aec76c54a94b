package tour

import "sort"

// SortWaypoints returns the route's waypoint sequence sorted ascending by
// Order. This sequence defines which waypoint is the Nth one.
//
// Ties on Order are broken by the waypoint's first position in
// route.WaypointIDs, then by ID. Waypoints the route does not reference are
// dropped and an ID listed twice by the route appears once.
func SortWaypoints(route *Route, waypoints []Waypoint) []Waypoint {
	position := make(map[string]int, len(route.WaypointIDs))
	for i, id := range route.WaypointIDs {
		if _, seen := position[id]; !seen {
			position[id] = i
		}
	}

	seq := make([]Waypoint, 0, len(position))
	taken := make(map[string]bool, len(position))
	for _, wp := range waypoints {
		if _, ok := position[wp.ID]; !ok || taken[wp.ID] {
			continue
		}
		taken[wp.ID] = true
		seq = append(seq, wp)
	}

	sort.SliceStable(seq, func(i, j int) bool {
		a, b := seq[i], seq[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if position[a.ID] != position[b.ID] {
			return position[a.ID] < position[b.ID]
		}
		return a.ID < b.ID
	})

	return seq
}
