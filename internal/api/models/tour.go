package models

// TourPoint is a narrated waypoint.
type TourPoint struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   map[string]string `json:"description"`
	Latitude      float64           `json:"latitude"`
	Longitude     float64           `json:"longitude"`
	TriggerRadius float64           `json:"triggerRadius"`
	AudioContent  map[string]string `json:"audioContent"`
	Order         int               `json:"order"`
	CreatedAt     Timestamp         `json:"createdAt"`
}

// TourPointCreateRequest is the body of POST /v1/admin/tour-points.
type TourPointCreateRequest struct {
	Name          string            `json:"name"`
	Description   map[string]string `json:"description"`
	Latitude      *float64          `json:"latitude"`
	Longitude     *float64          `json:"longitude"`
	TriggerRadius *float64          `json:"triggerRadius,omitempty"`
	AudioContent  map[string]string `json:"audioContent"`
	Order         int               `json:"order"`
}

// TourRoute is a tour.
type TourRoute struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  map[string]string `json:"description"`
	TourPointIDs []string          `json:"tourPointIds"`
	IsActive     bool              `json:"isActive"`
	CreatedAt    Timestamp         `json:"createdAt"`
}

// TourRouteCreateRequest is the body of POST /v1/admin/tour-routes.
type TourRouteCreateRequest struct {
	Name         string            `json:"name"`
	Description  map[string]string `json:"description"`
	TourPointIDs []string          `json:"tourPointIds"`
	IsActive     *bool             `json:"isActive,omitempty"`
}

// TourRouteList wraps the active routes.
type TourRouteList struct {
	Items []TourRoute `json:"items"`
}

// TourPointList is the ordered waypoint sequence of a route.
type TourPointList struct {
	RouteID string      `json:"routeId"`
	Items   []TourPoint `json:"items"`
}

// Progress is a one-based position within a tour.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// UserLocation is a reported device location.
type UserLocation struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
}

// TourSessionCreateRequest is the body of POST /v1/tour-sessions.
type TourSessionCreateRequest struct {
	RouteID  string `json:"routeId"`
	UserID   string `json:"userId"`
	Language string `json:"language,omitempty"`
}

// TourSession is a user's traversal of a route.
type TourSession struct {
	ID                string        `json:"id"`
	RouteID           string        `json:"routeId"`
	UserID            string        `json:"userId"`
	Language          string        `json:"language"`
	CurrentPointIndex int           `json:"currentPointIndex"`
	IsActive          bool          `json:"isActive"`
	Completed         bool          `json:"completed"`
	Progress          *Progress     `json:"progress,omitempty"`
	LastLocation      *UserLocation `json:"lastLocation,omitempty"`
	StartedAt         Timestamp     `json:"startedAt"`
	UpdatedAt         Timestamp     `json:"updatedAt"`
}

// LocationUpdateResponse acknowledges a location report.
type LocationUpdateResponse struct {
	SessionID         string     `json:"sessionId"`
	CurrentPointIndex int        `json:"currentPointIndex"`
	Advanced          bool       `json:"advanced"`
	Completed         bool       `json:"completed"`
	Progress          Progress   `json:"progress"`
	ReachedPoint      *TourPoint `json:"reachedPoint,omitempty"`
	DistanceMeters    float64    `json:"distanceMeters"`
}

// CurrentContent is what the client should present now. Point is absent
// once the tour is complete.
type CurrentContent struct {
	Completed    bool       `json:"completed"`
	Message      string     `json:"message,omitempty"`
	Point        *TourPoint `json:"point,omitempty"`
	Description  string     `json:"description,omitempty"`
	AudioContent string     `json:"audioContent,omitempty"`
	Language     string     `json:"language"`
	Progress     Progress   `json:"progress"`
}

// Language is a supported narration language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}

// LanguageList wraps the supported languages.
type LanguageList struct {
	Languages []Language `json:"languages"`
}
