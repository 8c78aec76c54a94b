package models

// FeatureFlag is a stored or default flag value.
type FeatureFlag struct {
	Key       string     `json:"key"`
	Value     any        `json:"value"`
	UpdatedAt *Timestamp `json:"updatedAt,omitempty"`
}

// FeatureFlagList lists every known flag.
type FeatureFlagList struct {
	Flags []FeatureFlag `json:"flags"`
}

// FeatureFlagUpdate sets one flag.
type FeatureFlagUpdate struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// FeatureFlagsUpdateRequest is the body of PUT /v1/admin/feature-flags.
type FeatureFlagsUpdateRequest struct {
	Flags  []FeatureFlagUpdate `json:"flags"`
	Reason string              `json:"reason,omitempty"`
}
