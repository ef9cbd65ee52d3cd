package progress

import "time"

// Entry is one participant's claim of having found the species behind a
// mapping. (mapping_id, display_name) is unique; un-find deletes the row.
type Entry struct {
	ID          string    `json:"id"`
	MappingID   string    `json:"mapping_id"`
	DisplayName string    `json:"display_name"`
	ObservedAt  time.Time `json:"observed_at"`
}

type AggregatedProgress struct {
	MappingID string `json:"mapping_id"`
	Count     int    `json:"count"`
}

type DetailedProgress struct {
	ID               string    `json:"id"`
	MappingID        string    `json:"mapping_id"`
	DisplayName      string    `json:"display_name"`
	ObservedAt       time.Time `json:"observed_at"`
	IsRegisteredUser bool      `json:"is_registered_user"`
}

type LeaderboardEntry struct {
	DisplayName string    `json:"display_name"`
	Count       int       `json:"count"`
	FirstFound  time.Time `json:"first_found"`
}

type ObservedRequest struct {
	Observed *bool `json:"observed"`
}
