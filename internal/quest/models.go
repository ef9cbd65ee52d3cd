package quest

import "time"

const (
	ModeCooperative = "cooperative"
	ModeCompetitive = "competitive"
)

const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusPaused  = "paused"
	StatusEnded   = "ended"
)

type Quest struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	PlaceName   string     `json:"place_name,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Visibility  string     `json:"visibility"`
	Mode        string     `json:"mode"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Mapping is the durable identity of a (quest, taxon) pair. Progress rows
// reference mapping ids, not taxon ids, so identity survives taxon-list
// edits.
type Mapping struct {
	ID        string    `json:"id"`
	QuestID   string    `json:"quest_id"`
	TaxonID   int64     `json:"taxon_id"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Latitude    *float64   `json:"latitude"`
	Longitude   *float64   `json:"longitude"`
	PlaceName   string     `json:"place_name"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Visibility  string     `json:"visibility"`
	Mode        string     `json:"mode"`
	TaxonIDs    []int64    `json:"taxon_ids"`
}

type UpdateRequest struct {
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Latitude    *float64   `json:"latitude"`
	Longitude   *float64   `json:"longitude"`
	PlaceName   *string    `json:"place_name"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Visibility  string     `json:"visibility"`
	Mode        string     `json:"mode"`
	Status      string     `json:"status"`
	TaxonIDs    *[]int64   `json:"taxon_ids"`
}

type QuestWithMappings struct {
	Quest
	Mappings []Mapping `json:"taxa_mappings"`
}
