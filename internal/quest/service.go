package quest

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stevengranter/wilderquest-sub002/internal/db"
	"github.com/stevengranter/wilderquest-sub002/internal/share"
	"github.com/stevengranter/wilderquest-sub002/internal/shared/apperr"
	"github.com/stevengranter/wilderquest-sub002/internal/stream"
)

// validTransitions is the owner-driven status machine. Absent pairs are
// rejected.
var validTransitions = map[string][]string{
	StatusPending: {StatusActive},
	StatusActive:  {StatusPaused, StatusEnded},
	StatusPaused:  {StatusActive, StatusEnded},
}

type Service struct {
	db     db.Querier
	shares *share.Service
	hub    *stream.Hub
}

func NewService(db db.Querier, shares *share.Service, hub *stream.Hub) *Service {
	return &Service{db: db, shares: shares, hub: hub}
}

// CreateQuest inserts the quest, its initial taxon mappings, and the
// owner's bootstrap share.
func (s *Service) CreateQuest(ctx context.Context, ownerID string, req CreateRequest) (QuestWithMappings, error) {
	if req.Name == "" {
		return QuestWithMappings{}, apperr.Validation("name required")
	}
	if req.Mode == "" {
		req.Mode = ModeCooperative
	}
	if req.Mode != ModeCooperative && req.Mode != ModeCompetitive {
		return QuestWithMappings{}, apperr.Validation("mode must be cooperative or competitive")
	}
	if req.Visibility == "" {
		req.Visibility = "private"
	}

	q := Quest{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		Name:        req.Name,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		PlaceName:   req.PlaceName,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Visibility:  req.Visibility,
		Mode:        req.Mode,
		Status:      StatusPending,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO quests (id, user_id, name, description, latitude, longitude, place_name, starts_at, ends_at, visibility, mode, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at
	`, q.ID, q.UserID, q.Name, q.Description, q.Latitude, q.Longitude, q.PlaceName, q.StartsAt, q.EndsAt, q.Visibility, q.Mode, q.Status)
	if err := row.Scan(&q.CreatedAt, &q.UpdatedAt); err != nil {
		return QuestWithMappings{}, err
	}

	mappings, err := s.insertMappings(ctx, q.ID, req.TaxonIDs)
	if err != nil {
		return QuestWithMappings{}, err
	}

	if _, err := s.shares.CreateOwnerShare(ctx, q.ID, ownerID); err != nil {
		return QuestWithMappings{}, err
	}

	return QuestWithMappings{Quest: q, Mappings: mappings}, nil
}

func (s *Service) GetQuest(ctx context.Context, id string) (Quest, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, description, latitude, longitude, place_name, starts_at, ends_at, visibility, mode, status, created_at, updated_at
		FROM quests WHERE id = $1
	`, id)

	var q Quest
	err := row.Scan(&q.ID, &q.UserID, &q.Name, &q.Description, &q.Latitude, &q.Longitude, &q.PlaceName,
		&q.StartsAt, &q.EndsAt, &q.Visibility, &q.Mode, &q.Status, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quest{}, apperr.NotFound("quest not found")
	}
	if err != nil {
		return Quest{}, err
	}
	return q, nil
}

func (s *Service) GetQuestWithMappings(ctx context.Context, id string) (QuestWithMappings, error) {
	q, err := s.GetQuest(ctx, id)
	if err != nil {
		return QuestWithMappings{}, err
	}
	mappings, err := s.MappingsForQuest(ctx, id)
	if err != nil {
		return QuestWithMappings{}, err
	}
	return QuestWithMappings{Quest: q, Mappings: mappings}, nil
}

// UpdateQuest patches quest fields for its owner. Status changes run
// through the transition table and are announced on the hub; a mode change
// is refused once any progress exists.
func (s *Service) UpdateQuest(ctx context.Context, id, requesterID string, patch UpdateRequest) (Quest, error) {
	q, err := s.GetQuest(ctx, id)
	if err != nil {
		return Quest{}, err
	}
	if q.UserID != requesterID {
		return Quest{}, apperr.NotOwner()
	}

	statusChanged := false
	if patch.Status != "" && patch.Status != q.Status {
		if !transitionAllowed(q.Status, patch.Status) {
			return Quest{}, apperr.Validation("invalid status transition " + q.Status + " -> " + patch.Status)
		}
		q.Status = patch.Status
		statusChanged = true
	}

	if patch.Mode != "" && patch.Mode != q.Mode {
		count, err := s.progressCount(ctx, id)
		if err != nil {
			return Quest{}, err
		}
		if count > 0 {
			return Quest{}, apperr.Conflict("mode is immutable once progress has been recorded")
		}
		if patch.Mode != ModeCooperative && patch.Mode != ModeCompetitive {
			return Quest{}, apperr.Validation("mode must be cooperative or competitive")
		}
		q.Mode = patch.Mode
	}

	if patch.Name != "" {
		q.Name = patch.Name
	}
	if patch.Description != nil {
		q.Description = *patch.Description
	}
	if patch.Latitude != nil {
		q.Latitude = patch.Latitude
	}
	if patch.Longitude != nil {
		q.Longitude = patch.Longitude
	}
	if patch.PlaceName != nil {
		q.PlaceName = *patch.PlaceName
	}
	if patch.StartsAt != nil {
		q.StartsAt = patch.StartsAt
	}
	if patch.EndsAt != nil {
		q.EndsAt = patch.EndsAt
	}
	if patch.Visibility != "" {
		if patch.Visibility != "private" && patch.Visibility != "public" {
			return Quest{}, apperr.Validation("visibility must be private or public")
		}
		q.Visibility = patch.Visibility
	}

	_, err = s.db.Exec(ctx, `
		UPDATE quests
		SET name=$2, description=$3, latitude=$4, longitude=$5, place_name=$6,
		    starts_at=$7, ends_at=$8, visibility=$9, mode=$10, status=$11, updated_at=now()
		WHERE id=$1
	`, q.ID, q.Name, q.Description, q.Latitude, q.Longitude, q.PlaceName, q.StartsAt, q.EndsAt, q.Visibility, q.Mode, q.Status)
	if err != nil {
		return Quest{}, err
	}

	if patch.TaxonIDs != nil {
		if err := s.SyncMappings(ctx, id, *patch.TaxonIDs); err != nil {
			return Quest{}, err
		}
	}

	if statusChanged && s.hub != nil {
		s.hub.Publish(q.ID, map[string]any{
			"type":     "quest.status",
			"quest_id": q.ID,
			"status":   q.Status,
		})
	}
	return q, nil
}

// SyncMappings replaces the quest's taxon set by diff: taxa present in both
// the old and new list keep their mapping ids, so progress recorded against
// them survives the edit. Removed taxa cascade their progress away.
func (s *Service) SyncMappings(ctx context.Context, questID string, taxonIDs []int64) error {
	existing, err := s.MappingsForQuest(ctx, questID)
	if err != nil {
		return err
	}

	want := make(map[int64]struct{}, len(taxonIDs))
	for _, id := range taxonIDs {
		want[id] = struct{}{}
	}

	var removed []string
	have := make(map[int64]struct{}, len(existing))
	for _, m := range existing {
		have[m.TaxonID] = struct{}{}
		if _, keep := want[m.TaxonID]; !keep {
			removed = append(removed, m.ID)
		}
	}

	if len(removed) > 0 {
		if _, err := s.db.Exec(ctx, `DELETE FROM quest_mappings WHERE id = ANY($1)`, removed); err != nil {
			return err
		}
	}

	var added []int64
	for _, id := range taxonIDs {
		if _, ok := have[id]; !ok {
			added = append(added, id)
		}
	}
	_, err = s.insertMappings(ctx, questID, added)
	return err
}

func (s *Service) MappingsForQuest(ctx context.Context, questID string) ([]Mapping, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, quest_id, taxon_id, created_at
		FROM quest_mappings WHERE quest_id = $1
		ORDER BY created_at, taxon_id
	`, questID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []Mapping
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(&m.ID, &m.QuestID, &m.TaxonID, &m.CreatedAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func (s *Service) insertMappings(ctx context.Context, questID string, taxonIDs []int64) ([]Mapping, error) {
	var mappings []Mapping
	for _, taxonID := range taxonIDs {
		m := Mapping{ID: uuid.NewString(), QuestID: questID, TaxonID: taxonID}
		row := s.db.QueryRow(ctx, `
			INSERT INTO quest_mappings (id, quest_id, taxon_id)
			VALUES ($1,$2,$3)
			ON CONFLICT (quest_id, taxon_id) DO UPDATE SET taxon_id = EXCLUDED.taxon_id
			RETURNING id, created_at
		`, m.ID, m.QuestID, m.TaxonID)
		if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func (s *Service) progressCount(ctx context.Context, questID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM progress_entries pe
		JOIN quest_mappings qm ON qm.id = pe.mapping_id
		WHERE qm.quest_id = $1
	`, questID).Scan(&count)
	return count, err
}

func transitionAllowed(from, to string) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
