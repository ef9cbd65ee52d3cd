package progress

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stevengranter/wilderquest-sub002/internal/db"
	"github.com/stevengranter/wilderquest-sub002/internal/shared/apperr"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// RecordObserved appends or removes the (mapping, display name) claim.
// Both directions are idempotent: a duplicate find hits the uniqueness
// constraint and becomes a no-op, an un-find of a missing entry deletes
// nothing. The mapping must belong to questID.
func (s *Service) RecordObserved(ctx context.Context, questID, mappingID, displayName string, observed bool) error {
	if displayName == "" {
		return apperr.Validation("display name required")
	}
	if err := s.mappingInQuest(ctx, questID, mappingID); err != nil {
		return err
	}

	if observed {
		_, err := s.db.Exec(ctx, `
			INSERT INTO progress_entries (id, mapping_id, display_name, observed_at)
			VALUES ($1,$2,$3,now())
			ON CONFLICT (mapping_id, display_name) DO NOTHING
		`, uuid.NewString(), mappingID, displayName)
		return err
	}

	_, err := s.db.Exec(ctx, `
		DELETE FROM progress_entries WHERE mapping_id = $1 AND display_name = $2
	`, mappingID, displayName)
	return err
}

// ClearMapping wipes a species' progress for the whole quest, across all
// participants. Owner only.
func (s *Service) ClearMapping(ctx context.Context, questID, mappingID, requesterID string) error {
	if err := s.requireOwner(ctx, questID, requesterID); err != nil {
		return err
	}
	if err := s.mappingInQuest(ctx, questID, mappingID); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `DELETE FROM progress_entries WHERE mapping_id = $1`, mappingID)
	return err
}

// DeleteEntry removes a single ledger row, an administrative correction by
// the quest owner.
func (s *Service) DeleteEntry(ctx context.Context, questID, progressID, requesterID string) error {
	if err := s.requireOwner(ctx, questID, requesterID); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM progress_entries pe
		USING quest_mappings qm
		WHERE pe.id = $1 AND qm.id = pe.mapping_id AND qm.quest_id = $2
	`, progressID, questID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("progress entry not found")
	}
	return nil
}

// Aggregated returns, for each mapping with at least one entry, the count
// of distinct display names that found it.
func (s *Service) Aggregated(ctx context.Context, questID string) ([]AggregatedProgress, error) {
	rows, err := s.db.Query(ctx, `
		SELECT pe.mapping_id, COUNT(DISTINCT pe.display_name)
		FROM progress_entries pe
		JOIN quest_mappings qm ON qm.id = pe.mapping_id
		WHERE qm.quest_id = $1
		GROUP BY pe.mapping_id
		ORDER BY pe.mapping_id
	`, questID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agg := []AggregatedProgress{}
	for rows.Next() {
		var a AggregatedProgress
		if err := rows.Scan(&a.MappingID, &a.Count); err != nil {
			return nil, err
		}
		agg = append(agg, a)
	}
	return agg, nil
}

// Detailed returns every ledger entry for the quest, flagged with whether
// the display name is the quest owner's own username.
func (s *Service) Detailed(ctx context.Context, questID string) ([]DetailedProgress, error) {
	rows, err := s.db.Query(ctx, `
		SELECT pe.id, pe.mapping_id, pe.display_name, pe.observed_at, (pe.display_name = u.username)
		FROM progress_entries pe
		JOIN quest_mappings qm ON qm.id = pe.mapping_id
		JOIN quests q ON q.id = qm.quest_id
		JOIN users u ON u.id = q.user_id
		WHERE qm.quest_id = $1
		ORDER BY pe.observed_at, pe.id
	`, questID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	detailed := []DetailedProgress{}
	for rows.Next() {
		var d DetailedProgress
		if err := rows.Scan(&d.ID, &d.MappingID, &d.DisplayName, &d.ObservedAt, &d.IsRegisteredUser); err != nil {
			return nil, err
		}
		detailed = append(detailed, d)
	}
	return detailed, nil
}

// Leaderboard ranks participants by distinct mappings found, descending,
// ties broken by the earlier first find and then by name so the order is
// stable across calls.
func (s *Service) Leaderboard(ctx context.Context, questID string) ([]LeaderboardEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT pe.display_name, COUNT(DISTINCT pe.mapping_id), MIN(pe.observed_at)
		FROM progress_entries pe
		JOIN quest_mappings qm ON qm.id = pe.mapping_id
		WHERE qm.quest_id = $1
		GROUP BY pe.display_name
	`, questID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	board := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.DisplayName, &e.Count, &e.FirstFound); err != nil {
			return nil, err
		}
		board = append(board, e)
	}
	return Rank(board), nil
}

// Rank sorts leaderboard entries into their final deterministic order.
func Rank(board []LeaderboardEntry) []LeaderboardEntry {
	sort.SliceStable(board, func(i, j int) bool {
		if board[i].Count != board[j].Count {
			return board[i].Count > board[j].Count
		}
		if !board[i].FirstFound.Equal(board[j].FirstFound) {
			return board[i].FirstFound.Before(board[j].FirstFound)
		}
		return board[i].DisplayName < board[j].DisplayName
	})
	return board
}

// ClaimantsForMapping lists the display names currently holding an entry
// for the mapping, for the competitive-mode policy check.
func (s *Service) ClaimantsForMapping(ctx context.Context, mappingID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT display_name FROM progress_entries WHERE mapping_id = $1 ORDER BY observed_at
	`, mappingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *Service) mappingInQuest(ctx context.Context, questID, mappingID string) error {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM quest_mappings WHERE id = $1 AND quest_id = $2)
	`, mappingID, questID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("mapping not found for quest")
	}
	return nil
}

func (s *Service) requireOwner(ctx context.Context, questID, requesterID string) error {
	var ownerID string
	err := s.db.QueryRow(ctx, `SELECT user_id FROM quests WHERE id = $1`, questID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("quest not found")
	}
	if err != nil {
		return err
	}
	if ownerID != requesterID {
		return apperr.NotOwner()
	}
	return nil
}
