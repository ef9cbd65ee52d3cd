package share

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"

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

// Create issues a guest share for a quest the creator owns.
func (s *Service) Create(ctx context.Context, questID, creatorID string, req CreateRequest) (Share, error) {
	ownerID, err := s.questOwner(ctx, questID)
	if err != nil {
		return Share{}, err
	}
	if ownerID != creatorID {
		return Share{}, apperr.NotOwner()
	}
	return s.insert(ctx, questID, creatorID, req)
}

// CreateOwnerShare bootstraps the owner's own share at quest creation so
// the owner's progress aggregates the same way a guest's does. Ownership
// is the caller's responsibility.
func (s *Service) CreateOwnerShare(ctx context.Context, questID, ownerID string) (Share, error) {
	return s.insert(ctx, questID, ownerID, CreateRequest{})
}

func (s *Service) insert(ctx context.Context, questID, creatorID string, req CreateRequest) (Share, error) {
	token, err := newToken()
	if err != nil {
		return Share{}, err
	}

	sh := Share{
		ID:        uuid.NewString(),
		QuestID:   questID,
		UserID:    creatorID,
		Token:     token,
		GuestName: req.GuestName,
		ExpiresAt: req.ExpiresAt,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO shares (id, quest_id, user_id, token, guest_name, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at
	`, sh.ID, sh.QuestID, sh.UserID, sh.Token, sh.GuestName, sh.ExpiresAt)
	if err := row.Scan(&sh.CreatedAt, &sh.UpdatedAt); err != nil {
		return Share{}, err
	}
	return sh, nil
}

// ResolveToken returns the share behind a token. Expiry is evaluated inside
// the query so an expired share can never be observed. Missing and expired
// tokens are indistinguishable to the caller.
func (s *Service) ResolveToken(ctx context.Context, token string) (Share, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, quest_id, user_id, token, guest_name, expires_at, created_at, updated_at
		FROM shares
		WHERE token = $1 AND (expires_at IS NULL OR expires_at > now())
	`, token)

	var sh Share
	err := row.Scan(&sh.ID, &sh.QuestID, &sh.UserID, &sh.Token, &sh.GuestName, &sh.ExpiresAt, &sh.CreatedAt, &sh.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Share{}, apperr.InvalidOrExpiredToken()
	}
	if err != nil {
		return Share{}, err
	}
	return sh, nil
}

// Delete removes a share. Only the owner of the share's quest may delete it.
func (s *Service) Delete(ctx context.Context, shareID, requesterID string) error {
	row := s.db.QueryRow(ctx, `
		SELECT q.user_id
		FROM shares s JOIN quests q ON q.id = s.quest_id
		WHERE s.id = $1
	`, shareID)

	var ownerID string
	if err := row.Scan(&ownerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("share not found")
		}
		return err
	}
	if ownerID != requesterID {
		return apperr.NotOwner()
	}

	_, err := s.db.Exec(ctx, `DELETE FROM shares WHERE id = $1`, shareID)
	return err
}

// List returns all shares of a quest to its owner.
func (s *Service) List(ctx context.Context, questID, requesterID string) ([]Share, error) {
	ownerID, err := s.questOwner(ctx, questID)
	if err != nil {
		return nil, err
	}
	if ownerID != requesterID {
		return nil, apperr.NotOwner()
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, quest_id, user_id, token, guest_name, expires_at, created_at, updated_at
		FROM shares WHERE quest_id = $1
		ORDER BY created_at
	`, questID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []Share
	for rows.Next() {
		var sh Share
		if err := rows.Scan(&sh.ID, &sh.QuestID, &sh.UserID, &sh.Token, &sh.GuestName, &sh.ExpiresAt, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
			return nil, err
		}
		shares = append(shares, sh)
	}
	return shares, nil
}

// DisplayName resolves the ledger identity behind a share: the guest's
// chosen name, or the quest owner's username for the owner's own share.
func (s *Service) DisplayName(ctx context.Context, sh Share) (string, error) {
	if sh.GuestName != nil && *sh.GuestName != "" {
		return *sh.GuestName, nil
	}
	return s.Username(ctx, sh.UserID)
}

// Username looks up a registered user's username, the owner-side ledger
// identity.
func (s *Service) Username(ctx context.Context, userID string) (string, error) {
	var username string
	err := s.db.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, userID).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("user not found")
	}
	if err != nil {
		return "", err
	}
	return username, nil
}

func (s *Service) questOwner(ctx context.Context, questID string) (string, error) {
	var ownerID string
	err := s.db.QueryRow(ctx, `SELECT user_id FROM quests WHERE id = $1`, questID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("quest not found")
	}
	if err != nil {
		return "", err
	}
	return ownerID, nil
}

// newToken returns 32 bytes of CSPRNG output, base64url encoded. uuid v4
// only carries 122 random bits, below the floor for share tokens.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
