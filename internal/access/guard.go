// Package access decides whether a caller may read or mutate a quest's
// progress. Callers identify as the owner (session user id), a guest
// (share token), or both; handlers must consult the guard before touching
// the ledger or aggregator.
package access

import (
	"context"

	"github.com/stevengranter/wilderquest-sub002/internal/share"
	"github.com/stevengranter/wilderquest-sub002/internal/shared/apperr"
)

// QuestMeta carries the quest fields authorization depends on.
type QuestMeta struct {
	ID         string
	OwnerID    string
	Visibility string
	Status     string
}

// Requester is the caller's presented identity. Either field may be empty.
type Requester struct {
	UserID string
	Token  string
}

// Identity is a resolved, authorized caller.
type Identity struct {
	IsOwner bool
	Share   *share.Share
}

type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (share.Share, error)
}

type Guard struct {
	shares TokenResolver
}

func NewGuard(shares TokenResolver) *Guard {
	return &Guard{shares: shares}
}

// CanRead permits public quests to anyone, owners always, and token
// holders whose share belongs to this quest.
func (g *Guard) CanRead(ctx context.Context, q QuestMeta, r Requester) error {
	if q.Visibility == "public" {
		return nil
	}
	_, err := g.resolve(ctx, q, r)
	return err
}

// CanWrite permits progress mutation only while the quest is active, and
// only to the owner or a token holder for this quest. The resolved
// identity is returned so callers can attribute the write.
func (g *Guard) CanWrite(ctx context.Context, q QuestMeta, r Requester) (Identity, error) {
	if q.Status != "active" {
		return Identity{}, apperr.Forbidden("quest is not active")
	}
	return g.resolve(ctx, q, r)
}

func (g *Guard) resolve(ctx context.Context, q QuestMeta, r Requester) (Identity, error) {
	if r.UserID == "" && r.Token == "" {
		return Identity{}, apperr.Unauthorized("authentication required")
	}

	if r.UserID != "" && r.UserID == q.OwnerID {
		return Identity{IsOwner: true}, nil
	}

	if r.Token != "" {
		sh, err := g.shares.ResolveToken(ctx, r.Token)
		if err != nil {
			return Identity{}, err
		}
		// A token for another quest grants nothing here, even if mapping
		// ids are guessed.
		if sh.QuestID != q.ID {
			return Identity{}, apperr.Forbidden("share token is for a different quest")
		}
		return Identity{Share: &sh}, nil
	}

	return Identity{}, apperr.Forbidden("not authorized for this quest")
}
