package progress

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stevengranter/wilderquest-sub002/internal/access"
	"github.com/stevengranter/wilderquest-sub002/internal/auth"
	"github.com/stevengranter/wilderquest-sub002/internal/quest"
	"github.com/stevengranter/wilderquest-sub002/internal/share"
	"github.com/stevengranter/wilderquest-sub002/internal/shared/apperr"
	"github.com/stevengranter/wilderquest-sub002/internal/stream"
)

// ShareTokenHeader lets quest-scoped reads authorize with a guest token
// instead of a session.
const ShareTokenHeader = "X-Share-Token"

type Handler struct {
	progress *Service
	quests   *quest.Service
	shares   *share.Service
	guard    *access.Guard
	hub      *stream.Hub
}

func NewHandler(progress *Service, quests *quest.Service, shares *share.Service, guard *access.Guard, hub *stream.Hub) *Handler {
	return &Handler{progress: progress, quests: quests, shares: shares, guard: guard, hub: hub}
}

func RegisterRoutes(r fiber.Router, h *Handler, authMiddleware, optionalAuth fiber.Handler) {
	// Token-scoped surface, for guests holding a share link.
	r.Get("/shares/token/:token", h.resolveShare)
	r.Get("/shares/token/:token/progress", h.tokenDetailed)
	r.Get("/shares/token/:token/progress/aggregate", h.tokenAggregated)
	r.Get("/shares/token/:token/progress/leaderboard", h.tokenLeaderboard)
	r.Post("/shares/token/:token/progress/:mappingId", h.tokenRecord)
	r.Delete("/shares/:shareId", authMiddleware, h.deleteShare)

	// Quest-scoped surface, for the owner's session (reads also accept a
	// share token so both views stay byte-identical).
	r.Get("/quests/:questId/progress/aggregate", optionalAuth, h.questAggregated)
	r.Get("/quests/:questId/progress/detailed", authMiddleware, h.questDetailed)
	r.Get("/quests/:questId/progress/leaderboard", optionalAuth, h.questLeaderboard)
	r.Post("/quests/:questId/progress/:mappingId", authMiddleware, h.questRecord)
	r.Delete("/quests/:questId/progress/:progressId", authMiddleware, h.deleteEntry)
	r.Post("/quests/:questId/mappings/:mappingId/clear", authMiddleware, h.clearMapping)
}

func (h *Handler) resolveShare(c *fiber.Ctx) error {
	sh, err := h.shares.ResolveToken(c.Context(), c.Params("token"))
	if err != nil {
		return err
	}
	qm, err := h.quests.GetQuestWithMappings(c.Context(), sh.QuestID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"quest":         qm.Quest,
		"share":         sh,
		"taxa_mappings": qm.Mappings,
	})
}

func (h *Handler) tokenDetailed(c *fiber.Ctx) error {
	sh, err := h.shares.ResolveToken(c.Context(), c.Params("token"))
	if err != nil {
		return err
	}
	detailed, err := h.progress.Detailed(c.Context(), sh.QuestID)
	if err != nil {
		return err
	}
	return c.JSON(detailed)
}

func (h *Handler) tokenAggregated(c *fiber.Ctx) error {
	sh, err := h.shares.ResolveToken(c.Context(), c.Params("token"))
	if err != nil {
		return err
	}
	agg, err := h.progress.Aggregated(c.Context(), sh.QuestID)
	if err != nil {
		return err
	}
	return c.JSON(agg)
}

func (h *Handler) tokenLeaderboard(c *fiber.Ctx) error {
	sh, err := h.shares.ResolveToken(c.Context(), c.Params("token"))
	if err != nil {
		return err
	}
	board, err := h.progress.Leaderboard(c.Context(), sh.QuestID)
	if err != nil {
		return err
	}
	return c.JSON(board)
}

func (h *Handler) tokenRecord(c *fiber.Ctx) error {
	return h.record(c, access.Requester{Token: c.Params("token")}, "")
}

func (h *Handler) questRecord(c *fiber.Ctx) error {
	return h.record(c, access.Requester{UserID: auth.UserID(c)}, c.Params("questId"))
}

// record is the shared write path for both the token-scoped and the
// owner-scoped endpoints. questID is empty on the token path and resolved
// from the share.
func (h *Handler) record(c *fiber.Ctx, requester access.Requester, questID string) error {
	var req ObservedRequest
	if err := c.BodyParser(&req); err != nil || req.Observed == nil {
		return apperr.Validation("observed boolean required")
	}

	if questID == "" {
		sh, err := h.shares.ResolveToken(c.Context(), requester.Token)
		if err != nil {
			return err
		}
		questID = sh.QuestID
	}

	q, err := h.quests.GetQuest(c.Context(), questID)
	if err != nil {
		return err
	}

	identity, err := h.guard.CanWrite(c.Context(), questMeta(q), requester)
	if err != nil {
		return err
	}

	displayName, err := h.displayName(c, q, identity)
	if err != nil {
		return err
	}

	mappingID := c.Params("mappingId")
	if *req.Observed {
		claimants, err := h.progress.ClaimantsForMapping(c.Context(), mappingID)
		if err != nil {
			return err
		}
		if !CanClaim(q.Mode, claimants, displayName) {
			return apperr.Forbidden("species already claimed in competitive mode")
		}
	}

	if err := h.progress.RecordObserved(c.Context(), questID, mappingID, displayName, *req.Observed); err != nil {
		return err
	}

	if h.hub != nil {
		h.hub.Publish(questID, map[string]any{
			"type":         "progress.updated",
			"quest_id":     questID,
			"mapping_id":   mappingID,
			"display_name": displayName,
			"observed":     *req.Observed,
		})
	}

	agg, err := h.progress.Aggregated(c.Context(), questID)
	if err != nil {
		return err
	}
	return c.JSON(agg)
}

func (h *Handler) questAggregated(c *fiber.Ctx) error {
	q, err := h.readableQuest(c)
	if err != nil {
		return err
	}
	agg, err := h.progress.Aggregated(c.Context(), q.ID)
	if err != nil {
		return err
	}
	return c.JSON(agg)
}

func (h *Handler) questDetailed(c *fiber.Ctx) error {
	q, err := h.quests.GetQuest(c.Context(), c.Params("questId"))
	if err != nil {
		return err
	}
	if q.UserID != auth.UserID(c) {
		return apperr.NotOwner()
	}
	detailed, err := h.progress.Detailed(c.Context(), q.ID)
	if err != nil {
		return err
	}
	return c.JSON(detailed)
}

func (h *Handler) questLeaderboard(c *fiber.Ctx) error {
	q, err := h.readableQuest(c)
	if err != nil {
		return err
	}
	board, err := h.progress.Leaderboard(c.Context(), q.ID)
	if err != nil {
		return err
	}
	return c.JSON(board)
}

func (h *Handler) deleteShare(c *fiber.Ctx) error {
	if err := h.shares.Delete(c.Context(), c.Params("shareId"), auth.UserID(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) deleteEntry(c *fiber.Ctx) error {
	err := h.progress.DeleteEntry(c.Context(), c.Params("questId"), c.Params("progressId"), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) clearMapping(c *fiber.Ctx) error {
	questID := c.Params("questId")
	err := h.progress.ClearMapping(c.Context(), questID, c.Params("mappingId"), auth.UserID(c))
	if err != nil {
		return err
	}

	if h.hub != nil {
		h.hub.Publish(questID, map[string]any{
			"type":       "progress.cleared",
			"quest_id":   questID,
			"mapping_id": c.Params("mappingId"),
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) readableQuest(c *fiber.Ctx) (quest.Quest, error) {
	q, err := h.quests.GetQuest(c.Context(), c.Params("questId"))
	if err != nil {
		return quest.Quest{}, err
	}
	requester := access.Requester{UserID: auth.UserID(c), Token: c.Get(ShareTokenHeader)}
	if err := h.guard.CanRead(c.Context(), questMeta(q), requester); err != nil {
		return quest.Quest{}, err
	}
	return q, nil
}

func (h *Handler) displayName(c *fiber.Ctx, q quest.Quest, identity access.Identity) (string, error) {
	if identity.Share != nil {
		return h.shares.DisplayName(c.Context(), *identity.Share)
	}
	return h.shares.Username(c.Context(), q.UserID)
}

func questMeta(q quest.Quest) access.QuestMeta {
	return access.QuestMeta{ID: q.ID, OwnerID: q.UserID, Visibility: q.Visibility, Status: q.Status}
}
