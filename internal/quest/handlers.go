package quest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stevengranter/wilderquest-sub002/internal/access"
	"github.com/stevengranter/wilderquest-sub002/internal/auth"
	"github.com/stevengranter/wilderquest-sub002/internal/shared/apperr"
)

// ShareTokenHeader mirrors the progress routes: reads may authorize with a
// guest token instead of a session.
const ShareTokenHeader = "X-Share-Token"

func RegisterRoutes(r fiber.Router, svc *Service, guard *access.Guard, authMiddleware, optionalAuth fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation("invalid payload")
		}
		created, err := svc.CreateQuest(c.Context(), auth.UserID(c), req)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Get("/:questId", optionalAuth, func(c *fiber.Ctx) error {
		q, err := svc.GetQuestWithMappings(c.Context(), c.Params("questId"))
		if err != nil {
			return err
		}

		requester := access.Requester{UserID: auth.UserID(c), Token: c.Get(ShareTokenHeader)}
		meta := access.QuestMeta{ID: q.ID, OwnerID: q.UserID, Visibility: q.Visibility, Status: q.Status}
		if err := guard.CanRead(c.Context(), meta, requester); err != nil {
			return err
		}
		return c.JSON(q)
	})

	r.Put("/:questId", authMiddleware, func(c *fiber.Ctx) error {
		var patch UpdateRequest
		if err := c.BodyParser(&patch); err != nil {
			return apperr.Validation("invalid payload")
		}
		updated, err := svc.UpdateQuest(c.Context(), c.Params("questId"), auth.UserID(c), patch)
		if err != nil {
			return err
		}
		return c.JSON(updated)
	})
}
