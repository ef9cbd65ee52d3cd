package share

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stevengranter/wilderquest-sub002/internal/auth"
	"github.com/stevengranter/wilderquest-sub002/internal/shared/apperr"
)

// RegisterRoutes attaches the owner-facing share management routes to the
// quests group. Token resolution and deletion live on the quest-sharing
// surface alongside progress.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/:questId/shares", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation("invalid payload")
		}
		created, err := svc.Create(c.Context(), c.Params("questId"), auth.UserID(c), req)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Get("/:questId/shares", authMiddleware, func(c *fiber.Ctx) error {
		shares, err := svc.List(c.Context(), c.Params("questId"), auth.UserID(c))
		if err != nil {
			return err
		}
		if shares == nil {
			shares = []Share{}
		}
		return c.JSON(shares)
	})
}
