package taxa

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/stevengranter/wilderquest-sub002/internal/shared/apperr"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/:taxonId", func(c *fiber.Ctx) error {
		taxonID, err := strconv.ParseInt(c.Params("taxonId"), 10, 64)
		if err != nil {
			return apperr.Validation("taxon id must be numeric")
		}
		taxon, err := svc.Lookup(c.Context(), taxonID)
		if err != nil {
			return err
		}
		return c.JSON(taxon)
	})
}
