package share

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/stevengranter/wilderquest-sub002/internal/auth"
	"github.com/stevengranter/wilderquest-sub002/internal/shared/apperr"
)

func newTestApp(mock pgxmock.PgxPoolIface, userID string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler})
	identity := func(c *fiber.Ctx) error {
		c.Locals(auth.UserIDKey, userID)
		return c.Next()
	}
	RegisterRoutes(app.Group("/quests"), NewService(mock), identity)
	return app
}

func TestCreateShareHandler(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT user_id FROM quests`).
		WithArgs("quest-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("owner-1"))
	mock.ExpectQuery(`INSERT INTO shares`).
		WithArgs(pgxmock.AnyArg(), "quest-1", "owner-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))

	body, _ := json.Marshal(CreateRequest{})
	req := httptest.NewRequest(http.MethodPost, "/quests/quest-1/shares", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := newTestApp(mock, "owner-1").Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %v %v", resp.StatusCode, err)
	}

	var created Share
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Token == "" || created.QuestID != "quest-1" {
		t.Fatalf("unexpected share payload %+v", created)
	}
}

func TestCreateShareHandlerNotOwner(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT user_id FROM quests`).
		WithArgs("quest-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("owner-1"))

	req := httptest.NewRequest(http.MethodPost, "/quests/quest-1/shares", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := newTestApp(mock, "intruder").Test(req)
	if err != nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v %v", resp.StatusCode, err)
	}
}

func TestListSharesHandler(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT user_id FROM quests`).
		WithArgs("quest-1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("owner-1"))
	mock.ExpectQuery(`SELECT id, quest_id, user_id, token, guest_name, expires_at, created_at, updated_at`).
		WithArgs("quest-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "quest_id", "user_id", "token", "guest_name", "expires_at", "created_at", "updated_at",
		}).AddRow("share-1", "quest-1", "owner-1", "tok", nil, nil, time.Now(), time.Now()))

	resp, err := newTestApp(mock, "owner-1").Test(httptest.NewRequest(http.MethodGet, "/quests/quest-1/shares", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %v %v", resp.StatusCode, err)
	}

	var shares []Share
	if err := json.NewDecoder(resp.Body).Decode(&shares); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(shares) != 1 || shares[0].ID != "share-1" {
		t.Fatalf("unexpected shares %+v", shares)
	}
}
