package share

import "time"

type Share struct {
	ID        string     `json:"id"`
	QuestID   string     `json:"quest_id"`
	UserID    string     `json:"user_id"`
	Token     string     `json:"token"`
	GuestName *string    `json:"guest_name,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CreateRequest struct {
	GuestName *string    `json:"guest_name"`
	ExpiresAt *time.Time `json:"expires_at"`
}
