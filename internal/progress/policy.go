package progress

import "github.com/stevengranter/wilderquest-sub002/internal/quest"

// CanClaim reports whether displayName may record a find for a mapping,
// given the display names that already hold an entry for it.
//
// Cooperative quests accept any number of claimants. Competitive quests
// accept a claim only when nobody else holds one; re-claiming one's own
// find stays allowed so the write remains idempotent. The ledger itself
// does not enforce this; callers check before writing.
func CanClaim(mode string, claimants []string, displayName string) bool {
	if mode != quest.ModeCompetitive {
		return true
	}
	for _, name := range claimants {
		if name != displayName {
			return false
		}
	}
	return true
}
