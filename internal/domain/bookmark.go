package domain

import "time"

// Bookmark is a saved link owned by exactly one user.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is assigned by the store at creation.
	// It is the reconciliation key for live lists.
	ID string `json:"id"`

	// OwnerID is the identity provider's user id.
	// It is never exposed across owners.
	OwnerID string `json:"owner_id"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// Title is non-empty and trimmed.
	Title string `json:"title"`

	// URL is absolute with an explicit http or https scheme.
	// Example: https://example.com
	URL string `json:"url"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is assigned by the store and defines list order (newest first).
	CreatedAt time.Time `json:"created_at"`
}

// Newer reports whether a sorts before b in a live list:
// created_at descending, then id descending.
func Newer(a, b Bookmark) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
