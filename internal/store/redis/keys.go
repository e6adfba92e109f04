package redis

const (
	// KeyPrefixBookmark is the prefix for bookmark keys
	KeyPrefixBookmark = "linkdeck:bookmark:"
	// KeyPrefixOwner is the prefix for per-owner keys
	KeyPrefixOwner = "linkdeck:owner:"
)

// BookmarkKey returns the Redis key holding a bookmark's JSON
func BookmarkKey(id string) string {
	return KeyPrefixBookmark + id
}

// OwnerIndexKey returns the sorted set of an owner's bookmark ids,
// scored by created_at in microseconds
func OwnerIndexKey(ownerID string) string {
	return KeyPrefixOwner + ownerID + ":bookmarks"
}
