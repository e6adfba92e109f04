package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdeck/internal/bookmarks"
	"github.com/MrSnakeDoc/linkdeck/internal/identity"
	"github.com/MrSnakeDoc/linkdeck/internal/index"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/store"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time      // for testing, defaults to time.Now
	AllowedHosts   []string              // Host headers allowed to access the server
	AllowedCIDRS   []string              // IPs allowed to access readyz/infra/reload endpoints
	AllowedOrigins []string              // Origins allowed for CORS and websocket upgrades
	TrustProxy     bool                  // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RequestTimeout time.Duration         // Timeout for REST routes (websocket excluded)
	ReadyWait      time.Duration         // How long a list request waits for the initial load
	RateBurst      int                   // Token bucket size per owner/IP
	RatePerMin     int                   // Token refill per owner/IP per minute
	RedisClient    *redis.Client         // Redis client connection (feed + revocations)
	Store          store.Store           // Record store backend
	Sessions       *index.MemoryIndex    // One live list per active owner
	Bookmarks      *bookmarks.Service    // Add / delete
	Verifier       *identity.Verifier    // Bearer token verification
	Revocations    *identity.Revocations // Sign-out list
	ResyncTrigger  chan struct{}         // Channel to trigger a resync of every active list
}
