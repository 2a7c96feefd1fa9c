package driver

import (
	"strings"
	"time"

	"go.tessdb.dev/client/engine"
)

// Mode selects how a Connection acquires its engine handles.
type Mode string

const (
	// ModeLocal opens a database file on the local filesystem.
	ModeLocal Mode = "local"
	// ModeMemory opens a private in-memory database.
	ModeMemory Mode = "memory"
	// ModeRemote connects to a remote primary over the transport
	// protocol. It requires an engine implementation speaking that
	// protocol.
	ModeRemote Mode = "remote"
	// ModeReplica opens a local database file kept in sync with a
	// remote primary.
	ModeReplica Mode = "replica"
)

// CacheConfig are prepared-statement cache toggles.
type CacheConfig struct {
	Disable  bool `long:"disable" description:"Disable the prepared-statement cache"`
	Capacity int  `long:"capacity" default:"100" description:"Maximum number of cached prepared statements"`
}

// Config is the connection configuration surface.
type Config struct {
	// Path locates the data source: a file path, or a URL for remote
	// primaries.
	Path string `long:"path" description:"Path or URL of the database"`
	// Mode of handle acquisition.
	Mode Mode `long:"mode" default:"local" choice:"local" choice:"memory" choice:"remote" choice:"replica" description:"Connection mode"`
	// AuthToken authenticates remote and replica connections.
	AuthToken string `long:"auth-token" env:"TESSDB_AUTH_TOKEN" description:"Authentication token for remote primaries"`
	// EncryptionKey optionally encrypts the database at rest.
	EncryptionKey string `long:"encryption-key" env:"TESSDB_ENCRYPTION_KEY" description:"At-rest encryption key"`
	// SyncURL is the remote primary tracked by an embedded replica.
	SyncURL string `long:"sync-url" description:"URL of the primary which an embedded replica tracks"`
	// SyncInterval enables background replica synchronization when
	// positive.
	SyncInterval time.Duration `long:"sync-interval" default:"0s" description:"Interval of background replica synchronization (0 disables)"`
	// BusyTimeout bounds engine blocking on a locked database.
	BusyTimeout time.Duration `long:"busy-timeout" default:"5s" description:"How long the engine may block on a locked database"`

	Cache CacheConfig `group:"Cache" namespace:"cache"`
}

// NewConfig returns a Config for a local database at path, with caching
// enabled at the default capacity.
func NewConfig(path string) Config {
	return Config{
		Path:        path,
		Mode:        ModeLocal,
		BusyTimeout: 5 * time.Second,
		Cache:       CacheConfig{Capacity: DefaultCacheCapacity},
	}
}

// NewMemoryConfig returns a Config for a private in-memory database.
func NewMemoryConfig() Config {
	var cfg = NewConfig(":memory:")
	cfg.Mode = ModeMemory
	return cfg
}

// DefaultCacheCapacity is the statement-cache capacity used when none is
// configured.
const DefaultCacheCapacity = 100

// Validate returns a ValidationError if the Config is malformed.
func (cfg Config) Validate() error {
	switch cfg.Mode {
	case ModeLocal, ModeMemory, ModeRemote, ModeReplica:
		// Pass.
	default:
		return validationErrorf("unknown mode %q", cfg.Mode)
	}
	if cfg.Mode != ModeMemory && strings.TrimSpace(cfg.Path) == "" {
		return validationErrorf("path is required for mode %q", cfg.Mode)
	}
	if cfg.Mode == ModeRemote && !strings.Contains(cfg.Path, "://") {
		return validationErrorf("remote path %q must be a URL", cfg.Path)
	}
	if cfg.Mode == ModeReplica && strings.TrimSpace(cfg.SyncURL) == "" {
		return validationErrorf("sync-url is required for mode %q", cfg.Mode)
	}
	if cfg.Mode != ModeReplica && cfg.SyncInterval != 0 {
		return validationErrorf("sync-interval is only valid for mode %q", ModeReplica)
	}
	if cfg.SyncInterval < 0 {
		return validationErrorf("sync-interval must not be negative (got %s)", cfg.SyncInterval)
	}
	if cfg.BusyTimeout < 0 {
		return validationErrorf("busy-timeout must not be negative (got %s)", cfg.BusyTimeout)
	}
	if !cfg.Cache.Disable && cfg.Cache.Capacity < 1 {
		return validationErrorf("cache capacity must be positive (got %d)", cfg.Cache.Capacity)
	}
	return nil
}

// openConfig maps the Config onto the engine-level acquisition recipe of
// its Mode.
func (cfg Config) openConfig() engine.OpenConfig {
	var oc = engine.OpenConfig{
		EncryptionKey: cfg.EncryptionKey,
		BusyTimeoutMS: int(cfg.BusyTimeout / time.Millisecond),
	}
	switch cfg.Mode {
	case ModeMemory:
		oc.Path = ":memory:"
	case ModeRemote:
		oc.Path, oc.AuthToken = cfg.Path, cfg.AuthToken
	case ModeReplica:
		oc.Path, oc.SyncURL, oc.AuthToken = cfg.Path, cfg.SyncURL, cfg.AuthToken
	default: // ModeLocal
		oc.Path = cfg.Path
	}
	return oc
}
