package bootstrap

import (
	"github.com/ipvm-wg/homestar/internal/config"
	"github.com/ipvm-wg/homestar/internal/logging"
	"github.com/ipvm-wg/homestar/internal/scheduler"
)

// Option configures Setup.
type Option func(*options)

type options struct {
	skipDB        bool
	skipQueue     bool
	skipNetwork   bool
	skipMigration bool
	customLogger  *logging.Logger
	customConfig  *config.Config
	signatures    scheduler.SignatureResolver
}

// WithoutDB skips the durable store entirely — useful for an
// in-memory-only test harness. Implies WithoutMigration.
func WithoutDB() Option {
	return func(o *options) { o.skipDB = true }
}

// WithoutQueue skips the event queue, leaving Components.Queue nil;
// the runner still works but never relays notifications cross-process.
func WithoutQueue() Option {
	return func(o *options) { o.skipQueue = true }
}

// WithoutNetwork skips the libp2p host, running this node local-only:
// no gossip, no DHT replay, no peer discovery.
func WithoutNetwork() Option {
	return func(o *options) { o.skipNetwork = true }
}

// WithoutMigration skips running goose migrations on startup, for a
// deployment where migrations are applied out-of-band.
func WithoutMigration() Option {
	return func(o *options) { o.skipMigration = true }
}

// WithCustomLogger uses log instead of building one from config.
func WithCustomLogger(log *logging.Logger) Option {
	return func(o *options) { o.customLogger = log }
}

// WithCustomConfig uses cfg instead of loading one from the environment.
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) { o.customConfig = cfg }
}

// WithSignatureResolver supplies the WIT signature table the scheduler
// type-directs argument/result translation from. Without this option
// Setup builds an empty scheduler.StaticSignatures, which resolves no
// function and so fails every task dispatch — a deployment must always
// supply one for its known set of Wasm components.
func WithSignatureResolver(sigs scheduler.SignatureResolver) Option {
	return func(o *options) { o.signatures = sigs }
}

func defaultOptions() *options {
	return &options{}
}
