package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ipvm-wg/homestar/internal/config"
	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/logging"
	"github.com/ipvm-wg/homestar/internal/network"
	"github.com/ipvm-wg/homestar/internal/runner"
	"github.com/ipvm-wg/homestar/internal/sandbox"
	"github.com/ipvm-wg/homestar/internal/scheduler"
	"github.com/ipvm-wg/homestar/internal/store"
)

// Setup initializes every component a homestar node needs, in
// dependency order, and returns them ready to run. Call Shutdown when
// the node stops to release everything in reverse order.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	c := &Components{}

	// 1. Configuration.
	if options.customConfig != nil {
		c.Config = options.customConfig
	} else {
		cfg, err := config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load config: %w", err)
		}
		c.Config = cfg
	}

	// 2. Logging.
	if options.customLogger != nil {
		c.Logger = options.customLogger
	} else {
		c.Logger = logging.New(c.Config.Service.LogLevel, c.Config.Service.LogFormat)
	}
	c.Logger.Info("initializing node", "service", serviceName, "environment", c.Config.Service.Environment)

	// 3. Durable store.
	if !options.skipDB {
		c.Logger.Info("connecting to database")
		db, err := store.NewDB(ctx, c.Config, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: connect database: %w", err)
		}
		c.DB = db
		c.addCleanup(func() error {
			c.DB.Close()
			return nil
		})

		if !options.skipMigration {
			c.Logger.Info("applying migrations")
			if err := store.Migrate(c.Config.DatabaseURL()); err != nil {
				c.Shutdown(ctx)
				return nil, fmt.Errorf("bootstrap: apply migrations: %w", err)
			}
		}

		c.Repo = store.NewRepository(c.DB)
		c.Cache = store.NewReceiptCache(store.NewMemoryCache(), c.Repo)
	}

	// 4. Event queue.
	if !options.skipQueue {
		c.Logger.Info("initializing queue", "type", c.Config.Queue.Type)
		switch c.Config.Queue.Type {
		case "memory":
			c.Queue = runner.NewMemoryQueue(c.Logger)
		case "redis":
			client, err := newRedisClient(c.Config.Queue.RedisAddr)
			if err != nil {
				c.Shutdown(ctx)
				return nil, fmt.Errorf("bootstrap: connect redis: %w", err)
			}
			c.Queue = runner.NewRedisQueue(client, c.Logger)
		default:
			c.Shutdown(ctx)
			return nil, fmt.Errorf("bootstrap: unknown queue type %q", c.Config.Queue.Type)
		}
		c.addCleanup(c.Queue.Close)
	}

	// 5. Node identity.
	signer, err := invocation.LoadSigner(
		invocation.KeyType(c.Config.Network.PeerKeyType),
		c.Config.Network.PeerKeyPath,
		c.Config.Network.PeerKeySeed,
	)
	if err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("bootstrap: load signer: %w", err)
	}
	c.Signer = signer

	// 6. Sandbox: a metering wasmtime engine plus a resource fetcher
	// backed by the durable store's block table for ipfs:// resources.
	c.Engine = sandbox.NewEngine()
	c.addCleanup(func() error {
		c.Engine.Close()
		return nil
	})
	var blocks sandbox.BlockStore
	if c.Repo != nil {
		blocks = c.Repo
	}
	fetcher := sandbox.NewCachingFetcher(blocks, http.DefaultClient)
	c.Sandbox = sandbox.NewSandbox(c.Engine, fetcher)

	// 7. Network (gossip + DHT), unless disabled.
	if !options.skipNetwork && c.Config.Features.EnableDHT {
		c.Logger.Info("starting network host")
		c.NetworkBus = network.NewBus()
		host, err := network.NewHost(ctx, &c.Config.Network, c.Signer.PrivKey(), c.Logger, c.NetworkBus)
		if err != nil {
			c.Shutdown(ctx)
			return nil, fmt.Errorf("bootstrap: start network host: %w", err)
		}
		c.Network = host
		c.addCleanup(c.Network.Close)
	}

	// 8. Signature resolver: the WIT parameter/return types the
	// interpreter type-directs argument translation from. A deployment
	// must supply its own table via WithSignatureResolver for every
	// Wasm component it intends to run; an empty default still lets the
	// node start, but every dispatch fails signature resolution until
	// one is registered.
	sigs := options.signatures
	if sigs == nil {
		sigs = scheduler.NewStaticSignatures()
	}

	// 9. Runner: the top-level supervisor tying every other component
	// together.
	if c.Repo != nil {
		var net scheduler.Network
		if c.Network != nil {
			net = c.Network
		}
		c.Runner = runner.New(c.Repo, c.Cache, net, netHost(c.Network), c.Sandbox, sigs, c.Signer, c.Queue, c.Logger, c.Config.Scheduler, c.Config.Network.DHTLookupTimeout)
	}

	c.Logger.Info("node initialization complete",
		"db", c.DB != nil,
		"queue", c.Queue != nil,
		"network", c.Network != nil,
	)

	return c, nil
}

// netHost adapts a possibly-nil *network.Host to the runner.Host
// interface, keeping a nil *network.Host from becoming a non-nil
// interface value (the classic nil-interface-vs-nil-pointer trap).
func netHost(h *network.Host) runner.Host {
	if h == nil {
		return nil
	}
	return h
}

// MustSetup is like Setup but panics on error, for a main() that has
// no sensible recovery path from a failed startup.
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	c, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("bootstrap: setup %s: %v", serviceName, err))
	}
	return c
}
