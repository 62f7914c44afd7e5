package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/ipvm-wg/homestar/internal/config"
	"github.com/ipvm-wg/homestar/internal/runner"
)

func testConfig() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{
			Name:        "homestar-test",
			Port:        7437,
			Environment: "test",
			LogLevel:    "error",
			LogFormat:   "json",
		},
		Network: config.NetworkConfig{
			PeerKeyType: "ed25519",
			PeerKeySeed: "bootstrap-test-seed",
			QuorumTarget: 1,
		},
		Sandbox: config.SandboxConfig{
			DefaultMemory:  4 << 30,
			DefaultTimeout: 100 * time.Second,
		},
		Scheduler: config.SchedulerConfig{
			WorkerConcurrency: 4,
			FetchRetryMax:     1,
			FetchRetryElapsed: time.Second,
		},
		Queue: config.QueueConfig{
			Type: "memory",
		},
	}
}

func TestSetupWithoutDBOrNetworkBuildsSandboxAndQueue(t *testing.T) {
	cfg := testConfig()
	c, err := Setup(context.Background(), "homestar-test", WithCustomConfig(cfg), WithoutDB(), WithoutNetwork())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer c.Shutdown(context.Background())

	if c.DB != nil {
		t.Fatal("expected DB to be skipped")
	}
	if c.Network != nil {
		t.Fatal("expected network to be skipped")
	}
	if c.Sandbox == nil {
		t.Fatal("expected sandbox to be built regardless of DB/network")
	}
	if c.Signer == nil {
		t.Fatal("expected signer to be loaded")
	}
	if _, ok := c.Queue.(*runner.MemoryQueue); !ok {
		t.Fatalf("expected a MemoryQueue, got %T", c.Queue)
	}
	// Runner depends on a durable repo; with DB skipped it stays nil
	// rather than half-wired.
	if c.Runner != nil {
		t.Fatal("expected Runner to stay nil without a durable store")
	}
}

func TestSetupUnknownQueueTypeFails(t *testing.T) {
	cfg := testConfig()
	cfg.Queue.Type = "kafka"
	_, err := Setup(context.Background(), "homestar-test", WithCustomConfig(cfg), WithoutDB(), WithoutNetwork())
	if err == nil {
		t.Fatal("expected an error for an unknown queue type")
	}
}

func TestSetupWithoutQueueLeavesQueueNil(t *testing.T) {
	cfg := testConfig()
	c, err := Setup(context.Background(), "homestar-test", WithCustomConfig(cfg), WithoutDB(), WithoutNetwork(), WithoutQueue())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer c.Shutdown(context.Background())

	if c.Queue != nil {
		t.Fatalf("expected queue to be nil, got %T", c.Queue)
	}
}

func TestShutdownAfterSetupSucceeds(t *testing.T) {
	cfg := testConfig()
	c, err := Setup(context.Background(), "homestar-test", WithCustomConfig(cfg), WithoutDB(), WithoutNetwork())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
