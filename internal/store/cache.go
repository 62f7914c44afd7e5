package store

import (
	"context"
	"sync"
)

// Cache is the local, steady-state-lock-free receipt memoization
// layer: instruction-CID -> receipt-CID. It never evicts a mapping
// itself (the durable Repository below it is the never-delete source
// of truth); a backing process may still choose to cap this cache's
// size, but the core makes no such policy here.
type Cache interface {
	Lookup(instructionCID string) (receiptCID string, ok bool)
	Store(instructionCID, receiptCID string)
	// InFlight reports whether instructionCID is currently being
	// executed by this node, and if not, claims it until Done is
	// called. At most one execution per instruction-CID proceeds at a
	// time on a single node.
	InFlight(instructionCID string) (alreadyRunning bool, done func())
}

// MemoryCache is a concurrent, read-heavy map, lock-free on the fast
// path via sync.Map for lookups, with a small
// separate in-flight set protected by its own mutex for the
// once-per-instruction exclusion rule.
type MemoryCache struct {
	receipts sync.Map // instructionCID -> receiptCID

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewMemoryCache builds an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{inFlight: make(map[string]bool)}
}

func (c *MemoryCache) Lookup(instructionCID string) (string, bool) {
	v, ok := c.receipts.Load(instructionCID)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *MemoryCache) Store(instructionCID, receiptCID string) {
	c.receipts.Store(instructionCID, receiptCID)
}

func (c *MemoryCache) InFlight(instructionCID string) (bool, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight[instructionCID] {
		return true, func() {}
	}
	c.inFlight[instructionCID] = true
	return false, func() {
		c.mu.Lock()
		delete(c.inFlight, instructionCID)
		c.mu.Unlock()
	}
}

// ReceiptCache composes the local memoization Cache with the durable
// Repository: a lookup consults the in-memory map first and falls
// back to the database, warming the map on a durable hit so
// subsequent lookups stay lock-free.
type ReceiptCache struct {
	local Cache
	repo  *Repository
}

// NewReceiptCache wires a local cache in front of a durable repository.
func NewReceiptCache(local Cache, repo *Repository) *ReceiptCache {
	return &ReceiptCache{local: local, repo: repo}
}

// Lookup returns the receipt-CID memoized for instructionCID, checking
// the in-memory map before falling back to the durable store.
func (c *ReceiptCache) Lookup(ctx context.Context, instructionCID string) (string, bool, error) {
	if receiptCID, ok := c.local.Lookup(instructionCID); ok {
		return receiptCID, true, nil
	}

	receiptCID, ok, err := c.repo.LookupReceiptByInstruction(ctx, instructionCID)
	if err != nil {
		return "", false, err
	}
	if ok {
		c.local.Store(instructionCID, receiptCID)
	}
	return receiptCID, ok, nil
}

// InFlight delegates to the local cache's per-instruction exclusion.
func (c *ReceiptCache) InFlight(instructionCID string) (bool, func()) {
	return c.local.InFlight(instructionCID)
}

// Store memoizes instructionCID -> receiptCID locally. Durable
// persistence happens separately via Repository.PutReceipt, which the
// caller performs alongside this once the receipt itself is built.
func (c *ReceiptCache) Store(instructionCID, receiptCID string) {
	c.local.Store(instructionCID, receiptCID)
}
