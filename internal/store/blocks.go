package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PutBlock stores raw bytes under their own CID, the local half of the
// "block-store collaborator" a Resource with an ipfs:// URI is fetched
// through (§4.3). A node only resolves an ipfs:// resource if the
// blocks table already holds the block; nothing in this module's HTTP
// surface or fetcher calls PutBlock, and there is no bitswap/graphsync
// retrieval from the wider network; see DESIGN.md.
func (r *Repository) PutBlock(ctx context.Context, cidStr string, data []byte) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO blocks (cid, bytes) VALUES ($1, $2)
		ON CONFLICT (cid) DO NOTHING
	`, cidStr, data)
	if err != nil {
		return fmt.Errorf("store: insert block: %w", err)
	}
	return nil
}

// GetBlock reads back a block by CID, satisfying sandbox.BlockStore.
func (r *Repository) GetBlock(ctx context.Context, cidStr string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow(ctx, `SELECT bytes FROM blocks WHERE cid = $1`, cidStr).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("store: block %s not found", cidStr)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get block: %w", err)
	}
	return data, nil
}
