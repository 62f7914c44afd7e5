package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/jackc/pgx/v5"

	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/ipld"
)

// Repository is the durable store collaborator described by §6: a
// receipts table, a workflows progress table, and their join table.
// Writes are idempotent per receipt-CID; the core never deletes a
// receipt.
type Repository struct {
	db *DB
}

// NewRepository wraps a DB with the receipt/workflow durable-store
// operations.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// PutReceipt inserts r if its CID is not already present. The insert
// is a no-op on conflict, which is what makes a repeated write of the
// same receipt-CID idempotent rather than an error.
func (r *Repository) PutReceipt(ctx context.Context, receiptCID string, receipt invocation.Receipt) error {
	out, err := ipld.EncodeDagCBOR(receipt.Out.ToValue())
	if err != nil {
		return fmt.Errorf("store: encode receipt out: %w", err)
	}
	instr, err := ipld.EncodeDagCBOR(receipt.Ran.ToValue())
	if err != nil {
		return fmt.Errorf("store: encode receipt ran: %w", err)
	}
	var metaBytes []byte
	if len(receipt.Meta) > 0 {
		metaVals := make([]ipld.Value, 0, len(receipt.Meta))
		for k, v := range receipt.Meta {
			metaVals = append(metaVals, ipld.MapFromGo(map[string]ipld.Value{k: v}))
		}
		metaBytes, err = ipld.EncodeDagCBOR(ipld.List(metaVals...))
		if err != nil {
			return fmt.Errorf("store: encode receipt meta: %w", err)
		}
	}

	prf := make([]string, len(receipt.Prf))
	for i, c := range receipt.Prf {
		prf[i] = c.String()
	}

	var iss *string
	if receipt.Iss != nil {
		s := string(*receipt.Iss)
		iss = &s
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO receipts (cid, ran, instruction, out, meta, iss, prf, version, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8)
		ON CONFLICT (cid) DO NOTHING
	`, receiptCID, receipt.Ran.CID.String(), instr, out, metaBytes, iss, prf, receipt.Signature)
	if err != nil {
		return fmt.Errorf("store: insert receipt: %w", err)
	}
	return nil
}

// LookupReceiptByInstruction implements the scheduler's memoization
// check: instruction-CID -> receipt-CID. The earliest-written receipt
// for that instruction wins, since a second worker's receipt for an
// already-memoized instruction is a corroborating duplicate rather
// than a replacement.
func (r *Repository) LookupReceiptByInstruction(ctx context.Context, instructionCID string) (string, bool, error) {
	var cid string
	err := r.db.QueryRow(ctx, `
		SELECT cid FROM receipts WHERE ran = $1 ORDER BY created_at ASC LIMIT 1
	`, instructionCID).Scan(&cid)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: lookup receipt by instruction: %w", err)
	}
	return cid, true, nil
}

// GetReceipt reads back a full receipt by its own CID, used by the
// scheduler to recover the Out value of a cache/DHT hit so downstream
// promise selectors have something to substitute.
func (r *Repository) GetReceipt(ctx context.Context, receiptCID string) (invocation.Receipt, error) {
	var ran, iss sql.NullString
	var instr, out, meta, signature []byte
	var prf []string

	err := r.db.QueryRow(ctx, `
		SELECT ran, instruction, out, meta, iss, prf, signature FROM receipts WHERE cid = $1
	`, receiptCID).Scan(&ran, &instr, &out, &meta, &iss, &prf, &signature)
	if errors.Is(err, pgx.ErrNoRows) {
		return invocation.Receipt{}, fmt.Errorf("store: receipt %s not found", receiptCID)
	}
	if err != nil {
		return invocation.Receipt{}, fmt.Errorf("store: get receipt: %w", err)
	}

	ranCID, err := cid.Decode(ran.String)
	if err != nil {
		return invocation.Receipt{}, fmt.Errorf("store: decode receipt ran cid: %w", err)
	}

	outVal, err := ipld.DecodeDagCBOR(out)
	if err != nil {
		return invocation.Receipt{}, fmt.Errorf("store: decode receipt out: %w", err)
	}
	outcome, err := outcomeFromValue(outVal)
	if err != nil {
		return invocation.Receipt{}, err
	}

	prfCIDs := make([]cid.Cid, 0, len(prf))
	for _, p := range prf {
		c, err := cid.Decode(p)
		if err != nil {
			return invocation.Receipt{}, fmt.Errorf("store: decode receipt prf cid: %w", err)
		}
		prfCIDs = append(prfCIDs, c)
	}

	receipt := invocation.Receipt{
		Ran:       invocation.Pointer{CID: ranCID},
		Out:       outcome,
		Prf:       prfCIDs,
		Signature: signature,
	}
	if iss.Valid {
		did := invocation.IssuerDID(iss.String)
		receipt.Iss = &did
	}
	_ = meta // meta is stored for audit but not reconstructed into a typed map here
	return receipt, nil
}

// PutWorkflow upserts a workflow's progress record.
func (r *Repository) PutWorkflow(ctx context.Context, info WorkflowInfo) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO workflows (cid, num_tasks, resources, status, retries, last_error, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cid) DO UPDATE SET
			status = EXCLUDED.status,
			retries = EXCLUDED.retries,
			last_error = EXCLUDED.last_error,
			completed_at = EXCLUDED.completed_at
	`, info.CID, info.NumTasks, info.Resources, string(info.Status), info.Retries, info.LastError, info.CompletedAt)
	if err != nil {
		return fmt.Errorf("store: upsert workflow: %w", err)
	}
	return nil
}

// GetWorkflow reads a workflow's progress record, with progress_count
// derived from the join table rather than stored redundantly.
func (r *Repository) GetWorkflow(ctx context.Context, workflowCID string) (WorkflowInfo, error) {
	var info WorkflowInfo
	var status string
	err := r.db.QueryRow(ctx, `
		SELECT cid, num_tasks, resources, created_at, completed_at, status, retries, last_error
		FROM workflows WHERE cid = $1
	`, workflowCID).Scan(&info.CID, &info.NumTasks, &info.Resources, &info.CreatedAt, &info.CompletedAt, &status, &info.Retries, &info.LastError)
	if err != nil {
		return WorkflowInfo{}, fmt.Errorf("store: get workflow: %w", err)
	}
	info.Status = WorkflowStatus(status)

	err = r.db.QueryRow(ctx, `SELECT count(*) FROM workflows_receipts WHERE workflow_cid = $1`, workflowCID).Scan(&info.ProgressCount)
	if err != nil {
		return WorkflowInfo{}, fmt.Errorf("store: count workflow progress: %w", err)
	}
	return info, nil
}

// LinkReceipt records a receipt's membership in a workflow.
func (r *Repository) LinkReceipt(ctx context.Context, workflowCID, receiptCID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO workflows_receipts (workflow_cid, receipt_cid)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, workflowCID, receiptCID)
	if err != nil {
		return fmt.Errorf("store: link receipt to workflow: %w", err)
	}
	return nil
}

// MarkStuck transitions a workflow to Stuck, recording the error that
// caused the transition; the retry counter is incremented by Retry.
func (r *Repository) MarkStuck(ctx context.Context, workflowCID, lastError string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE workflows SET status = $2, last_error = $3 WHERE cid = $1
	`, workflowCID, string(WorkflowStuck), lastError)
	if err != nil {
		return fmt.Errorf("store: mark workflow stuck: %w", err)
	}
	return nil
}

// Retry transitions a stuck workflow back to Running and increments
// its retry counter, per the operator-initiated retry transition.
func (r *Repository) Retry(ctx context.Context, workflowCID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE workflows SET status = $2, retries = retries + 1
		WHERE cid = $1 AND status = $3
	`, workflowCID, string(WorkflowRunning), string(WorkflowStuck))
	if err != nil {
		return fmt.Errorf("store: retry workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: workflow %s is not stuck", workflowCID)
	}
	return nil
}

// outcomeFromValue decodes the 2-element [tag, value] list a Receipt's
// Out field is canonically encoded as back into an invocation.Outcome.
func outcomeFromValue(v ipld.Value) (invocation.Outcome, error) {
	items, ok := v.AsList()
	if !ok || len(items) != 2 {
		return invocation.Outcome{}, fmt.Errorf("store: malformed receipt outcome encoding")
	}
	tag, ok := items[0].AsString()
	if !ok {
		return invocation.Outcome{}, fmt.Errorf("store: receipt outcome tag is not a string")
	}
	return invocation.Outcome{Tag: invocation.OutcomeTag(tag), Value: items[1]}, nil
}

// MarkCompleted transitions a workflow to Completed and stamps
// completed_at, used once progress_count reaches num_tasks.
func (r *Repository) MarkCompleted(ctx context.Context, workflowCID string) error {
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		UPDATE workflows SET status = $2, completed_at = $3 WHERE cid = $1
	`, workflowCID, string(WorkflowCompleted), now)
	if err != nil {
		return fmt.Errorf("store: mark workflow completed: %w", err)
	}
	return nil
}
