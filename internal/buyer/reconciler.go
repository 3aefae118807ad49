package buyer

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"intake/internal/catalog"
	"intake/internal/platform/metrics"
	dErrors "intake/pkg/domain-errors"
)

// Reconciled is the outcome of resolving one buyer row: either the id of an
// existing record matched by national ID, or the id of a freshly created one.
type Reconciled struct {
	Row         Row
	ID          catalog.ItemID
	WasExisting bool
}

// Reconciler finds or creates buyer records by natural key.
//
// Dedup by national ID is best-effort: a failed lookup logs and falls
// through to creation rather than failing the row. A failed creation fails
// the whole batch; already-created rows are not retracted, the operator
// retries the submission.
type Reconciler struct {
	client       catalog.Client
	schema       catalog.Schema
	phoneCountry string
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewReconciler creates a Reconciler. phoneCountry is the country short-code
// stored alongside buyer phone numbers. metrics may be nil.
func NewReconciler(client catalog.Client, schema catalog.Schema, phoneCountry string, logger *slog.Logger, m *metrics.Metrics) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		client:       client,
		schema:       schema,
		phoneCountry: phoneCountry,
		logger:       logger,
		metrics:      m,
	}
}

// Reconcile resolves every row concurrently and returns results in input row
// order. Rows reconcile independently: two rows sharing a novel national ID
// race their lookups and may both create a record (accepted behavior, see
// DESIGN.md). Any creation failure fails the batch.
func (r *Reconciler) Reconcile(ctx context.Context, rows []Row) ([]Reconciled, error) {
	results := make([]Reconciled, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	for i, row := range rows {
		g.Go(func() error {
			resolved, err := r.reconcileRow(gctx, i, row)
			if err != nil {
				return err
			}
			results[i] = resolved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Reconciler) reconcileRow(ctx context.Context, index int, row Row) (Reconciled, error) {
	if key := strings.TrimSpace(row.NationalID); key != "" {
		id, found, err := r.client.FindByKey(ctx, r.schema.Boards.Buyers, r.schema.Columns.BuyerIDNumber, key)
		if err != nil {
			// Dedup is best-effort; a failed lookup is not fatal for the row.
			r.logger.WarnContext(ctx, "buyer lookup failed, proceeding to create",
				"row", index, "error", err)
		} else if found {
			r.metrics.IncBuyerReconciled("found")
			return Reconciled{Row: row, ID: id, WasExisting: true}, nil
		}
	}

	values := make(map[catalog.ColumnID]any)
	if v := strings.TrimSpace(row.NationalID); v != "" {
		values[r.schema.Columns.BuyerIDNumber] = v
	}
	if v := strings.TrimSpace(row.Phone); v != "" {
		values[r.schema.Columns.BuyerPhone] = catalog.Phone(v, r.phoneCountry)
	}
	if v := strings.TrimSpace(row.Email); v != "" {
		values[r.schema.Columns.BuyerEmail] = catalog.Email(v)
	}

	id, err := r.client.CreateItem(ctx, r.schema.Boards.Buyers, strings.TrimSpace(row.FullName), values)
	if err != nil {
		return Reconciled{}, dErrors.Wrap(err, dErrors.CodeRemote, "failed to create buyer record")
	}
	r.metrics.IncBuyerReconciled("created")
	return Reconciled{Row: row, ID: id, WasExisting: false}, nil
}
