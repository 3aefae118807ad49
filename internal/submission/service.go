// Package submission validates the aggregate form, reconciles buyers, and
// creates the communication record linking buyers to the selected units.
package submission

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"intake/internal/buyer"
	"intake/internal/cascade"
	"intake/internal/catalog"
	"intake/internal/notice"
	"intake/internal/platform/metrics"
	"intake/internal/platform/middleware"
	"intake/internal/submission/events"
	"intake/internal/submission/journal"
	dErrors "intake/pkg/domain-errors"
)

// Form is the aggregate submission input. Owned by the UI layer; the
// orchestrator receives it by value and never retains it.
type Form struct {
	Selection  cascade.Selection `json:"selection"`
	Buyers     []buyer.Row       `json:"buyers"`
	Attachment json.RawMessage   `json:"attachment,omitempty"`
}

// Result reports a successful submission.
type Result struct {
	CommunicationID catalog.ItemID    `json:"communication_id"`
	Buyers          []buyer.Reconciled `json:"-"`
	BuyerIDs        []catalog.ItemID  `json:"buyer_ids"`
}

// communicationNamePrefix starts every communication record name; the rest
// is the joined buyer names.
const communicationNamePrefix = "New inquiry - "

// Orchestrator runs the submit flow end to end.
type Orchestrator struct {
	client     catalog.Client
	schema     catalog.Schema
	reconciler *buyer.Reconciler
	policy     buyer.Policy
	notifier   notice.Notifier
	journal    journal.Store
	events     events.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithJournal enables submission journaling.
func WithJournal(store journal.Store) Option {
	return func(o *Orchestrator) { o.journal = store }
}

// WithEvents enables submission event publishing.
func WithEvents(p events.Publisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithNotifier overrides the notice channel.
func WithNotifier(n notice.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// New creates an Orchestrator.
func New(client catalog.Client, schema catalog.Schema, reconciler *buyer.Reconciler, policy buyer.Policy, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		client:     client,
		schema:     schema,
		reconciler: reconciler,
		policy:     policy,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = notice.NewLogNotifier(logger)
	}
	return o
}

// Submit validates the form, reconciles buyers, and creates the
// communication record. Every failure surfaces exactly one operator notice:
// validation messages verbatim, remote failures as a generic retryable
// message. Buyer records created before a later failure are not retracted;
// the operator retries the whole submission.
func (o *Orchestrator) Submit(ctx context.Context, form Form) (*Result, error) {
	if err := o.validate(form); err != nil {
		o.metrics.IncSubmission("rejected")
		o.record(ctx, form, nil, "", journal.OutcomeRejected, err.Error())
		o.notifier.Notify(ctx, notice.Notice{
			Message:   dErrors.MessageOf(err),
			Type:      notice.TypeError,
			TimeoutMS: 3000,
		})
		return nil, err
	}

	rows := dropEmptyRows(form.Buyers)
	reconciled, err := o.reconciler.Reconcile(ctx, rows)
	if err != nil {
		return nil, o.fail(ctx, form, err, "buyer reconciliation failed")
	}

	buyerIDs := make([]catalog.ItemID, len(reconciled))
	names := make([]string, len(reconciled))
	for i, rb := range reconciled {
		buyerIDs[i] = rb.ID
		names[i] = strings.TrimSpace(rb.Row.FullName)
	}

	values := o.communicationValues(form, buyerIDs)
	name := communicationNamePrefix + strings.Join(names, ", ")
	commID, err := o.client.CreateItem(ctx, o.schema.Boards.Communications, name, values)
	if err != nil {
		return nil, o.fail(ctx, form, err, "communication record creation failed")
	}

	o.metrics.IncSubmission("accepted")
	o.record(ctx, form, buyerIDs, commID, journal.OutcomeAccepted, "")
	o.logger.InfoContext(ctx, "submission accepted",
		"communication_id", commID,
		"buyers", len(buyerIDs),
		"project_id", form.Selection.ProjectID,
	)
	return &Result{CommunicationID: commID, Buyers: reconciled, BuyerIDs: buyerIDs}, nil
}

// validate applies the business rules in fixed order; the first failure
// wins and is surfaced verbatim.
func (o *Orchestrator) validate(form Form) error {
	sel := form.Selection
	switch {
	case sel.ProjectID == "":
		return dErrors.New(dErrors.CodeValidation, "a project must be selected")
	case sel.BuildingID == "":
		return dErrors.New(dErrors.CodeValidation, "a building must be selected")
	case sel.ApartmentID == "":
		return dErrors.New(dErrors.CodeValidation, "an apartment must be selected")
	}

	if len(form.Buyers) == 0 || form.Buyers[0].IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "the first buyer row is required")
	}
	if missing := form.Buyers[0].Missing(o.policy); len(missing) > 0 {
		return dErrors.Newf(dErrors.CodeValidation, "buyer row 0 is incomplete: missing %s", joinFields(missing))
	}

	for i, row := range form.Buyers {
		if row.IsEmpty() {
			continue
		}
		if missing := row.Missing(o.policy); len(missing) > 0 {
			return dErrors.Newf(dErrors.CodeValidation, "buyer row %d is incomplete: missing %s", i, joinFields(missing))
		}
	}

	for i, row := range form.Buyers {
		if row.IsEmpty() {
			continue
		}
		if id := strings.TrimSpace(row.NationalID); id != "" && !buyer.ValidNationalID(id) {
			return dErrors.Newf(dErrors.CodeValidation, "buyer row %d has an invalid national ID", i)
		}
		if phone := strings.TrimSpace(row.Phone); phone != "" && !buyer.ValidPhone(phone) {
			return dErrors.Newf(dErrors.CodeValidation, "buyer row %d has an invalid phone number", i)
		}
		if email := strings.TrimSpace(row.Email); email != "" && !buyer.ValidEmail(email) {
			return dErrors.Newf(dErrors.CodeValidation, "buyer row %d has an invalid email address", i)
		}
	}
	return nil
}

// communicationValues builds the fixed attribute mapping of the linking
// record. The apartment selection is stored under the building relation
// column; downstream boards depend on that mapping, so it is reproduced
// exactly.
func (o *Orchestrator) communicationValues(form Form, buyerIDs []catalog.ItemID) map[catalog.ColumnID]any {
	cols := o.schema.Columns
	sel := form.Selection
	values := map[catalog.ColumnID]any{
		cols.TargetProject: catalog.Relation(sel.ProjectID),
		cols.TargetBuyers:  catalog.Relation(buyerIDs...),
	}
	if sel.ApartmentID != "" {
		values[cols.TargetBuilding] = catalog.Relation(sel.ApartmentID)
	}
	if sel.StorageID != "" {
		values[cols.TargetStorage] = catalog.Relation(sel.StorageID)
	}
	if sel.ParkingID != "" {
		values[cols.TargetParking] = catalog.Relation(sel.ParkingID)
	}
	if sel.CommercialID != "" {
		values[cols.TargetCommercial] = catalog.Relation(sel.CommercialID)
	}
	if len(form.Attachment) > 0 && cols.TargetAttachment != "" {
		values[cols.TargetAttachment] = catalog.RawValue(form.Attachment)
	}
	return values
}

func (o *Orchestrator) fail(ctx context.Context, form Form, err error, detail string) error {
	o.metrics.IncSubmission("failed")
	o.record(ctx, form, nil, "", journal.OutcomeFailed, detail+": "+err.Error())
	o.logger.ErrorContext(ctx, "submission failed", "detail", detail, "error", err)
	o.notifier.Notify(ctx, notice.Notice{
		Message: "Failed to submit form. Please try again.",
		Type:    notice.TypeError,
	})
	return dErrors.Wrap(err, dErrors.CodeRemote, "submission failed")
}

// record journals the attempt and publishes the lifecycle event. Both are
// best-effort and never fail the submission.
func (o *Orchestrator) record(ctx context.Context, form Form, buyerIDs []catalog.ItemID, commID catalog.ItemID, outcome journal.Outcome, detail string) {
	operator := middleware.GetUserID(ctx)
	if o.journal != nil {
		entry := journal.Entry{
			ID:              uuid.New(),
			SubmittedAt:     time.Now(),
			OperatorID:      operator,
			ProjectID:       form.Selection.ProjectID,
			ApartmentID:     form.Selection.ApartmentID,
			BuyerIDs:        buyerIDs,
			CommunicationID: commID,
			Outcome:         outcome,
			Detail:          detail,
		}
		if err := o.journal.Append(ctx, entry); err != nil {
			o.logger.WarnContext(ctx, "journal append failed", "error", err)
		}
	}
	if o.events != nil {
		o.events.Publish(ctx, events.Event{
			Type:            events.EventSubmissionRecorded,
			OperatorID:      operator,
			ProjectID:       form.Selection.ProjectID,
			ApartmentID:     form.Selection.ApartmentID,
			CommunicationID: commID,
			BuyerIDs:        buyerIDs,
			Outcome:         string(outcome),
			Detail:          detail,
		})
	}
}

func dropEmptyRows(rows []buyer.Row) []buyer.Row {
	out := make([]buyer.Row, 0, len(rows))
	for _, row := range rows {
		if !row.IsEmpty() {
			out = append(out, row)
		}
	}
	return out
}

func joinFields(fields []buyer.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
