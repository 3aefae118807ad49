package submission

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/buyer"
	"intake/internal/cascade"
	"intake/internal/catalog"
	"intake/internal/catalog/memory"
	"intake/internal/notice"
	"intake/internal/submission/events"
	"intake/internal/submission/journal"
	dErrors "intake/pkg/domain-errors"
)

var testSchema = catalog.Schema{
	Boards: catalog.Boards{
		Projects:       1,
		Units:          2,
		Communications: 3,
		Buyers:         4,
	},
	Columns: catalog.Columns{
		TargetProject:    "connect_project",
		TargetBuilding:   "connect_building",
		TargetStorage:    "connect_storage",
		TargetParking:    "connect_parking",
		TargetCommercial: "connect_commercial",
		TargetBuyers:     "connect_buyers",
		TargetAttachment: "file_attachment",
		BuyerIDNumber:    "text_id",
		BuyerPhone:       "phone",
		BuyerEmail:       "email",
	},
}

type captureNotifier struct {
	mu      sync.Mutex
	notices []notice.Notice
}

func (c *captureNotifier) Notify(_ context.Context, n notice.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
}

func (c *captureNotifier) last(t *testing.T) notice.Notice {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.notices)
	return c.notices[len(c.notices)-1]
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, e events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *capturePublisher) Close() {}

func newTestOrchestrator(store *memory.Store, opts ...Option) (*Orchestrator, *captureNotifier) {
	notifier := &captureNotifier{}
	reconciler := buyer.NewReconciler(store, testSchema, "IL", nil, nil)
	opts = append(opts, WithNotifier(notifier))
	return New(store, testSchema, reconciler, buyer.PolicyNameID, nil, opts...), notifier
}

func validSelection() cascade.Selection {
	return cascade.Selection{ProjectID: "101", BuildingID: "201", ApartmentID: "301"}
}

func TestSubmitCreatesBuyerAndCommunication(t *testing.T) {
	store := memory.New()
	orch, _ := newTestOrchestrator(store)

	form := Form{
		Selection: validSelection(),
		Buyers: []buyer.Row{
			{FullName: "Alice Cohen", NationalID: "000000018", Phone: "050-1234567", Email: "alice@example.com"},
		},
	}
	result, err := orch.Submit(context.Background(), form)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.BuyerIDs, 1)
	assert.False(t, result.Buyers[0].WasExisting)

	// One buyer record plus one communication record.
	assert.Equal(t, 2, store.Calls("create_item"))

	values := store.ValuesOf(result.CommunicationID)
	require.NotNil(t, values)
	assert.Equal(t, catalog.Relation("101"), values["connect_project"])
	// The apartment id lands in the building relation column.
	assert.Equal(t, catalog.Relation("301"), values["connect_building"])
	assert.Equal(t, catalog.Relation(result.BuyerIDs[0]), values["connect_buyers"])
	assert.NotContains(t, values, catalog.ColumnID("connect_storage"))
	assert.NotContains(t, values, catalog.ColumnID("connect_parking"))
	assert.NotContains(t, values, catalog.ColumnID("connect_commercial"))
}

func TestSubmitReusesExistingBuyer(t *testing.T) {
	store := memory.New()
	store.AddItem(testSchema.Boards.Buyers, "b1", "Alice Cohen")
	store.SetText("b1", testSchema.Columns.BuyerIDNumber, "000000018")
	orch, _ := newTestOrchestrator(store)

	form := Form{
		Selection: validSelection(),
		Buyers: []buyer.Row{
			{FullName: "Alice Cohen", NationalID: "000000018"},
		},
	}
	result, err := orch.Submit(context.Background(), form)
	require.NoError(t, err)
	require.Len(t, result.Buyers, 1)
	assert.True(t, result.Buyers[0].WasExisting)
	assert.Equal(t, catalog.ItemID("b1"), result.Buyers[0].ID)

	// Only the communication record is created.
	assert.Equal(t, 1, store.Calls("create_item"))
	values := store.ValuesOf(result.CommunicationID)
	assert.Equal(t, catalog.Relation("b1"), values["connect_buyers"])
}

func TestSubmitOptionalSelectionsAndAttachment(t *testing.T) {
	store := memory.New()
	orch, _ := newTestOrchestrator(store)

	sel := validSelection()
	sel.StorageID = "401"
	sel.ParkingID = "501"
	sel.CommercialID = "601"
	form := Form{
		Selection:  sel,
		Buyers:     []buyer.Row{{FullName: "Alice Cohen", NationalID: "000000018"}},
		Attachment: json.RawMessage(`{"assetId":77}`),
	}
	result, err := orch.Submit(context.Background(), form)
	require.NoError(t, err)

	values := store.ValuesOf(result.CommunicationID)
	assert.Equal(t, catalog.Relation("401"), values["connect_storage"])
	assert.Equal(t, catalog.Relation("501"), values["connect_parking"])
	assert.Equal(t, catalog.Relation("601"), values["connect_commercial"])
	assert.Equal(t, catalog.RawValue(json.RawMessage(`{"assetId":77}`)), values["file_attachment"])
}

func TestSubmitDropsEmptyRows(t *testing.T) {
	store := memory.New()
	orch, _ := newTestOrchestrator(store)

	form := Form{
		Selection: validSelection(),
		Buyers: []buyer.Row{
			{FullName: "Alice Cohen", NationalID: "000000018"},
			{},
			{FullName: "Bob Levi", NationalID: "123456782"},
			{},
		},
	}
	result, err := orch.Submit(context.Background(), form)
	require.NoError(t, err)
	require.Len(t, result.BuyerIDs, 2)
	// Two buyers plus the communication record.
	assert.Equal(t, 3, store.Calls("create_item"))
}

func TestSubmitValidationOrder(t *testing.T) {
	tests := []struct {
		name    string
		form    Form
		wantMsg string
	}{
		{
			name:    "missing project reported before buyers",
			form:    Form{Buyers: []buyer.Row{{}}},
			wantMsg: "a project must be selected",
		},
		{
			name: "missing building",
			form: Form{
				Selection: cascade.Selection{ProjectID: "101"},
				Buyers:    []buyer.Row{{FullName: "Alice Cohen", NationalID: "000000018"}},
			},
			wantMsg: "a building must be selected",
		},
		{
			name: "missing apartment",
			form: Form{
				Selection: cascade.Selection{ProjectID: "101", BuildingID: "201"},
				Buyers:    []buyer.Row{{FullName: "Alice Cohen", NationalID: "000000018"}},
			},
			wantMsg: "an apartment must be selected",
		},
		{
			name:    "first row empty",
			form:    Form{Selection: validSelection(), Buyers: []buyer.Row{{}, {FullName: "Bob Levi", NationalID: "123456782"}}},
			wantMsg: "the first buyer row is required",
		},
		{
			name:    "no rows at all",
			form:    Form{Selection: validSelection()},
			wantMsg: "the first buyer row is required",
		},
		{
			name: "later partial row named by index",
			form: Form{
				Selection: validSelection(),
				Buyers: []buyer.Row{
					{FullName: "Alice Cohen", NationalID: "000000018"},
					{FullName: "Bob Levi"},
				},
			},
			wantMsg: "buyer row 1 is incomplete: missing national_id",
		},
		{
			name: "invalid national id checked after completeness",
			form: Form{
				Selection: validSelection(),
				Buyers:    []buyer.Row{{FullName: "Alice Cohen", NationalID: "000000019"}},
			},
			wantMsg: "buyer row 0 has an invalid national ID",
		},
		{
			name: "invalid phone",
			form: Form{
				Selection: validSelection(),
				Buyers:    []buyer.Row{{FullName: "Alice Cohen", NationalID: "000000018", Phone: "abc"}},
			},
			wantMsg: "buyer row 0 has an invalid phone number",
		},
		{
			name: "invalid email",
			form: Form{
				Selection: validSelection(),
				Buyers:    []buyer.Row{{FullName: "Alice Cohen", NationalID: "000000018", Email: "not-an-email"}},
			},
			wantMsg: "buyer row 0 has an invalid email address",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New()
			orch, notifier := newTestOrchestrator(store)

			_, err := orch.Submit(context.Background(), tc.form)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tc.wantMsg, dErrors.MessageOf(err))

			// Validation failures never reach the remote catalog.
			assert.Zero(t, store.Calls("find_by_key"))
			assert.Zero(t, store.Calls("create_item"))

			// The validation message is surfaced verbatim to the operator.
			n := notifier.last(t)
			assert.Equal(t, notice.TypeError, n.Type)
			assert.Equal(t, tc.wantMsg, n.Message)
		})
	}
}

func TestSubmitRemoteFailureIsGeneric(t *testing.T) {
	store := memory.New()
	store.FailWith("create_item", errors.New("boom"))
	orch, notifier := newTestOrchestrator(store)

	form := Form{
		Selection: validSelection(),
		Buyers:    []buyer.Row{{FullName: "Alice Cohen", NationalID: "000000018"}},
	}
	_, err := orch.Submit(context.Background(), form)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeRemote))

	n := notifier.last(t)
	assert.Equal(t, notice.TypeError, n.Type)
	assert.Equal(t, "Failed to submit form. Please try again.", n.Message)
	// Remote detail never leaks into the operator notice.
	assert.NotContains(t, n.Message, "boom")
}

func TestSubmitJournalsAndPublishes(t *testing.T) {
	store := memory.New()
	log := journal.NewInMemory()
	pub := &capturePublisher{}
	orch, _ := newTestOrchestrator(store, WithJournal(log), WithEvents(pub))

	form := Form{
		Selection: validSelection(),
		Buyers:    []buyer.Row{{FullName: "Alice Cohen", NationalID: "000000018"}},
	}
	result, err := orch.Submit(context.Background(), form)
	require.NoError(t, err)

	entries, err := log.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OutcomeAccepted, entries[0].Outcome)
	assert.Equal(t, catalog.ItemID("101"), entries[0].ProjectID)
	assert.Equal(t, catalog.ItemID("301"), entries[0].ApartmentID)
	assert.Equal(t, result.CommunicationID, entries[0].CommunicationID)
	assert.Equal(t, result.BuyerIDs, entries[0].BuyerIDs)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.EventSubmissionRecorded, pub.events[0].Type)
	assert.Equal(t, "accepted", pub.events[0].Outcome)
	assert.Equal(t, result.CommunicationID, pub.events[0].CommunicationID)
}

func TestSubmitJournalsRejection(t *testing.T) {
	store := memory.New()
	log := journal.NewInMemory()
	orch, _ := newTestOrchestrator(store, WithJournal(log))

	_, err := orch.Submit(context.Background(), Form{})
	require.Error(t, err)

	entries, err := log.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OutcomeRejected, entries[0].Outcome)
	assert.Contains(t, entries[0].Detail, "project")
}

func TestSubmitCommunicationName(t *testing.T) {
	store := memory.New()
	orch, _ := newTestOrchestrator(store)

	form := Form{
		Selection: validSelection(),
		Buyers: []buyer.Row{
			{FullName: " Alice Cohen ", NationalID: "000000018"},
			{FullName: "Bob Levi", NationalID: "123456782"},
		},
	}
	result, err := orch.Submit(context.Background(), form)
	require.NoError(t, err)

	items, err := store.ListAll(context.Background(), testSchema.Boards.Communications)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, result.CommunicationID, items[0].ID)
	assert.Equal(t, "New inquiry - Alice Cohen, Bob Levi", items[0].Name)
}
