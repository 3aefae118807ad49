package httptransport_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"intake/internal/buyer"
	"intake/internal/cascade"
	"intake/internal/catalog"
	"intake/internal/catalog/memory"
	"intake/internal/platform/middleware"
	"intake/internal/session"
	"intake/internal/submission"
	"intake/internal/submission/journal"
	httptransport "intake/internal/transport/http"
	"intake/pkg/testutil"
)

var testSchema = catalog.Schema{
	Boards: catalog.Boards{Projects: 1, Units: 2, Communications: 3, Buyers: 4},
	Columns: catalog.Columns{
		ProjectBuildings:    "rel_buildings",
		ProjectStorage:      "rel_storage",
		ProjectParking:      "rel_parking",
		ProjectCommercial:   "rel_commercial",
		BuildingApartments:  "rel_apartments",
		ApartmentNumberText: "apt_number",
		TargetProject:       "connect_project",
		TargetBuilding:      "connect_building",
		TargetStorage:       "connect_storage",
		TargetParking:       "connect_parking",
		TargetCommercial:    "connect_commercial",
		TargetBuyers:        "connect_buyers",
		BuyerIDNumber:       "text_id",
		BuyerPhone:          "phone",
		BuyerEmail:          "email",
	},
}

func seedCatalog() *memory.Store {
	store := memory.New()
	store.AddItem(testSchema.Boards.Projects, "101", "Sunset Gardens")
	store.AddItem(testSchema.Boards.Projects, "102", "Harbor View")
	store.AddItem(testSchema.Boards.Units, "201", "Building A")
	store.AddItem(testSchema.Boards.Units, "301", "Apt 12")
	store.SetText("301", testSchema.Columns.ApartmentNumberText, "12")
	store.Link("101", testSchema.Columns.ProjectBuildings, "201")
	store.Link("201", testSchema.Columns.BuildingApartments, "301")
	return store
}

type fixture struct {
	store   *memory.Store
	journal *journal.InMemory
	router  http.Handler
}

func newFixture(t *testing.T, cfg httptransport.RouterConfig) *fixture {
	t.Helper()
	store := seedCatalog()
	factory := func() *cascade.Cascade {
		return cascade.New(store, testSchema, language.Und, nil, nil)
	}
	sessions := session.NewManager(factory, session.NewMemoryStore(), time.Minute, nil)
	reconciler := buyer.NewReconciler(store, testSchema, "IL", nil, nil)
	log := journal.NewInMemory()
	orch := submission.New(store, testSchema, reconciler, buyer.PolicyNameID, nil,
		submission.WithJournal(log))
	h := httptransport.NewHandler(sessions, orch, log, nil)
	return &fixture{
		store:   store,
		journal: log,
		router:  httptransport.NewRouter(h, cfg),
	}
}

func newDevFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixture(t, httptransport.RouterConfig{DevMode: true})
}

type stateResponse struct {
	SessionID  string             `json:"session_id"`
	Selection  cascade.Selection  `json:"selection"`
	Options    cascade.OptionSets `json:"options"`
	Superseded bool               `json:"superseded"`
}

func createSession(t *testing.T, f *fixture) stateResponse {
	t.Helper()
	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPost, "/api/v1/sessions"))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	return *testutil.UnmarshalResponse[stateResponse](t, rr)
}

func selectLevel(t *testing.T, f *fixture, sessionID, level string, id catalog.ItemID) stateResponse {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPut,
		"/api/v1/sessions/"+sessionID+"/selection/"+level, map[string]any{"id": id})
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatusOK(t, rr)
	return *testutil.UnmarshalResponse[stateResponse](t, rr)
}

func TestCreateSessionLoadsProjects(t *testing.T) {
	f := newDevFixture(t)
	state := createSession(t, f)

	require.NotEmpty(t, state.SessionID)
	require.Len(t, state.Options.Projects, 2)
	assert.Equal(t, "Sunset Gardens", state.Options.Projects[0].Label)
	assert.Empty(t, state.Selection.ProjectID)
}

func TestSelectionCascadeFlow(t *testing.T) {
	f := newDevFixture(t)
	state := createSession(t, f)

	state = selectLevel(t, f, state.SessionID, "project", "101")
	assert.Equal(t, catalog.ItemID("101"), state.Selection.ProjectID)
	require.Len(t, state.Options.Buildings, 1)
	assert.Equal(t, "Building A", state.Options.Buildings[0].Label)

	state = selectLevel(t, f, state.SessionID, "building", "201")
	assert.Equal(t, catalog.ItemID("201"), state.Selection.BuildingID)
	require.Len(t, state.Options.Apartments, 1)
	assert.Equal(t, "12", state.Options.Apartments[0].Label)

	state = selectLevel(t, f, state.SessionID, "apartment", "301")
	assert.Equal(t, catalog.ItemID("301"), state.Selection.ApartmentID)
}

func TestProjectChangeClearsDescendants(t *testing.T) {
	f := newDevFixture(t)
	state := createSession(t, f)
	selectLevel(t, f, state.SessionID, "project", "101")
	selectLevel(t, f, state.SessionID, "building", "201")
	selectLevel(t, f, state.SessionID, "apartment", "301")

	after := selectLevel(t, f, state.SessionID, "project", "102")
	assert.Equal(t, catalog.ItemID("102"), after.Selection.ProjectID)
	assert.Empty(t, after.Selection.BuildingID)
	assert.Empty(t, after.Selection.ApartmentID)
	assert.Empty(t, after.Options.Buildings)
	assert.Empty(t, after.Options.Apartments)
}

func TestSelectBuildingWithoutProject(t *testing.T) {
	f := newDevFixture(t)
	state := createSession(t, f)

	req := testutil.NewJSONRequest(t, http.MethodPut,
		"/api/v1/sessions/"+state.SessionID+"/selection/building", map[string]any{"id": "201"})
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation")
}

func TestSelectUnknownLevel(t *testing.T) {
	f := newDevFixture(t)
	state := createSession(t, f)

	req := testutil.NewJSONRequest(t, http.MethodPut,
		"/api/v1/sessions/"+state.SessionID+"/selection/penthouse", map[string]any{"id": "1"})
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}

func TestGetUnknownSession(t *testing.T) {
	f := newDevFixture(t)
	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/api/v1/sessions/nope"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestDeleteSession(t *testing.T) {
	f := newDevFixture(t)
	state := createSession(t, f)

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodDelete, "/api/v1/sessions/"+state.SessionID))
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/api/v1/sessions/"+state.SessionID))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestSubmitHappyPath(t *testing.T) {
	f := newDevFixture(t)
	state := createSession(t, f)
	selectLevel(t, f, state.SessionID, "project", "101")
	selectLevel(t, f, state.SessionID, "building", "201")
	selectLevel(t, f, state.SessionID, "apartment", "301")

	req := testutil.NewJSONRequest(t, http.MethodPost,
		"/api/v1/sessions/"+state.SessionID+"/submission", map[string]any{
			"buyers": []map[string]string{
				{"full_name": "Alice Cohen", "national_id": "000000018"},
			},
		})
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	type submitResponse struct {
		CommunicationID catalog.ItemID   `json:"communication_id"`
		BuyerIDs        []catalog.ItemID `json:"buyer_ids"`
	}
	resp := testutil.UnmarshalResponse[submitResponse](t, rr)
	require.NotEmpty(t, resp.CommunicationID)
	require.Len(t, resp.BuyerIDs, 1)

	values := f.store.ValuesOf(resp.CommunicationID)
	require.NotNil(t, values)
	assert.Equal(t, catalog.Relation("101"), values["connect_project"])
	assert.Equal(t, catalog.Relation("301"), values["connect_building"])
}

func TestSubmitIncompleteSelection(t *testing.T) {
	f := newDevFixture(t)
	state := createSession(t, f)
	selectLevel(t, f, state.SessionID, "project", "101")

	req := testutil.NewJSONRequest(t, http.MethodPost,
		"/api/v1/sessions/"+state.SessionID+"/submission", map[string]any{
			"buyers": []map[string]string{
				{"full_name": "Alice Cohen", "national_id": "000000018"},
			},
		})
	rr := testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	type submitError struct {
		Error  string `json:"error"`
		Notice struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"notice"`
	}
	resp := testutil.UnmarshalResponse[submitError](t, rr)
	assert.Equal(t, "validation", resp.Error)
	assert.Equal(t, "a building must be selected", resp.Notice.Message)
	assert.Equal(t, "error", resp.Notice.Type)
}

func TestSubmissionsListing(t *testing.T) {
	f := newDevFixture(t)
	state := createSession(t, f)
	selectLevel(t, f, state.SessionID, "project", "101")
	selectLevel(t, f, state.SessionID, "building", "201")
	selectLevel(t, f, state.SessionID, "apartment", "301")

	req := testutil.NewJSONRequest(t, http.MethodPost,
		"/api/v1/sessions/"+state.SessionID+"/submission", map[string]any{
			"buyers": []map[string]string{
				{"full_name": "Alice Cohen", "national_id": "000000018"},
			},
		})
	testutil.AssertStatus(t, testutil.DoRequest(f.router, req), http.StatusCreated)

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/api/v1/submissions"))
	testutil.AssertStatusOK(t, rr)

	type listing struct {
		Submissions []struct {
			Outcome   string `json:"outcome"`
			ProjectID string `json:"project_id"`
		} `json:"submissions"`
	}
	resp := testutil.UnmarshalResponse[listing](t, rr)
	require.Len(t, resp.Submissions, 1)
	assert.Equal(t, "accepted", resp.Submissions[0].Outcome)
	assert.Equal(t, "101", resp.Submissions[0].ProjectID)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	f := newDevFixture(t)

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")

	rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
}

func TestSessionTokenRequired(t *testing.T) {
	const secret = "test-client-secret"
	f := newFixture(t, httptransport.RouterConfig{
		Verifier: middleware.NewHS256Verifier(secret),
	})

	// Missing token.
	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPost, "/api/v1/sessions"))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)

	// Garbage token.
	req := testutil.NewRequest(t, http.MethodPost, "/api/v1/sessions")
	req.Header.Set("Authorization", "Bearer garbage")
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)

	// Valid token.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.SessionClaims{
		UserID:    "op-7",
		AccountID: "acct-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	req = testutil.NewRequest(t, http.MethodPost, "/api/v1/sessions")
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = testutil.DoRequest(f.router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
}

func TestSubmitRecordsOperatorFromSession(t *testing.T) {
	f := newDevFixture(t)
	state := createSession(t, f)
	selectLevel(t, f, state.SessionID, "project", "101")
	selectLevel(t, f, state.SessionID, "building", "201")
	selectLevel(t, f, state.SessionID, "apartment", "301")

	req := testutil.NewJSONRequest(t, http.MethodPost,
		"/api/v1/sessions/"+state.SessionID+"/submission", map[string]any{
			"buyers": []map[string]string{
				{"full_name": "Alice Cohen", "national_id": "000000018"},
			},
		})
	req = testutil.WithOperator(req, "op-42")
	testutil.AssertStatus(t, testutil.DoRequest(f.router, req), http.StatusCreated)

	entries, err := f.journal.List(req.Context(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "op-42", entries[0].OperatorID)
}
