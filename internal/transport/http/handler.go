package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"intake/internal/buyer"
	"intake/internal/cascade"
	"intake/internal/catalog"
	"intake/internal/notice"
	"intake/internal/platform/middleware"
	"intake/internal/session"
	"intake/internal/submission"
	"intake/internal/submission/journal"
	dErrors "intake/pkg/domain-errors"
)

// Handler serves the intake API: session lifecycle, cascade selection, and
// submission.
type Handler struct {
	sessions *session.Manager
	orch     *submission.Orchestrator
	journal  journal.Store
	logger   *slog.Logger
}

// NewHandler creates the intake Handler. journalStore may be nil; the
// submissions listing then returns 404.
func NewHandler(sessions *session.Manager, orch *submission.Orchestrator, journalStore journal.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions: sessions,
		orch:     orch,
		journal:  journalStore,
		logger:   logger,
	}
}

// Register mounts the intake routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Get("/sessions/{sessionID}/options", h.handleGetSession)
	r.Put("/sessions/{sessionID}/selection/{level}", h.handleSelect)
	r.Delete("/sessions/{sessionID}", h.handleDeleteSession)
	r.Post("/sessions/{sessionID}/submission", h.handleSubmit)
	if h.journal != nil {
		r.Get("/submissions", h.handleListSubmissions)
	}
}

// sessionState is the response body for every session endpoint: the full
// selection and option sets the UI needs to render the cascade.
type sessionState struct {
	SessionID  string             `json:"session_id"`
	Selection  cascade.Selection  `json:"selection"`
	Options    cascade.OptionSets `json:"options"`
	Superseded bool               `json:"superseded,omitempty"`
}

func (h *Handler) state(s *session.Session) sessionState {
	return sessionState{
		SessionID: s.ID,
		Selection: s.Cascade.Selection(),
		Options:   s.Cascade.Options(),
	}
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := h.sessions.Create(ctx)
	if err := s.Cascade.LoadProjects(ctx); err != nil {
		h.logger.ErrorContext(ctx, "project load failed",
			"session_id", s.ID,
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		_ = h.sessions.Delete(ctx, s.ID)
		writeError(w, err)
		return
	}
	h.persist(r, s)
	writeJSON(w, http.StatusCreated, h.state(s))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state(s))
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// selectRequest carries the chosen item id; empty clears the level.
type selectRequest struct {
	ID catalog.ItemID `json:"id"`
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.sessions.Get(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	level := chi.URLParam(r, "level")
	switch level {
	case "project":
		err = s.Cascade.ChooseProject(ctx, req.ID)
	case "building":
		err = s.Cascade.ChooseBuilding(ctx, req.ID)
	case "apartment":
		err = s.Cascade.ChooseApartment(req.ID)
	case "storage":
		err = s.Cascade.ChooseStorage(req.ID)
	case "parking":
		err = s.Cascade.ChooseParking(req.ID)
	case "commercial":
		err = s.Cascade.ChooseCommercial(req.ID)
	default:
		writeError(w, dErrors.Newf(dErrors.CodeBadRequest, "unknown selection level %q", level))
		return
	}

	// A superseded transition is not a failure: a newer selection already
	// owns the state, so return it.
	if errors.Is(err, cascade.ErrSuperseded) {
		state := h.state(s)
		state.Superseded = true
		writeJSON(w, http.StatusOK, state)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	h.persist(r, s)
	writeJSON(w, http.StatusOK, h.state(s))
}

// submitRequest carries the buyer rows; the selection comes from the
// session's cascade, never from the client.
type submitRequest struct {
	Buyers     []buyer.Row     `json:"buyers"`
	Attachment json.RawMessage `json:"attachment,omitempty"`
}

type submitResponse struct {
	CommunicationID catalog.ItemID   `json:"communication_id"`
	BuyerIDs        []catalog.ItemID `json:"buyer_ids"`
}

// submitErrorResponse pairs the error envelope with the notice the host SDK
// renders to the operator.
type submitErrorResponse struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Notice  notice.Notice `json:"notice"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.sessions.Get(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.orch.Submit(ctx, submission.Form{
		Selection:  s.Cascade.Selection(),
		Buyers:     req.Buyers,
		Attachment: req.Attachment,
	})
	if err != nil {
		code := dErrors.CodeOf(err)
		resp := submitErrorResponse{Error: string(code)}
		if code == dErrors.CodeValidation {
			resp.Message = dErrors.MessageOf(err)
			resp.Notice = notice.Notice{Message: resp.Message, Type: notice.TypeError, TimeoutMS: 3000}
		} else {
			resp.Message = "submission failed"
			resp.Notice = notice.Notice{Message: "Failed to submit form. Please try again.", Type: notice.TypeError}
		}
		writeJSON(w, statusOf(code), resp)
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		CommunicationID: result.CommunicationID,
		BuyerIDs:        result.BuyerIDs,
	})
}

// journalEntry is the JSON shape of one submissions listing row.
type journalEntry struct {
	ID              string           `json:"id"`
	SubmittedAt     string           `json:"submitted_at"`
	OperatorID      string           `json:"operator_id,omitempty"`
	ProjectID       catalog.ItemID   `json:"project_id,omitempty"`
	ApartmentID     catalog.ItemID   `json:"apartment_id,omitempty"`
	BuyerIDs        []catalog.ItemID `json:"buyer_ids,omitempty"`
	CommunicationID catalog.ItemID   `json:"communication_id,omitempty"`
	Outcome         string           `json:"outcome"`
	Detail          string           `json:"detail,omitempty"`
}

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.journal.List(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "journal list failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		writeError(w, dErrors.New(dErrors.CodeInternal, "failed to list submissions"))
		return
	}

	out := make([]journalEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, journalEntry{
			ID:              e.ID.String(),
			SubmittedAt:     e.SubmittedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			OperatorID:      e.OperatorID,
			ProjectID:       e.ProjectID,
			ApartmentID:     e.ApartmentID,
			BuyerIDs:        e.BuyerIDs,
			CommunicationID: e.CommunicationID,
			Outcome:         string(e.Outcome),
			Detail:          e.Detail,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": out})
}

// persist snapshots the session after a state change. Best-effort; the live
// session remains authoritative.
func (h *Handler) persist(r *http.Request, s *session.Session) {
	ctx := r.Context()
	if err := h.sessions.Persist(ctx, s); err != nil {
		h.logger.WarnContext(ctx, "session snapshot failed",
			"session_id", s.ID,
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
}
