// Package api is the HTTP boundary: it decodes wire bodies, calls
// through to action.Service/query.Service, maps apierr.Kind to status
// codes, and encodes responses. None of the core packages (action,
// engine, nonce, roles, trust, query, codec, idcrypto) imports net/http.
package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackyblack/identity-server/internal/action"
	"github.com/blackyblack/identity-server/internal/apierr"
	"github.com/blackyblack/identity-server/internal/obsv"
	"github.com/blackyblack/identity-server/internal/query"
)

// Server holds the dependencies handlers need.
type Server struct {
	actions *action.Service
	queries *query.Service
	log     *slog.Logger

	// WSHandler, if set, serves GET /ws/idt. Left nil to omit the route
	// (e.g. in tests that don't need a live feed).
	WSHandler http.Handler
}

// New builds a Server.
func New(actions *action.Service, queries *query.Service, log *slog.Logger) *Server {
	return &Server{actions: actions, queries: queries, log: log}
}

// Router builds the full gorilla/mux router, including /healthz,
// /metrics, and /ws/idt (if s.WSHandler is set).
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/vouch/{user}", s.handleVouch).Methods(http.MethodPost)
	r.HandleFunc("/idt/{user}", s.handleIDT).Methods(http.MethodGet)
	r.HandleFunc("/proof/{user}", s.handleProof).Methods(http.MethodPost)
	r.HandleFunc("/punish/{user}", s.handlePunish).Methods(http.MethodPost)
	r.HandleFunc("/is_moderator/{user}", s.handleIsModerator).Methods(http.MethodGet)
	r.HandleFunc("/moderators", s.handleListModerators).Methods(http.MethodGet)
	r.HandleFunc("/add_moderator/{user}", s.handleAddModerator).Methods(http.MethodPost)
	r.HandleFunc("/remove_moderator/{user}", s.handleRemoveModerator).Methods(http.MethodPost)
	r.HandleFunc("/is_admin/{user}", s.handleIsAdmin).Methods(http.MethodGet)
	r.HandleFunc("/admins", s.handleListAdmins).Methods(http.MethodGet)
	r.HandleFunc("/add_admin/{user}", s.handleAddAdmin).Methods(http.MethodPost)
	r.HandleFunc("/remove_admin/{user}", s.handleRemoveAdmin).Methods(http.MethodPost)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if s.WSHandler != nil {
		r.Handle("/ws/idt", s.WSHandler).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(handleNotFound)
	return r
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, struct{}{})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := sonic.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func decodeBody(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDecodeBytes))
	if err != nil {
		return apierr.BadRequestf("failed to read request body: %v", err)
	}
	if err := sonic.Unmarshal(body, dst); err != nil {
		return apierr.BadRequestf("malformed request body: %v", err)
	}
	return nil
}

// maxDecodeBytes is a hard backstop independent of
// middleware.BodySizeLimit, in case a handler is ever wired without the
// middleware chain in front of it.
const maxDecodeBytes = 8 << 20

func pathUser(r *http.Request) string {
	return mux.Vars(r)["user"]
}

func statusFor(kind apierr.Kind) int {
	switch kind {
	case apierr.BadRequest:
		return http.StatusBadRequest
	case apierr.BadSignature:
		return http.StatusUnauthorized
	case apierr.NonceConsumed:
		return http.StatusConflict
	case apierr.NotAllowed:
		return http.StatusForbidden
	case apierr.InvariantViolation:
		return http.StatusUnprocessableEntity
	case apierr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs and translates err to an HTTP response. The log line
// carries the action, error kind, request path and status; the signer,
// nonce, signature and canonical message are not logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, action string, err error) {
	kind := apierr.As(err)
	status := statusFor(kind)

	s.log.Warn("action failed",
		slog.String("action", action),
		slog.String("kind", string(kind)),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
	)
	obsv.RecordAction(action, string(kind))

	writeJSON(w, status, errorResponse{Error: err.Error()})
}
