package app

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/frudas24/quadpin/internal/calib"
	"github.com/frudas24/quadpin/internal/control"
	"github.com/frudas24/quadpin/internal/monitor"
	"github.com/frudas24/quadpin/internal/web"
)

const maxBodyBytes = 64 << 10

type loginRequest struct {
	Password string `json:"password"`
}

type pointRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type sizeRequest struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type editRequest struct {
	Enabled *bool `json:"enabled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the router serving the API, websockets, video and UI assets.
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()
	a.setupRoutes(r)
	return r
}

// setupRoutes registers every route on r.
func (a *App) setupRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/login", a.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", a.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/favicon.ico", handleFavicon)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(a.requireAuth)
	api.HandleFunc("/state", a.handleState).Methods(http.MethodGet)
	api.HandleFunc("/points", a.handleSetPoints).Methods(http.MethodPut)
	api.HandleFunc("/points/{corner}", a.handleMoveCorner).Methods(http.MethodPut)
	api.HandleFunc("/resize", a.handleResize).Methods(http.MethodPost)
	api.HandleFunc("/edit", a.handleEdit).Methods(http.MethodPost)
	api.HandleFunc("/monitors", a.handleMonitors).Methods(http.MethodGet)

	r.Handle("/ws/control", a.control)
	r.HandleFunc("/ws/signal", a.handleSignal)
	r.Handle("/mjpeg/content", a.requireAuth(http.HandlerFunc(a.handleMJPEG))).Methods(http.MethodGet)

	staticDir := a.staticDir
	if staticDir == "" {
		staticDir = filepath.Join("internal", "web", "static")
	}
	r.PathPrefix("/").Handler(staticFileServer(staticDir, a.log))
}

// requireAuth rejects requests without a valid session.
func (a *App) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.auth.Check(r) {
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth reports liveness and whether the session has a usable matrix.
func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"state": a.session.State().String(),
	})
}

// handleLogin authenticates with the UI password.
func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.auth.Login(w, req.Password) {
		writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleLogout ends the caller's session.
func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.auth.Logout(w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleState returns the current transform state.
func (a *App) handleState(w http.ResponseWriter, _ *http.Request) {
	a.writeState(w)
}

// handleSetPoints replaces all four corners.
func (a *App) handleSetPoints(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := calib.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a.session.SetAllPoints(p)
	a.control.Push()
	a.writeState(w)
}

// handleMoveCorner moves the corner named in the path.
func (a *App) handleMoveCorner(w http.ResponseWriter, r *http.Request) {
	corner, err := calib.ParseCorner(mux.Vars(r)["corner"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var req pointRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.X == nil || req.Y == nil {
		writeError(w, http.StatusBadRequest, errors.New("x and y are required"))
		return
	}
	if err := a.session.MoveCorner(corner, calib.Point{X: *req.X, Y: *req.Y}); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a.control.Push()
	a.writeState(w)
}

// handleResize records a container measurement.
func (a *App) handleResize(w http.ResponseWriter, r *http.Request) {
	var req sizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.session.Resize(req.W, req.H) {
		writeError(w, http.StatusBadRequest, errors.New("width and height must be positive"))
		return
	}
	a.control.Push()
	a.writeState(w)
}

// handleEdit sets edit mode, or toggles it when no value is given.
func (a *App) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Enabled == nil {
		a.session.ToggleEditMode()
	} else {
		a.session.SetEditMode(*req.Enabled)
	}
	a.control.Push()
	a.writeState(w)
}

// handleMonitors lists the displays available for capture.
func (a *App) handleMonitors(w http.ResponseWriter, _ *http.Request) {
	list, err := a.ListMonitors()
	switch {
	case errors.Is(err, monitor.ErrNotSupported):
		writeError(w, http.StatusNotImplemented, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, list)
	}
}

// handleSignal serves WebRTC signaling when the webrtc pipeline is configured.
func (a *App) handleSignal(w http.ResponseWriter, r *http.Request) {
	if a.signaling == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("webrtc content disabled"))
		return
	}
	a.signaling.ServeHTTP(w, r)
}

// handleMJPEG streams the content preview when the mjpeg pipeline is configured.
func (a *App) handleMJPEG(w http.ResponseWriter, r *http.Request) {
	if a.stream == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("mjpeg content disabled"))
		return
	}
	a.stream.ServeHTTP(w, r)
}

// writeState writes the session state in the control channel format.
func (a *App) writeState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, control.NewStateMessage(a.session.Snapshot()))
}

// decodeBody decodes a bounded JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// staticFileServer returns a handler for static assets, preferring disk then embed.
func staticFileServer(staticDir string, log *slog.Logger) http.Handler {
	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			return http.FileServer(http.Dir(staticDir))
		}
	}

	embedded, err := web.StaticFS()
	if err != nil {
		log.Warn("static assets unavailable", "err", err)
		return http.NotFoundHandler()
	}
	return http.FileServer(http.FS(embedded))
}

// handleFavicon avoids noisy 404s for the default browser request.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
