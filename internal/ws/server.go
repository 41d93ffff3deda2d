package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xr-emulator/backend/internal/emulator"
	"github.com/xr-emulator/backend/internal/frame"
	"github.com/xr-emulator/backend/internal/logging"
	"github.com/xr-emulator/backend/internal/session"
	"github.com/xr-emulator/backend/internal/xrmath"
)

// maxMessageSize bounds inbound frames; surface meshes are the largest.
const maxMessageSize = 16 << 20

// Runner executes fn on the goroutine that owns the engine.
type Runner interface {
	Do(ctx context.Context, fn func(*emulator.Engine)) error
}

type Server struct {
	runner         Runner
	registry       *session.Registry
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
	panel          http.Handler
	logger         *slog.Logger
}

func NewServer(runner Runner, registry *session.Registry, broadcaster *Broadcaster, allowedOrigins []string, authToken string, logger *slog.Logger) *Server {
	s := &Server{
		runner:         runner,
		registry:       registry,
		broadcaster:    broadcaster,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      authToken,
		logger:         logging.Component(logger, "ws"),
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("GET /api/sessions", s.authorized(s.handleListSessions))
	mux.HandleFunc("POST /api/sessions", s.authorized(s.handleCreateSession))
	mux.HandleFunc("DELETE /api/sessions/{id}", s.authorized(s.handleEndSession))
	mux.HandleFunc("GET /api/sessions/{id}/views", s.authorized(s.handleViews))
	mux.HandleFunc("GET /api/input-sources", s.authorized(s.handleInputSources))
	mux.HandleFunc("GET /api/device", s.authorized(s.handleDevice))

	if s.panel != nil {
		mux.Handle("/", s.panel)
	}
}

// ServePanel serves the control panel's static files from dir at "/".
func (s *Server) ServePanel(dir string) {
	s.logger.Info("serving control panel", "dir", dir)
	s.panel = http.FileServer(http.Dir(dir))
}

// Handler returns every route behind the security headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	ctx := r.Context()
	c, err := s.broadcaster.AddClient(ctx, conn)
	if err != nil {
		s.logger.Warn("rejecting client", "remote", r.RemoteAddr, "error", err)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
		return
	}

	s.logger.Info("client connected", "client", c.id, "remote", r.RemoteAddr)
	defer func() {
		s.broadcaster.RemoveClient(c)
		s.logger.Info("client disconnected", "client", c.id)
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(ctx, c, kind, data)
	}
}

func (s *Server) handleMessage(ctx context.Context, c *client, kind int, data []byte) {
	var (
		typ MessageType
		cmd Command
		err error
	)
	if kind == websocket.BinaryMessage {
		typ, cmd = MsgSurfaceAssetReady, AssetCommand(data)
	} else if typ, cmd, err = Decode(data); err != nil {
		s.logger.Warn("dropping message", "client", c.id, "error", err)
		s.broadcaster.sendTo(c, WSMessage{Type: MsgError, Payload: ErrorPayload{Message: err.Error()}})
		return
	}

	logging.Trace(s.logger, "inbound message", "client", c.id, "type", typ)
	var runErr error
	if err := s.runner.Do(ctx, func(e *emulator.Engine) { runErr = cmd(e) }); err != nil {
		return
	}
	if runErr != nil {
		s.logger.Warn("message failed", "client", c.id, "type", typ, "error", runErr)
		s.broadcaster.sendTo(c, WSMessage{Type: MsgError, Payload: ErrorPayload{Message: runErr.Error()}})
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.All())
}

type createSessionRequest struct {
	Mode     session.Mode `json:"mode"`
	Features []string     `json:"features"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	var (
		created *session.Session
		reqErr  error
	)
	err := s.runner.Do(r.Context(), func(e *emulator.Engine) {
		created, reqErr = e.RequestSession(req.Mode, req.Features)
		if reqErr == nil && created.Immersive() {
			reqErr = e.BindSurface(created.ID, &session.Canvas{})
		}
		if reqErr == nil {
			created, _ = e.Registry().Get(created.ID)
		}
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if errors.Is(reqErr, session.ErrUnsupportedMode) {
		http.Error(w, reqErr.Error(), http.StatusUnprocessableEntity)
		return
	}
	if reqErr != nil {
		http.Error(w, reqErr.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func sessionID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var endErr error
	if err := s.runner.Do(r.Context(), func(e *emulator.Engine) { endErr = e.EndSession(id) }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if errors.Is(endErr, emulator.ErrUnknownSession) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type viewPayload struct {
	Eye              string         `json:"eye"`
	Viewport         frame.Viewport `json:"viewport"`
	ProjectionMatrix xrmath.Mat4    `json:"projectionMatrix"`
	ViewMatrix       xrmath.Mat4    `json:"viewMatrix"`
	PoseMatrix       xrmath.Mat4    `json:"poseMatrix"`
}

func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var (
		views   []viewPayload
		viewErr error
	)
	err := s.runner.Do(r.Context(), func(e *emulator.Engine) {
		for _, eye := range []frame.Eye{frame.Left, frame.Right} {
			v := viewPayload{Eye: eye.String()}
			if v.Viewport, viewErr = e.GetViewport(id, eye); viewErr != nil {
				return
			}
			v.ProjectionMatrix, _ = e.GetProjectionMatrix(id, eye)
			v.ViewMatrix, _ = e.GetBaseViewMatrix(id, eye)
			v.PoseMatrix, _ = e.GetBasePoseMatrix(id, eye)
			views = append(views, v)
		}
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if viewErr != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleInputSources(w http.ResponseWriter, r *http.Request) {
	var sources []emulator.InputSource
	if err := s.runner.Do(r.Context(), func(e *emulator.Engine) { sources = e.GetInputSources() }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if sources == nil {
		sources = []emulator.InputSource{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	var snap emulator.Snapshot
	if err := s.runner.Do(r.Context(), func(e *emulator.Engine) { snap = e.Snapshot() }); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-XR-Emulator-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
