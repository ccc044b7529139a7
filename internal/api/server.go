// Package api provides the HTTP API for driving and observing the blob world.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token when an admin key is configured.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/talgya/blob-world/internal/agents"
	"github.com/talgya/blob-world/internal/engine"
	"github.com/talgya/blob-world/internal/events"
	"github.com/talgya/blob-world/internal/llm"
	"github.com/talgya/blob-world/internal/persistence"
	"github.com/talgya/blob-world/internal/social"
	"github.com/talgya/blob-world/internal/tasks"
	"github.com/talgya/blob-world/internal/world"
)

// Defaults for POST /initialize when the body omits a size.
const (
	defaultBlobs       = 8
	defaultSocieties   = 3
	defaultTemperature = 0.7
)

// ArchiveReader is the read side of the event archive.
type ArchiveReader interface {
	RecentEvents(worldID string, limit int) ([]persistence.ArchivedEvent, error)
	MetricTrail(worldID, metric string) ([]float64, error)
}

// Server serves the world over HTTP.
type Server struct {
	Sim        *engine.Simulation
	Runner     *engine.Runner    // optional auto-advance loop
	Archive    ArchiveReader     // optional
	Dispatcher *tasks.Dispatcher // optional, reported in /status
	Port       int
	AdminKey   string // Bearer token for POST endpoints. Empty = open.

	CORSOrigins    []string
	RateLimit      int // narrator-spending requests per IP per minute
	MaxStreamConns int

	// Active stream connection count (atomic).
	streamConns int32
	started     time.Time
	upgrader    websocket.Upgrader
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     s.allowedOrigin,
	}

	// Every limited endpoint costs at least one narrator call.
	narratorLimiter := NewRateLimiter(s.RateLimit, time.Minute)

	mux := http.NewServeMux()

	// Public observation.
	mux.HandleFunc("/status", s.handleStatus(narratorLimiter))
	mux.HandleFunc("/blobs", s.handleBlobs)
	mux.HandleFunc("/societies", s.handleSocieties)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/world_metrics", s.handleWorldMetrics)
	mux.HandleFunc("/relations", s.handleRelations)
	mux.HandleFunc("/blob/", s.handleBlobDetail)
	mux.HandleFunc("/society/", s.handleSocietyDetail)
	mux.HandleFunc("/event/", s.handleEventDetail)
	mux.HandleFunc("/archive/events", s.handleArchiveEvents)
	mux.HandleFunc("/archive/metrics", s.handleArchiveMetrics)
	mux.HandleFunc("/stream", s.handleStream)

	// Control plane.
	mux.HandleFunc("/initialize", s.adminOnly(RateLimitMiddleware(narratorLimiter, s.handleInitialize)))
	mux.HandleFunc("/run_iteration", s.requireAdmin(RateLimitMiddleware(narratorLimiter, s.handleRunIteration)))
	mux.HandleFunc("/propose_policy", s.adminOnly(RateLimitMiddleware(narratorLimiter, s.handleProposePolicy)))
	mux.HandleFunc("/relationship_story", s.adminOnly(RateLimitMiddleware(narratorLimiter, s.handleRelationshipStory)))
	mux.HandleFunc("/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server can
// be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "archive", s.Archive != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowed := allowedOrigins(origins)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func allowedOrigins(origins []string) map[string]bool {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
		"http://127.0.0.1:3000": true,
	}
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	return allowed
}

// allowedOrigin gates websocket upgrades. Non-browser clients send no Origin.
func (s *Server) allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || allowedOrigins(s.CORSOrigins)[origin]
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && s.AdminKey != "" && !s.checkBearerToken(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// requireAdmin checks the bearer token whatever the method. Used where a
// GET still spends narrator calls.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey != "" && !s.checkBearerToken(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// read renders fn's result while the world is read-locked, so nothing it
// returns can change mid-encode.
func (s *Server) read(w http.ResponseWriter, fn func(w *engine.World) (any, int)) {
	var (
		body   []byte
		status = http.StatusOK
		encErr error
	)
	err := s.Sim.Read(func(wd *engine.World) {
		var v any
		v, status = fn(wd)
		body, encErr = marshalIndent(v)
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	if encErr != nil {
		slog.Error("encode response failed", "error", encErr)
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	writeRaw(w, status, body)
}

// ── Control plane ──────────────────────────────────────────────────────

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		NumBlobs     *int `json:"num_blobs"`
		NumSocieties *int `json:"num_societies"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	numBlobs, numSocieties := defaultBlobs, defaultSocieties
	if req.NumBlobs != nil {
		numBlobs = *req.NumBlobs
	}
	if req.NumSocieties != nil {
		numSocieties = *req.NumSocieties
	}

	if err := s.Sim.Initialize(r.Context(), numBlobs, numSocieties); err != nil {
		writeErr(w, err)
		return
	}

	s.read(w, func(wd *engine.World) (any, int) {
		return map[string]any{
			"status":        "initialized",
			"world_id":      wd.ID,
			"num_blobs":     wd.Blobs.Len(),
			"num_societies": wd.Societies.Len(),
			"blobs":         wd.Blobs.All(),
			"societies":     wd.Societies.All(),
		}, http.StatusOK
	})
}

func (s *Server) handleRunIteration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	out, err := s.Sim.Advance(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOutcome(w, out)
}

func (s *Server) handleProposePolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Proposal    string   `json:"proposal"`
		Temperature *float64 `json:"temperature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	out, err := s.Sim.ApplyPolicy(r.Context(), req.Proposal, temperature)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOutcome(w, out)
}

func (s *Server) handleRelationshipStory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Blob1    *int   `json:"blob1"`
		Blob2    *int   `json:"blob2"`
		Scenario string `json:"scenario"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Blob1 == nil || req.Blob2 == nil {
		writeError(w, http.StatusBadRequest, "blob1 and blob2 are required")
		return
	}

	story, err := s.Sim.RelationshipStory(r.Context(), *req.Blob1, *req.Blob2, req.Scenario)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, story)
}

// writeOutcome reports a tick. A skipped tick is a 422 so callers can retry.
func writeOutcome(w http.ResponseWriter, out *engine.Outcome) {
	if out.Skipped {
		writeJSONStatus(w, http.StatusUnprocessableEntity, map[string]any{
			"status": "skipped",
			"year":   out.Year,
			"reason": out.Reason,
		})
		return
	}
	writeJSON(w, map[string]any{
		"status": "ok",
		"index":  out.Index,
		"year":   out.Year,
		"event":  out.Event,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Runner == nil {
		writeError(w, http.StatusNotFound, "auto-advance is not configured")
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.Speed < 0 || req.Speed > 100 {
			writeError(w, http.StatusBadRequest, "speed must be 0-100")
			return
		}
		s.Runner.SetSpeed(req.Speed)
	}

	writeJSON(w, map[string]any{
		"speed":    s.Runner.Speed(),
		"running":  s.Runner.Running(),
		"interval": s.Runner.Interval.String(),
	})
}

// ── Observation ────────────────────────────────────────────────────────

func (s *Server) handleStatus(limiter *RateLimiter) http.HandlerFunc {
	narrated := RateLimitMiddleware(limiter, func(w http.ResponseWriter, r *http.Request) {
		report, err := s.Sim.StatusReport(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, report)
	})

	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("narrate") == "true" {
			narrated(w, r)
			return
		}

		ticks, skipped := s.Sim.Counters()
		status := map[string]any{
			"name":        "Blob World",
			"state":       engine.Uninitialized.String(),
			"uptime":      humanize.RelTime(s.started, time.Now(), "", ""),
			"ticks":       ticks,
			"skipped":     skipped,
			"subscribers": s.Sim.Subscribers(),
		}
		if s.Runner != nil {
			status["auto_advance"] = map[string]any{
				"running":  s.Runner.Running(),
				"speed":    s.Runner.Speed(),
				"interval": s.Runner.Interval.String(),
			}
		}
		if s.Dispatcher != nil {
			status["tasks"] = s.Dispatcher.Stats()
		}

		_ = s.Sim.Read(func(wd *engine.World) {
			size := wd.Conversation.Size()
			status["state"] = wd.State.String()
			status["world_id"] = wd.ID
			status["current_year"] = wd.CurrentYear
			status["created"] = humanize.Time(wd.CreatedAt)
			status["blobs"] = wd.Blobs.Len()
			status["societies"] = wd.Societies.Len()
			status["events"] = len(wd.Events)
			status["meetings"] = wd.Meetings
			status["messages"] = wd.Conversation.Len()
			status["context_size"] = humanize.Bytes(uint64(size))
			status["report"] = llm.FallbackReport(wd.ReportData())
		})
		writeJSON(w, status)
	}
}

type blobView struct {
	*agents.Blob
	SocietyName string `json:"society_name,omitempty"`
	Summary     string `json:"relationship_summary"`
}

func viewBlob(wd *engine.World, b *agents.Blob) blobView {
	v := blobView{Blob: b, Summary: b.RelationshipSummary()}
	if sid, ok := b.CurrentSociety(); ok {
		if soc, ok := wd.Societies.Get(sid); ok {
			v.SocietyName = soc.Name()
		}
	}
	return v
}

func (s *Server) handleBlobs(w http.ResponseWriter, r *http.Request) {
	s.read(w, func(wd *engine.World) (any, int) {
		all := wd.Blobs.All()
		out := make([]blobView, len(all))
		for i, b := range all {
			out[i] = viewBlob(wd, b)
		}
		return out, http.StatusOK
	})
}

func (s *Server) handleBlobDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "blob")
	if !ok {
		return
	}
	s.read(w, func(wd *engine.World) (any, int) {
		b, ok := wd.Blobs.Get(id)
		if !ok {
			return errorBody("blob not found"), http.StatusNotFound
		}
		return viewBlob(wd, b), http.StatusOK
	})
}

type societyView struct {
	*social.Society
	DisplayName string            `json:"name"`
	MemberNames []string          `json:"member_names"`
	Labels      map[string]string `json:"relation_labels"`
}

func viewSociety(wd *engine.World, soc *social.Society) societyView {
	v := societyView{
		Society:     soc,
		DisplayName: soc.Name(),
		MemberNames: make([]string, len(soc.Members)),
		Labels:      make(map[string]string, len(soc.Relations)),
	}
	for i, id := range soc.Members {
		v.MemberNames[i] = wd.Blobs.NameOf(id)
	}
	for other, score := range soc.Relations {
		v.Labels[strconv.Itoa(other)] = social.SocietyLadder.Describe(score)
	}
	return v
}

func (s *Server) handleSocieties(w http.ResponseWriter, r *http.Request) {
	s.read(w, func(wd *engine.World) (any, int) {
		all := wd.Societies.All()
		out := make([]societyView, len(all))
		for i, soc := range all {
			out[i] = viewSociety(wd, soc)
		}
		return out, http.StatusOK
	})
}

func (s *Server) handleSocietyDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "society")
	if !ok {
		return
	}
	s.read(w, func(wd *engine.World) (any, int) {
		soc, ok := wd.Societies.Get(id)
		if !ok {
			return errorBody("society not found"), http.StatusNotFound
		}
		return viewSociety(wd, soc), http.StatusOK
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	s.read(w, func(wd *engine.World) (any, int) {
		evs := wd.Events
		start := 0
		if limit > 0 && len(evs) > limit {
			start = len(evs) - limit
		}
		out := make([]indexedEvent, 0, len(evs)-start)
		for i := start; i < len(evs); i++ {
			out = append(out, indexedEvent{Index: i, WorldEvent: evs[i]})
		}
		return out, http.StatusOK
	})
}

type indexedEvent struct {
	Index int `json:"index"`
	*events.WorldEvent
}

func (s *Server) handleEventDetail(w http.ResponseWriter, r *http.Request) {
	index, ok := pathID(w, r, "event")
	if !ok {
		return
	}
	s.read(w, func(wd *engine.World) (any, int) {
		ev, ok := wd.Event(index)
		if !ok {
			return errorBody("event not found"), http.StatusNotFound
		}
		return indexedEvent{Index: index, WorldEvent: ev}, http.StatusOK
	})
}

func (s *Server) handleWorldMetrics(w http.ResponseWriter, r *http.Request) {
	s.read(w, func(wd *engine.World) (any, int) {
		history := make(map[string][]float64, len(world.Known))
		for _, name := range world.Known {
			history[name] = wd.Metrics.History(name)
		}
		return map[string]any{
			"metrics": wd.Metrics.Snapshot(),
			"history": history,
			"summary": wd.Metrics.Summarize(),
		}, http.StatusOK
	})
}

type relationView struct {
	Key      string  `json:"key"`
	Society1 int     `json:"society1"`
	Society2 int     `json:"society2"`
	Score    float64 `json:"score"`
	Label    string  `json:"label"`
}

func (s *Server) handleRelations(w http.ResponseWriter, r *http.Request) {
	s.read(w, func(wd *engine.World) (any, int) {
		all := wd.Societies.All()
		var pairs []relationView
		for i, a := range all {
			for _, b := range all[i+1:] {
				score := a.Relation(b.ID)
				pairs = append(pairs, relationView{
					Key:      social.PairKey(a.ID, b.ID),
					Society1: a.ID,
					Society2: b.ID,
					Score:    score,
					Label:    social.SocietyLadder.Describe(score),
				})
			}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
		return map[string]any{
			"report": wd.Societies.RelationsReport(),
			"pairs":  pairs,
		}, http.StatusOK
	})
}

func (s *Server) handleArchiveEvents(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		writeError(w, http.StatusNotFound, "archive disabled")
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	rows, err := s.Archive.RecentEvents(r.URL.Query().Get("world"), limit)
	if err != nil {
		slog.Error("archive query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "archive query failed")
		return
	}
	if rows == nil {
		rows = []persistence.ArchivedEvent{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleArchiveMetrics(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		writeError(w, http.StatusNotFound, "archive disabled")
		return
	}
	worldID := r.URL.Query().Get("world")
	metric := world.NormalizeName(r.URL.Query().Get("metric"))
	if worldID == "" || !world.IsKnown(metric) {
		writeError(w, http.StatusBadRequest, "world and a known metric are required")
		return
	}
	values, err := s.Archive.MetricTrail(worldID, metric)
	if err != nil {
		slog.Error("archive query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "archive query failed")
		return
	}
	writeJSON(w, map[string]any{"world_id": worldID, "metric": metric, "values": values})
}

// ── Stream ─────────────────────────────────────────────────────────────

// handleStream pushes world notices over a websocket, starting with the
// recent backlog. Connections are capped.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	limit := int32(s.MaxStreamConns)
	if limit <= 0 {
		limit = 100
	}
	current := atomic.AddInt32(&s.streamConns, 1)
	defer atomic.AddInt32(&s.streamConns, -1)
	if current > limit {
		writeError(w, http.StatusServiceUnavailable, "too many stream connections")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, backlog, ch := s.Sim.SubscribeWithBacklog()
	defer s.Sim.Unsubscribe(subID)
	slog.Info("stream client connected", "sub_id", subID)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	// Reader: discards client frames and notices the close.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, n := range backlog {
		if err := writeNotice(conn, n); err != nil {
			return
		}
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := writeNotice(conn, n); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		}
	}
}

func writeNotice(conn *websocket.Conn, n engine.Notice) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(n)
}

// ── Helpers ────────────────────────────────────────────────────────────

// pathID parses the integer after /<name>/.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != name || parts[1] == "" {
		writeError(w, http.StatusBadRequest, "missing "+name+" id")
		return 0, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name+" id")
		return 0, false
	}
	return id, true
}

// writeErr maps domain errors to status codes.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, engine.ErrNotInitialized):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, llm.ErrDisabled):
		status = http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		status = 499
	}
	if status >= 500 {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, errorBody(msg))
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	body, err := marshalIndent(data)
	if err != nil {
		slog.Error("encode response failed", "error", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
