// Package uiserver exposes the composed store over a local HTTP surface: a
// JSON read API for the dashboard shell, a websocket that streams change
// events, and Prometheus metrics.
package uiserver

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"nhooyr.io/websocket"

	"github.com/kestrelhealth/claimdeck/pkg/entity"
	"github.com/kestrelhealth/claimdeck/pkg/logging"
	"github.com/kestrelhealth/claimdeck/pkg/realtime"
	"github.com/kestrelhealth/claimdeck/pkg/store"
)

// HealthReporter reports realtime feed health.
type HealthReporter interface {
	Health() realtime.Health
}

// Config wires the server's collaborators.
type Config struct {
	Store  *store.Store
	Health HealthReporter
	Logger *logging.Logger
	Hub    *Hub
}

// Server serves the local dashboard API.
type Server struct {
	st     *store.Store
	health HealthReporter
	log    *logging.Logger
	hub    *Hub
	router chi.Router
}

// New builds the server and subscribes its hub to store changes.
func New(cfg Config) *Server {
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub()
	}
	s := &Server{
		st:     cfg.Store,
		health: cfg.Health,
		log:    cfg.Logger,
		hub:    hub,
	}
	s.st.Subscribe(hub.Broadcast)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/state", s.handleState)
	r.Get("/api/{table}", s.handleTable)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleWS)

	s.router = r
	return s
}

// Handler returns the HTTP handler for mounting.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.health != nil {
		h := s.health.Health()
		resp["realtime_connected"] = h.Connected
		resp["realtime_channels"] = h.Channels
		if !h.LastEventAt.IsZero() {
			resp["last_event_at"] = h.LastEventAt
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"view":         s.st.CurrentView(),
		"breadcrumbs":  s.st.Breadcrumbs(),
		"global_error": s.st.GlobalError(),
		"selection":    s.st.SelectionCount(),
	})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	records, total, ok := s.records(table, r.URL.Query())
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown table " + table})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "records": records, "total": total})
}

// records snapshots one collection with the display pipeline applied. Child
// tables are not addressable here; they ride along with their parents.
func (s *Server) records(table string, q url.Values) (any, int, bool) {
	switch table {
	case entity.TablePatients:
		return shaped(applyQuery(s.st.Patients.Records(), table, q))
	case entity.TableClaims:
		return shaped(applyQuery(s.st.Claims.Records(), table, q))
	case entity.TablePriorAuths:
		return shaped(applyQuery(s.st.PriorAuths.Records(), table, q))
	case entity.TablePayments:
		return shaped(applyQuery(s.st.Payments.Records(), table, q))
	case entity.TableProviders:
		return shaped(applyQuery(s.st.Providers.Records(), table, q))
	case entity.TablePayers:
		return shaped(applyQuery(s.st.Payers.Records(), table, q))
	case entity.TableAdmins:
		return shaped(applyQuery(s.st.Admins.Records(), table, q))
	default:
		return nil, 0, false
	}
}

func shaped[T any](records []T, total int) (any, int, bool) {
	return records, total, true
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // local loopback server
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}

	var filter func(store.ChangeEvent) bool
	if table := r.URL.Query().Get("table"); table != "" {
		filter = func(ev store.ChangeEvent) bool { return ev.Table == table }
	}

	c := s.hub.register(conn, filter)
	defer s.hub.removeClient(c)

	ctx := r.Context()
	go func() {
		// Drain client frames so pings are answered; clients never send data.
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	if err := c.writeLoop(ctx); err != nil {
		c.close(websocket.StatusNormalClosure, "")
		return
	}
	c.close(websocket.StatusNormalClosure, "")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
