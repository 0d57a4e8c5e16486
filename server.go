package delaywatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/openmobility/delaywatch/reconcile"
	"github.com/openmobility/delaywatch/schedule"
)

// Server exposes the engine's three contracts over HTTP. Handlers always
// answer with a usable (possibly empty) body; the only error responses are
// for malformed parameters.
type Server struct {
	engine *Engine
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the HTTP server on the given port.
func NewServer(engine *Engine, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engine, logger: logger}

	router := httprouter.New()
	router.GET("/api/health", s.handleHealth)
	router.GET("/api/stops/:stopID/delays", s.handleStopDelays)
	router.GET("/api/routes/:routeID/delays", s.handleRouteDelays)
	router.GET("/api/routes/:routeID/quality", s.handleRouteQuality)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()
	s.logger.Info("server listening", slog.String("addr", s.srv.Addr))
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status          string `json:"status"`
	SnapshotAgeSec  int64  `json:"snapshotAgeSec"`
	QualityRecords  int    `json:"qualityRecords"`
	ScheduledStops  int    `json:"scheduledStops"`
	ScheduledRoutes int    `json:"scheduledRoutes"`
	ScheduledTrips  int    `json:"scheduledTrips"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	age := s.engine.SnapshotAge()
	resp := healthResponse{
		Status:          "ok",
		SnapshotAgeSec:  -1,
		QualityRecords:  s.engine.monitor.RecordCount(),
		ScheduledStops:  s.engine.Store().StopCount(),
		ScheduledRoutes: s.engine.Store().RouteCount(),
		ScheduledTrips:  s.engine.Store().TripCount(),
	}
	if age >= 0 {
		resp.SnapshotAgeSec = int64(age / time.Second)
	} else {
		resp.Status = "offline"
	}
	writeJSON(w, http.StatusOK, resp)
}

type stopDelaysResponse struct {
	StopID string                `json:"stopId"`
	Delays []reconcile.DelayInfo `json:"delays"`
}

func (s *Server) handleStopDelays(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	stopID := ps.ByName("stopID")
	infos := s.engine.ReconcileStop(r.Context(), stopID)
	writeJSON(w, http.StatusOK, stopDelaysResponse{StopID: stopID, Delays: infos})
}

type routeDelaysResponse struct {
	RouteID   string                           `json:"routeId"`
	Direction int                              `json:"direction"`
	ByStop    map[string][]reconcile.DelayInfo `json:"byStop"`
}

func (s *Server) handleRouteDelays(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	routeID := ps.ByName("routeID")
	direction := schedule.DirectionUnknown
	if d := r.URL.Query().Get("direction"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil || (v != 0 && v != 1) {
			writeError(w, http.StatusBadRequest, "direction must be 0 or 1")
			return
		}
		direction = v
	}
	byStop := s.engine.ReconcileRoute(r.Context(), routeID, direction)
	writeJSON(w, http.StatusOK, routeDelaysResponse{RouteID: routeID, Direction: direction, ByStop: byStop})
}

func (s *Server) handleRouteQuality(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	writeJSON(w, http.StatusOK, s.engine.QualitySnapshot(ps.ByName("routeID")))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
