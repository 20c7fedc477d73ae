package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"peregovorka/internal/config"
	"peregovorka/internal/metrics"
	"peregovorka/internal/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RoomReader is the read-only part of the reservation service the API exposes.
type RoomReader interface {
	ListAvailableRooms(ctx context.Context) (models.Result[models.Availability], error)
	GetRoomStatus(ctx context.Context, roomName string) (models.Result[models.RoomStatus], error)
	GetCurrentTimezone(ctx context.Context) (models.Result[models.Timezone], error)
}

// HTTPServer exposes health, metrics and room availability.
type HTTPServer struct {
	cfg     config.APIConfig
	rooms   RoomReader
	limiter *clientLimiter
	server  *http.Server
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, rooms RoomReader, logger *zerolog.Logger) *HTTPServer {
	l := logger.With().Str("component", "http_api").Logger()
	srv := &HTTPServer{
		cfg:     cfg,
		rooms:   rooms,
		limiter: newClientLimiter(cfg.RateLimit),
		logger:  &l,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.instrument("healthz", srv.handleHealth))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/rooms", srv.instrument("rooms", srv.rateLimited(srv.handleRooms)))
	mux.HandleFunc("GET /api/v1/rooms/{name}", srv.instrument("room_status", srv.rateLimited(srv.handleRoomStatus)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the routed handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type roomJSON struct {
	Name       string `json:"name"`
	Capacity   int    `json:"capacity"`
	OccupiedBy string `json:"occupied_by,omitempty"`
	Since      string `json:"since,omitempty"`
	Until      string `json:"until,omitempty"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleRooms(w http.ResponseWriter, r *http.Request) {
	res, err := s.rooms.ListAvailableRooms(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list available rooms failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	free := make([]roomJSON, 0, len(res.Data.Free))
	for _, room := range res.Data.Free {
		free = append(free, roomJSON{Name: room.Name, Capacity: room.Capacity})
	}
	occupied := make([]roomJSON, 0, len(res.Data.Occupied))
	for _, o := range res.Data.Occupied {
		occupied = append(occupied, occupiedJSON(o.Room, o.Booking))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"timezone": s.timezone(r.Context()),
		"free":     free,
		"occupied": occupied,
	})
}

func (s *HTTPServer) handleRoomStatus(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	res, err := s.rooms.GetRoomStatus(r.Context(), name)
	if err != nil {
		s.logger.Error().Err(err).Str("room", name).Msg("room status failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !res.Success {
		status := http.StatusBadRequest
		if res.Kind == models.KindNotFound {
			status = http.StatusNotFound
		}
		writeError(w, status, "room not found")
		return
	}

	room := roomJSON{Name: res.Data.Room.Name, Capacity: res.Data.Room.Capacity}
	if res.Data.IsOccupied() {
		room = occupiedJSON(res.Data.Room, res.Data.Booking)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"timezone": s.timezone(r.Context()),
		"occupied": res.Data.IsOccupied(),
		"room":     room,
	})
}

func (s *HTTPServer) timezone(ctx context.Context) string {
	tz, err := s.rooms.GetCurrentTimezone(ctx)
	if err != nil {
		return ""
	}
	return tz.Data.Display
}

func occupiedJSON(room *models.Room, b *models.Booking) roomJSON {
	return roomJSON{
		Name:       room.Name,
		Capacity:   room.Capacity,
		OccupiedBy: b.Username,
		Since:      b.StartTime.Format(models.StoredTimeLayout),
		Until:      b.EndTime.Format(models.StoredTimeLayout),
	}
}

func (s *HTTPServer) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r)) {
			metrics.IncRateLimited()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func (s *HTTPServer) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		dur := time.Since(start)

		metrics.ObserveHTTP(endpoint, recorder.status, dur)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
