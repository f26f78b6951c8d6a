package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"visionstream/internal/domain"
	"visionstream/internal/domain/ports"
	"visionstream/internal/ingest"
	"visionstream/internal/orchestrator"
)

// JobCoordinator is the orchestrator surface the API needs.
type JobCoordinator interface {
	SubmitJob(ctx context.Context, job domain.Job) (domain.JobID, error)
	Cancel(ctx context.Context, id domain.JobID) error
	Status(ctx context.Context, id domain.JobID) (domain.JobStatusRecord, error)
	Stats(ctx context.Context) (orchestrator.QueueStats, error)
}

// VideoChunker splits an uploaded file into fixed-duration segments.
type VideoChunker interface {
	Split(ctx context.Context, sourcePath string, cameraID int64, jobID domain.JobID) ([]domain.ChunkMeta, error)
}

// MediaProbe inspects a source without starting a decode.
type MediaProbe interface {
	Probe(ctx context.Context, path string) (domain.StreamInfo, error)
}

type Server struct {
	coordinator    JobCoordinator
	cameras        ports.CameraRepository
	rules          ports.RuleRepository
	events         ports.EventRepository
	alerts         ports.AlertRepository
	chunker        VideoChunker
	probe          MediaProbe
	uploadDir      string
	maxUploadBytes int64
	jwtSecret      string
	rateRPS        float64
	rateBurst      int
	allowedOrigins []string
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithCameras(repo ports.CameraRepository) ServerOption {
	return func(s *Server) {
		s.cameras = repo
	}
}

func WithRules(repo ports.RuleRepository) ServerOption {
	return func(s *Server) {
		s.rules = repo
	}
}

func WithEvents(repo ports.EventRepository) ServerOption {
	return func(s *Server) {
		s.events = repo
	}
}

func WithAlerts(repo ports.AlertRepository) ServerOption {
	return func(s *Server) {
		s.alerts = repo
	}
}

func WithChunker(chunker VideoChunker) ServerOption {
	return func(s *Server) {
		s.chunker = chunker
	}
}

func WithMediaProbe(probe MediaProbe) ServerOption {
	return func(s *Server) {
		s.probe = probe
	}
}

func WithUploadDir(dir string) ServerOption {
	return func(s *Server) {
		s.uploadDir = strings.TrimSpace(dir)
	}
}

func WithMaxUploadBytes(limit int64) ServerOption {
	return func(s *Server) {
		if limit > 0 {
			s.maxUploadBytes = limit
		}
	}
}

// WithAuthSecret enables HS256 bearer authentication. An empty secret leaves
// the API open (development mode).
func WithAuthSecret(secret string) ServerOption {
	return func(s *Server) {
		s.jwtSecret = secret
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.rateRPS = rps
		}
		if burst > 0 {
			s.rateBurst = burst
		}
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func NewServer(coordinator JobCoordinator, opts ...ServerOption) *Server {
	s := &Server{
		coordinator:    coordinator,
		maxUploadBytes: ingest.MaxUploadBytes,
		rateRPS:        50,
		rateBurst:      100,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/", s.handleJobByID)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/streams/start", s.handleStreamStart)
	mux.HandleFunc("/streams/test", s.handleStreamTest)
	mux.HandleFunc("/cameras", s.handleCameras)
	mux.HandleFunc("/cameras/", s.handleCameraByID)
	mux.HandleFunc("/rules", s.handleRules)
	mux.HandleFunc("/rules/", s.handleRuleByID)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/events/", s.handleEventByID)
	mux.HandleFunc("/alerts", s.handleAlerts)
	mux.HandleFunc("/alerts/", s.handleAlertByID)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, authMiddleware(s.jwtSecret, mux)), "visionstream",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz" && p != "/ws"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close shuts down the WebSocket hub, disconnecting all clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.wsHub == nil {
		http.Error(w, "websocket not available", http.StatusServiceUnavailable)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

// BroadcastEvent pushes a newly emitted event to all WebSocket clients.
func (s *Server) BroadcastEvent(event domain.Event) {
	if s.wsHub != nil {
		s.wsHub.Broadcast("event", event)
	}
}

// BroadcastStats pushes the current queue statistics to all WebSocket clients.
func (s *Server) BroadcastStats(ctx context.Context) {
	if s.wsHub == nil {
		return
	}
	stats, err := s.coordinator.Stats(ctx)
	if err != nil {
		s.logger.Debug("ws stats broadcast failed", slog.String("error", err.Error()))
		return
	}
	s.wsHub.Broadcast("stats", stats)
}
