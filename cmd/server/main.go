// Package main is the entry point for the Lending Pool Health External Adapter,
// which computes interest-accrued balances and account health for lending pool
// users from reserve and position snapshots.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/lendpool-health-ea/internal/config"
	"github.com/yourorg/lendpool-health-ea/internal/export"
	"github.com/yourorg/lendpool-health-ea/internal/fetch"
	"github.com/yourorg/lendpool-health-ea/internal/guard"
	"github.com/yourorg/lendpool-health-ea/internal/model"
	"github.com/yourorg/lendpool-health-ea/internal/otel"
	"github.com/yourorg/lendpool-health-ea/internal/raymath"
	"github.com/yourorg/lendpool-health-ea/internal/security"
	"github.com/yourorg/lendpool-health-ea/internal/summary"
	"github.com/yourorg/lendpool-health-ea/internal/types"
	"github.com/yourorg/lendpool-health-ea/internal/validation"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// Server represents the External Adapter server instance
type Server struct {
	config config.Config

	// Snapshot source for requests that do not carry inline data
	source fetch.SnapshotSource

	// HTTP server instance
	server *http.Server

	// Circuit breaker guarding against implausible reserve data
	breaker *guard.CircuitBreaker

	// Metrics registry
	metrics *serverMetrics

	// Validation options for incoming snapshots
	validationOpts validation.ValidationOptions

	// Accrual model used for compounded debt projection
	accrualModel types.AccrualModel

	signer    *security.ResultSigner
	exporter  *export.SummaryExporter
	rateLimit *rate.Limiter
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	fetchErrors     *prometheus.CounterVec
	circuitState    prometheus.Gauge
	reserveCount    prometheus.Gauge
	positionCount   prometheus.Gauge
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lendpool_requests_total",
				Help: "Total number of summary requests processed",
			},
			[]string{"status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lendpool_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		fetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lendpool_fetch_errors_total",
				Help: "Total number of snapshot fetch errors",
			},
			[]string{"endpoint"},
		),
		circuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lendpool_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
		reserveCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lendpool_reserve_count",
				Help: "Number of reserves in the last processed snapshot set",
			},
		),
		positionCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lendpool_position_count",
				Help: "Number of user positions in the last processed request",
			},
		),
	}

	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.fetchErrors,
		m.circuitState,
		m.reserveCount,
		m.positionCount,
	)

	return m
}

// main is the entry point for the application
func main() {
	setupLogging()

	cfg := config.Load()

	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	server := NewServer(cfg, fetch.NewIndexerClient(cfg))
	server.Start()
}

// NewServer creates a new server instance wired to the given snapshot source
func NewServer(cfg config.Config, source fetch.SnapshotSource) *Server {
	metricsRegistry := registerMetrics()

	maxRate := new(big.Int).Mul(raymath.RAY, big.NewInt(10))
	breaker := guard.New(guard.Thresholds{
		MaxAnnualRate:        maxRate,
		MinReserves:          cfg.MinReserves,
		CheckIndexRegression: true,
	}).
		WithResetDelay(cfg.CircuitResetDelay).
		WithTripCallback(func(reason string) {
			logrus.Warnf("Circuit breaker tripped: %s", reason)
			metricsRegistry.circuitState.Set(float64(guard.StateOpen))
		})

	validationOpts := validation.DefaultValidationOptions()
	validationOpts.MaxAge = cfg.SnapshotMaxAge

	server := &Server{
		config:         cfg,
		source:         source,
		breaker:        breaker,
		metrics:        metricsRegistry,
		validationOpts: validationOpts,
		accrualModel:   types.ParseAccrualModel(cfg.AccrualModel),
	}

	if cfg.SignResults {
		signer, err := security.NewResultSigner(security.SignerOptions{
			SignatureValidity: config.GetEnvAsDuration("SIGNATURE_VALIDITY", 24*time.Hour),
		})
		if err != nil {
			logrus.Warnf("Failed to initialize result signer: %v", err)
		} else {
			server.signer = signer
			logrus.WithField("address", signer.Address()).Info("Result signer initialized")
		}
	}

	if config.GetEnvAsBool("SUMMARY_EXPORT_ENABLED", false) {
		exporter, err := export.NewSummaryExporter(export.ExporterConfig{
			Enabled:        true,
			BatchSize:      config.GetEnvAsInt("SUMMARY_EXPORT_BATCH_SIZE", 50),
			ExportInterval: config.GetEnvOrDefault("SUMMARY_EXPORT_INTERVAL", "1m"),
			WebhookURL:     os.Getenv("SUMMARY_EXPORT_WEBHOOK_URL"),
			WebhookAPIKey:  os.Getenv("SUMMARY_EXPORT_WEBHOOK_API_KEY"),
		})
		if err != nil {
			logrus.Warnf("Failed to initialize summary exporter: %v", err)
		} else {
			server.exporter = exporter
		}
	}

	requestsPerSecond := config.GetEnvAsInt("RATE_LIMIT_RPS", 10)
	burstSize := config.GetEnvAsInt("RATE_LIMIT_BURST", 20)
	server.rateLimit = rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize)

	logrus.WithFields(logrus.Fields{
		"port":          cfg.Port,
		"indexer_url":   cfg.IndexerURL,
		"accrual_model": server.accrualModel.String(),
		"min_reserves":  cfg.MinReserves,
		"sign_results":  server.signer != nil,
	}).Info("Server initialized")

	return server
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRequest)              // Main Chainlink EA endpoint
	mux.HandleFunc("/health", s.handleHealth)         // Health check endpoint
	mux.Handle("/metrics", promhttp.Handler())        // Prometheus metrics endpoint
	mux.HandleFunc("/status", s.handleStatus)         // Service status endpoint
	mux.HandleFunc("/circuit", s.handleCircuitStatus) // Circuit breaker status/control

	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.exporter != nil {
		s.exporter.Stop()
	}

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}

	logrus.Info("Server stopped")
}

// AdapterRequest matches the standard Chainlink External Adapter request format
type AdapterRequest struct {
	ID       string      `json:"id"`
	JobRunID string      `json:"jobRunId"`
	Data     RequestData `json:"data"`
}

// RequestData carries either an inline snapshot bundle or a user address to
// fetch positions for from the configured indexer.
type RequestData struct {
	User string `json:"user"`

	// Inline snapshot bundle; when absent the indexer is queried.
	Reserves     []model.ReserveData     `json:"reserves,omitempty"`
	UserReserves []model.UserReserveData `json:"userReserves,omitempty"`
	UsdPriceEth  string                  `json:"usdPriceEth,omitempty"`
	Timestamp    int64                   `json:"timestamp,omitempty"`
}

// AdapterResponse matches the standard Chainlink External Adapter response format
type AdapterResponse struct {
	JobRunID   string                 `json:"jobRunId,omitempty"`
	StatusCode int                    `json:"statusCode"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data"`
	Error      string                 `json:"error,omitempty"`
}

// handleRequest computes a user summary from the requested snapshot set
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.rateLimit.Allow() {
		s.errorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	var request AdapterRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if request.Data.User == "" {
		s.errorResponse(w, http.StatusBadRequest, "Missing user address")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	ctx, span := otel.Tracer().Start(ctx, "compute_user_summary")
	defer span.End()

	reserves, positions, usdPriceEth, currentTimestamp, err := s.resolveSnapshots(ctx, request.Data)
	if err != nil {
		s.errorResponse(w, http.StatusBadGateway, fmt.Sprintf("Error resolving snapshots: %v", err))
		return
	}

	if err := validation.ValidateSnapshotSet(reserves, positions, usdPriceEth, currentTimestamp, s.validationOpts); err != nil {
		s.errorResponse(w, http.StatusUnprocessableEntity, fmt.Sprintf("Snapshot validation failed: %v", err))
		return
	}

	if err := s.breaker.Check(reserves); err != nil {
		logrus.Warnf("Circuit breaker rejected snapshot set: %v", err)
		s.metrics.circuitState.Set(float64(s.breaker.GetState()))

		lastGood := s.breaker.LastGoodReserves()
		if len(lastGood) > 0 {
			logrus.Info("Using last known good reserve snapshots")
			reserves = lastGood
		} else {
			s.errorResponse(w, http.StatusServiceUnavailable, fmt.Sprintf("Circuit breaker open: %v", err))
			return
		}
	}
	s.metrics.circuitState.Set(float64(s.breaker.GetState()))
	s.metrics.reserveCount.Set(float64(len(reserves)))
	s.metrics.positionCount.Set(float64(len(positions)))

	userSummary, err := summary.ComputeRawUserSummaryData(
		reserves, positions, request.Data.User, usdPriceEth, currentTimestamp,
		summary.Options{AccrualModel: s.accrualModel},
	)
	if err != nil {
		otel.RecordError(ctx, err)
		s.errorResponse(w, http.StatusUnprocessableEntity, fmt.Sprintf("Summary computation failed: %v", err))
		return
	}

	formatted := model.FormatUserSummary(userSummary)

	response := AdapterResponse{
		JobRunID:   request.JobRunID,
		StatusCode: http.StatusOK,
		Status:     "success",
		Data: map[string]interface{}{
			"result":    formatted.HealthFactor,
			"summary":   formatted,
			"timestamp": time.Now().Unix(),
		},
	}
	if request.ID != "" {
		response.Data["id"] = request.ID
	}

	var responseBody interface{} = response
	if s.signer != nil {
		signed, err := s.signer.Sign(response)
		if err != nil {
			logrus.Warnf("Failed to sign response: %v", err)
		} else {
			responseBody = signed
		}
	}

	if s.exporter != nil {
		s.exporter.Add(&formatted)
	}

	s.metrics.requestDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
	s.metrics.requestCounter.WithLabelValues("success").Inc()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responseBody)
}

// resolveSnapshots returns the reserve and position set for a request, using
// the inline bundle when present and the indexer otherwise.
func (s *Server) resolveSnapshots(ctx context.Context, data RequestData) ([]*model.ReserveSnapshot, []*model.UserReservePosition, *big.Int, int64, error) {
	if len(data.Reserves) > 0 {
		return s.parseInlineBundle(data)
	}

	bundle, err := s.source.FetchReserves(ctx)
	if err != nil {
		s.metrics.fetchErrors.WithLabelValues("reserves").Inc()
		return nil, nil, nil, 0, fmt.Errorf("fetching reserves: %w", err)
	}

	positions, err := s.source.FetchUserReserves(ctx, data.User)
	if err != nil {
		s.metrics.fetchErrors.WithLabelValues("user_reserves").Inc()
		return nil, nil, nil, 0, fmt.Errorf("fetching user reserves: %w", err)
	}

	currentTimestamp := bundle.Timestamp
	if data.Timestamp > 0 {
		currentTimestamp = data.Timestamp
	}
	if currentTimestamp == 0 {
		currentTimestamp = time.Now().Unix()
	}

	return bundle.Reserves, positions, bundle.UsdPriceEth, currentTimestamp, nil
}

// parseInlineBundle converts the wire-format bundle carried in the request
func (s *Server) parseInlineBundle(data RequestData) ([]*model.ReserveSnapshot, []*model.UserReservePosition, *big.Int, int64, error) {
	reserves := make([]*model.ReserveSnapshot, 0, len(data.Reserves))
	for _, raw := range data.Reserves {
		parsed, err := model.ParseReserveSnapshot(raw)
		if err != nil {
			return nil, nil, nil, 0, err
		}
		reserves = append(reserves, parsed)
	}

	positions := make([]*model.UserReservePosition, 0, len(data.UserReserves))
	for _, raw := range data.UserReserves {
		parsed, err := model.ParseUserReservePosition(raw)
		if err != nil {
			return nil, nil, nil, 0, err
		}
		positions = append(positions, parsed)
	}

	usdPriceEth, ok := new(big.Int).SetString(data.UsdPriceEth, 10)
	if !ok {
		return nil, nil, nil, 0, fmt.Errorf("invalid usdPriceEth %q", data.UsdPriceEth)
	}

	currentTimestamp := data.Timestamp
	if currentTimestamp == 0 {
		currentTimestamp = time.Now().Unix()
	}

	return reserves, positions, usdPriceEth, currentTimestamp, nil
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "OK",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "operational",
		"uptime":  time.Since(startTime).String(),
		"version": "1.0.0",
		"configuration": map[string]interface{}{
			"accrual_model":    s.accrualModel.String(),
			"min_reserves":     s.config.MinReserves,
			"snapshot_max_age": s.config.SnapshotMaxAge.String(),
			"sign_results":     s.signer != nil,
		},
		"circuit_state": s.breaker.GetState(),
	}

	if s.signer != nil {
		status["signer_address"] = s.signer.Address()
	}
	if s.exporter != nil {
		status["exporter"] = s.exporter.Status()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleCircuitStatus allows viewing and controlling the circuit breaker
func (s *Server) handleCircuitStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"state": s.breaker.GetState(),
	}

	// Allow reset operation via POST
	if r.Method == http.MethodPost {
		action := r.URL.Query().Get("action")
		if action == "reset" {
			s.breaker.Reset()
			response["message"] = "Circuit breaker reset"
		}
	}

	lastGood := s.breaker.LastGoodReserves()
	if len(lastGood) > 0 {
		response["last_good_reserve_count"] = len(lastGood)
		response["last_good_timestamp"] = time.Unix(lastGood[0].LastUpdateTimestamp, 0).Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// errorResponse returns a formatted error response for Chainlink nodes
func (s *Server) errorResponse(w http.ResponseWriter, statusCode int, errorMsg string) {
	logrus.Warn(errorMsg)

	s.metrics.requestCounter.WithLabelValues("error").Inc()

	response := AdapterResponse{
		StatusCode: statusCode,
		Status:     "error",
		Error:      errorMsg,
		Data:       map[string]interface{}{"error": errorMsg},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
