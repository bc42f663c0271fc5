// Package main implements the Voxaly decision API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/VoxalyAI/voxaly-mvp/engine/crm"
	"github.com/VoxalyAI/voxaly-mvp/engine/decision"
	"github.com/VoxalyAI/voxaly-mvp/engine/domain"
	"github.com/VoxalyAI/voxaly-mvp/engine/feedback"
	"github.com/VoxalyAI/voxaly-mvp/engine/pipeline"
	"github.com/VoxalyAI/voxaly-mvp/engine/router"
	"github.com/VoxalyAI/voxaly-mvp/engine/rules"
	"github.com/VoxalyAI/voxaly-mvp/engine/semantic"
	"github.com/VoxalyAI/voxaly-mvp/pkg/metrics"
	"github.com/VoxalyAI/voxaly-mvp/pkg/mid"
	"github.com/VoxalyAI/voxaly-mvp/pkg/ollama"
	"github.com/VoxalyAI/voxaly-mvp/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	Mode          string // "rules" or "generative"
	OllamaURL     string
	EmbedModel    string
	GenerateModel string
	QdrantURL     string
	Collection    string
	NatsURL       string
	Neo4jURL      string
	Neo4jUser     string
	Neo4jPass     string
	CORSOrigin    string
	TopK          int
	RateLimit     float64
	RateBurst     int
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8080"),
		Mode:          envOr("DECISION_MODE", "rules"),
		OllamaURL:     envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:    envOr("EMBED_MODEL", ollama.DefaultEmbedModel),
		GenerateModel: envOr("GENERATE_MODEL", ollama.DefaultGenerateModel),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", "voxaly_kb"),
		NatsURL:       os.Getenv("NATS_URL"),
		Neo4jURL:      envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:     envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:     envOr("NEO4J_PASS", "password"),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
		TopK:          envInt("RETRIEVE_TOP_K", pipeline.DefaultTopK),
		RateLimit:     float64(envInt("RATE_LIMIT_RPS", 50)),
		RateBurst:     envInt("RATE_LIMIT_BURST", 100),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Connect to Neo4j (handoff cases) ---
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)
	cases := crm.NewCaseStore(neo4jDriver)

	// --- Feedback bus (optional) ---
	var collector feedback.Collector = feedback.Discard{}
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("voxaly-api"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		collector = feedback.NewNATSCollector(nc, logger)
	}

	// --- Ollama client ---
	llm := ollama.New(ollama.Config{
		BaseURL:       cfg.OllamaURL,
		EmbedModel:    cfg.EmbedModel,
		GenerateModel: cfg.GenerateModel,
		Timeout:       30 * time.Second,
	})

	reg := metrics.New()

	// --- Decide strategy ---
	catalog := rules.DefaultCatalog()
	var decider pipeline.Decider = decision.NewRulesPolicy(catalog)
	if cfg.Mode == "generative" {
		guarded := &guardedGenerator{
			gen:     llm,
			breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		}
		genOpts := decision.DefaultGenOptions()
		genOpts.OnRepair = reg.Counter("voxaly_generative_repairs_total",
			"Repair prompts issued to the model.").Inc
		decider = decision.NewGenerativeEngine(guarded, genOpts, logger)
	}

	opts := pipeline.DefaultOptions()
	opts.TopK = cfg.TopK
	opts.Mode = cfg.Mode
	pipe := pipeline.New(vectorStore, decider, collector, opts, logger)

	rtr := router.New(llm, vectorStore, cfg.TopK, logger)

	// Warm the model so the first caller does not pay the load time.
	go func() {
		wctx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
		if _, err := llm.Embed(wctx, "bonjour"); err != nil {
			logger.Warn("embed warmup failed", "err", err)
		}
		if cfg.Mode == "generative" {
			if _, err := llm.Generate(wctx, "Réponds uniquement: ok", 5); err != nil {
				logger.Warn("generate warmup failed", "err", err)
			}
		}
	}()

	srv := &server{
		pipe:      pipe,
		router:    rtr,
		cases:     cases,
		embedder:  llm,
		logger:    logger,
		mode:      cfg.Mode,
		limiter:   resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.RateLimit, Burst: cfg.RateBurst}),
		decideDur: reg.Histogram("voxaly_decide_seconds", "End-to-end decide latency.", metrics.DefaultBuckets),
		registry:  reg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srv.handleHealth)
	mux.HandleFunc("POST /api/decide", srv.handleDecide)
	mux.HandleFunc("POST /api/route", srv.handleRoute)
	mux.HandleFunc("GET /api/cases", srv.handleListCases)
	mux.HandleFunc("POST /api/cases/{id}/close", srv.handleCloseCase)
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Trace("voxaly-api"),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		srv.rateLimit,
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "mode", cfg.Mode)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

// guardedGenerator wraps the LLM client in a circuit breaker so a dead
// model endpoint fails fast instead of stacking 30-second timeouts.
type guardedGenerator struct {
	gen     decision.Generator
	breaker *resilience.Breaker
}

func (g *guardedGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var out string
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.gen.Generate(ctx, prompt, maxTokens)
		return err
	})
	return out, err
}

// --- Server ---

type server struct {
	pipe      *pipeline.Pipeline
	router    *router.Router
	cases     *crm.CaseStore
	embedder  *ollama.Client
	logger    *slog.Logger
	mode      string
	limiter   *resilience.Limiter
	decideDur *metrics.Histogram
	registry  *metrics.Registry
}

func (s *server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.limiter.Check(); err != nil {
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "mode": s.mode})
}

// DecideRequest is the JSON body for POST /api/decide. The embedding is
// optional: when absent the server embeds the combined text itself.
type DecideRequest struct {
	domain.DecisionRequest
	CallerID string `json:"caller_id,omitempty"`
}

// DecideResponse is the JSON response for POST /api/decide.
type DecideResponse struct {
	Decision domain.Decision `json:"decision"`
	Trace    *pipeline.Trace `json:"trace"`
	CaseID   string          `json:"case_id,omitempty"`
}

func (s *server) handleDecide(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.TextQuery == "" {
		http.Error(w, `{"error":"text_query is required"}`, http.StatusBadRequest)
		return
	}

	if len(req.Embedding) == 0 {
		vec, err := s.embedder.Embed(r.Context(), rules.CombinedText(req.TextContext, req.TextQuery))
		if err != nil {
			s.logger.Error("query embedding failed", "err", err)
			http.Error(w, `{"error":"embedding unavailable"}`, http.StatusBadGateway)
			return
		}
		req.Embedding = vec
	}

	dec, trace, err := s.pipe.Run(r.Context(), req.DecisionRequest)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrRetrievalUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Error("decision pipeline failed", "err", err, "request_id", traceID(trace))
		http.Error(w, `{"error":"decision unavailable"}`, status)
		return
	}

	resp := DecideResponse{Decision: dec, Trace: trace}
	if dec.Action == domain.ActionEscalate {
		resp.CaseID = s.openCase(r.Context(), req, dec)
	}

	name := metrics.WithLabels("voxaly_decisions_total", "action", string(dec.Action), "mode", s.mode)
	s.registry.Counter(name, "Decisions returned, by action and mode.").Inc()
	s.decideDur.Since(start)
	for stage, d := range trace.StageDuration {
		s.registry.Histogram(metrics.WithLabels("voxaly_stage_seconds", "stage", stage),
			"Pipeline stage latency.", metrics.DefaultBuckets).Observe(d.Seconds())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// openCase files a handoff ticket for an escalated call. Failures are
// logged, not surfaced: the caller still gets their decision.
func (s *server) openCase(ctx context.Context, req DecideRequest, dec domain.Decision) string {
	hc := crm.HandoffCase{
		ID:       uuid.NewString(),
		CallerID: req.CallerID,
		Query:    req.TextQuery,
		Decision: dec,
		OpenedAt: time.Now().UTC(),
		Status:   "open",
	}
	if err := s.cases.OpenCase(ctx, hc); err != nil {
		s.logger.Warn("handoff case not recorded", "err", err, "caller_id", req.CallerID)
		return ""
	}
	return hc.ID
}

// RouteRequest is the JSON body for POST /api/route.
type RouteRequest struct {
	Query string `json:"query"`
}

func (s *server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, `{"error":"query is required"}`, http.StatusBadRequest)
		return
	}

	res, err := s.router.Route(r.Context(), req.Query)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrRetrievalUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Error("routing failed", "err", err)
		http.Error(w, `{"error":"routing unavailable"}`, status)
		return
	}

	s.registry.Counter(metrics.WithLabels("voxaly_routes_total", "action", res.Action), "Router verdicts, by action.").Inc()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (s *server) handleListCases(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	open, err := s.cases.ListOpenCases(r.Context(), limit)
	if err != nil {
		s.logger.Error("list cases failed", "err", err)
		http.Error(w, `{"error":"case store unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"cases": open})
}

func (s *server) handleCloseCase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.cases.CloseCase(r.Context(), id); err != nil {
		s.logger.Error("close case failed", "err", err, "case_id", id)
		http.Error(w, `{"error":"case store unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func traceID(t *pipeline.Trace) string {
	if t == nil {
		return ""
	}
	return t.RequestID
}
