package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("proxy error: %v", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	var policies map[domain.Action]domain.Policy
	if cfg.policyFile != "" {
		policies, err = infra.LoadPolicyFile(cfg.policyFile)
		if err != nil {
			log.Fatalf("policy file error: %v", err)
		}
	}

	blocks := infra.NewBlockList()
	engine, err := application.NewEngine(application.EngineConfig{
		Policies: domain.NewPolicyTable(policies),
		Windows:  infra.NewWindowStore(),
		Ledger: infra.NewLedger(blocks,
			infra.WithBlockThreshold(cfg.blockThreshold),
			infra.WithBlockDuration(cfg.blockDuration),
		),
		Blocks:     blocks,
		Agents:     infra.NewAgentClassifier(),
		RetryAfter: cfg.retryAfter,
	})
	if err != nil {
		log.Fatalf("engine error: %v", err)
	}

	memStats := infra.NewMemoryStatsStore(infra.WithTrackIdentities(cfg.statsTrackIdentities))
	sinks := fanoutStats{memStats}

	if cfg.statsRedisEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		sinks = append(sinks, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackIdentities(cfg.statsTrackIdentities),
		))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	engine.StartSweeper(ctx, cfg.sweepInterval)

	var pool *infra.ChanPool
	if cfg.concurrencyMax > 0 {
		pool = infra.NewSlotPool(cfg.concurrencyMax)
	}

	h := http.Handler(proxy)
	if pool != nil {
		h = admission.ConcurrencyMiddleware(admission.ConcurrencyOptions{
			Pool:           pool,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.concurrencyTimeout,
		})(h)
	}
	h = admission.Middleware(admission.Options{
		Engine:              engine,
		Stats:               sinks,
		KeyHeader:           cfg.keyHeader,
		TrustXForwardedFor:  cfg.trustXFF,
		Action:              cfg.defaultAction,
		PathActions:         cfg.pathActions,
		AddAdmissionHeaders: cfg.addHeaders,
	})(h)
	h = admission.ThrottleMiddleware(admission.ThrottleOptions{
		RPS:   cfg.throttleRPS,
		Burst: cfg.throttleBurst,
	})(h)

	r := chi.NewRouter()
	r.Get("/_admission/stats", func(w http.ResponseWriter, req *http.Request) {
		snapshot := struct {
			Engine      domain.EngineStats               `json:"engine"`
			Total       infra.Counters                   `json:"total"`
			ByReason    map[domain.Reason]int64          `json:"by_reason"`
			ByAction    map[domain.Action]infra.Counters `json:"by_action"`
			Concurrency *concurrencySnapshot             `json:"concurrency,omitempty"`
		}{
			Engine:   engine.Stats(time.Now()),
			Total:    memStats.Total(),
			ByReason: memStats.ByReason(),
			ByAction: memStats.ByAction(),
		}
		if pool != nil {
			snapshot.Concurrency = &concurrencySnapshot{Max: pool.Cap(), InUse: pool.InUse()}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			log.Printf("stats encode error: %v", err)
		}
	})
	r.Handle("/*", h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("gateway listening on %s -> %s", cfg.listenAddr, target)
	log.Printf("admission: policyFile=%q keyHeader=%q trustXFF=%v sweep=%s blockThreshold=%d blockDuration=%s",
		cfg.policyFile, cfg.keyHeader, cfg.trustXFF, cfg.sweepInterval, cfg.blockThreshold, cfg.blockDuration)
	log.Printf("throttle: rps=%.3f burst=%d", cfg.throttleRPS, cfg.throttleBurst)
	log.Printf("stats: redis=%v addr=%q bucket=%q ttl=%s trackIdentities=%v",
		cfg.statsRedisEnabled, cfg.statsRedisAddr, cfg.statsBucket, cfg.statsTTL, cfg.statsTrackIdentities)
	log.Printf("concurrency: max=%d acquireTimeout=%s", cfg.concurrencyMax, cfg.concurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// concurrencySnapshot expõe a saturação do pool de vagas no snapshot.
type concurrencySnapshot struct {
	Max   int `json:"max"`
	InUse int `json:"in_use"`
}

// fanoutStats entrega o mesmo evento a todos os sinks, best-effort.
type fanoutStats []domain.StatsStore

func (f fanoutStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var firstErr error
	for _, s := range f {
		if err := s.Record(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type config struct {
	listenAddr  string
	upstreamURL string

	policyFile     string
	keyHeader      string
	trustXFF       bool
	defaultAction  domain.Action
	pathActions    map[string]domain.Action
	addHeaders     bool
	retryAfter     time.Duration
	sweepInterval  time.Duration
	blockThreshold int
	blockDuration  time.Duration

	throttleRPS   float64
	throttleBurst int

	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsRedisEnabled    bool
	statsRedisAddr       string
	statsRedisPassword   string
	statsRedisDB         int
	statsPrefix          string
	statsTTL             time.Duration
	statsBucket          string
	statsTrackIdentities bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")

	cfg.policyFile = os.Getenv("POLICY_FILE")
	cfg.keyHeader = os.Getenv("KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.defaultAction = domain.Action(os.Getenv("DEFAULT_ACTION"))
	cfg.addHeaders = getenvBoolDefault("ADD_ADMISSION_HEADERS", false)
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", 1*time.Second)
	cfg.sweepInterval = getenvDurationDefault("SWEEP_INTERVAL", application.DefaultSweepInterval)
	cfg.blockThreshold = getenvIntDefault("BLOCK_THRESHOLD", infra.DefaultBlockThreshold)
	cfg.blockDuration = getenvDurationDefault("BLOCK_DURATION", infra.DefaultBlockDuration)

	pathActions, err := parsePathActions(os.Getenv("PATH_ACTIONS"))
	if err != nil {
		return config{}, err
	}
	cfg.pathActions = pathActions

	cfg.throttleRPS = getenvFloatDefault("THROTTLE_RPS", 0)
	cfg.throttleBurst = getenvIntDefault("THROTTLE_BURST", 0)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.statsRedisEnabled = getenvBoolDefault("STATS_REDIS_ENABLED", false)
	cfg.statsRedisAddr = getenvDefault("STATS_REDIS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("STATS_REDIS_DB", 0)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "admission:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackIdentities = getenvBoolDefault("STATS_TRACK_IDENTITIES", false)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.statsRedisEnabled && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_REDIS_ENABLED=true")
	}
	if cfg.blockThreshold <= 0 {
		return config{}, errors.New("BLOCK_THRESHOLD must be > 0")
	}
	if cfg.blockDuration <= 0 {
		return config{}, errors.New("BLOCK_DURATION must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

// parsePathActions entende "prefixo=ação,prefixo=ação",
// ex: "/login=login,/api=api_call".
func parsePathActions(raw string) (map[string]domain.Action, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	out := make(map[string]domain.Action)
	for _, item := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			return nil, errors.New("PATH_ACTIONS entries must follow PREFIX=ACTION: " + item)
		}
		prefix := strings.TrimSpace(parts[0])
		action := strings.TrimSpace(parts[1])
		if prefix == "" || !strings.HasPrefix(prefix, "/") || action == "" {
			return nil, errors.New("invalid PATH_ACTIONS entry: " + item)
		}
		out[prefix] = domain.Action(action)
	}
	return out, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
