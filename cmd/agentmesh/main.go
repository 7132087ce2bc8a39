package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	v1 "agentmesh/api/v1"
	"agentmesh/api/v1/middleware"
	"agentmesh/internal/audit"
	"agentmesh/internal/auth"
	"agentmesh/internal/config"
	"agentmesh/internal/identity"
	"agentmesh/internal/janitor"
	"agentmesh/internal/logging"
	"agentmesh/internal/registry"
	"agentmesh/internal/store"
	"agentmesh/internal/ws"
)

func main() {
	// 1. Load configuration
	cfg, err := loadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	log := logging.Component(logger, "main")
	log.WithField("backend", cfg.Store.Backend).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open the store
	st, err := store.Open(ctx, cfg, logging.Component(logger, "store"))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	// 3. Registry signing key and session tokens
	serverKey, err := loadServerKey(cfg, log)
	if err != nil {
		log.Fatalf("Invalid SIGNING_KEY: %v", err)
	}
	priv, _, err := serverKey.Ed25519()
	if err != nil {
		log.Fatalf("Invalid SIGNING_KEY: %v", err)
	}
	sessions := auth.NewSessionIssuer(priv, cfg.Security.SessionIssuer, time.Duration(cfg.Handshake.SessionTTLSec)*time.Second)

	// 4. Live feed
	var publisher registry.Publisher = registry.NopPublisher{}
	var live http.Handler
	if cfg.WSEnabled {
		hubLogger := logging.Component(logger, "ws")
		hub := ws.NewHub(hubLogger)
		hub.Start()
		defer hub.Close()
		publisher = hub
		live = ws.WrapWithAuth(hub, cfg.Security.AdminTokenHash, hubLogger)
	}

	// 5. Registry service
	svc, err := registry.NewService(&registry.Config{
		Store:     st,
		Audit:     audit.New(st),
		Sessions:  sessions,
		ServerKey: serverKey,
		Publisher: publisher,
		Logger:    logging.Component(logger, "registry"),
		Options: registry.Options{
			ReplayMaxAge:           time.Duration(cfg.Handshake.ReplayMaxAgeSec) * time.Second,
			ChallengeTTL:           time.Duration(cfg.Handshake.ChallengeTTLSec) * time.Second,
			RequireIssuedChallenge: cfg.Handshake.RequireIssuedChallenge,
			AgentCacheSize:         cfg.AgentCache,
		},
	})
	if err != nil {
		log.Fatalf("Failed to create registry: %v", err)
	}

	// 6. Expired-entry janitor for stores without native TTL
	if sweeper, ok := st.(store.Sweeper); ok {
		worker := janitor.NewWorker(&janitor.Config{
			Sweeper:     sweeper,
			Logger:      logrus.NewEntry(logger),
			IntervalSec: cfg.SweepIntervalSec,
		})
		worker.Start()
		defer worker.Stop()
	}

	if cfg.Security.AdminTokenHash == "" {
		log.Warn("ADMIN_TOKEN_HASH is empty; admin API and live feed are disabled")
	} else if err := auth.CheckTokenHash(cfg.Security.AdminTokenHash); err != nil {
		log.Fatalf("Invalid admin token hash: %v", err)
	}

	// 7. HTTP server
	gin.SetMode(gin.ReleaseMode)
	engine := v1.NewEngine(&v1.Deps{
		Registry:         svc,
		Sessions:         sessions,
		AdminTokenHash:   cfg.Security.AdminTokenHash,
		HandshakeLimiter: middleware.NewIPRateLimiter(cfg.Handshake.RatePerSec, cfg.Handshake.RateBurst, 0),
		Live:             live,
		Logger:           logging.Component(logger, "http"),
	})
	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key", "X-Admin-Token", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	}).Handler(engine)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":                cfg.HTTPAddr,
			"registry_public_key": serverKey.PublicKey,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Server error: %v", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}

// loadConfig reads CONFIG_FILE (INI) when set, otherwise env only.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return config.LoadFromINI(path)
	}
	return config.Load()
}

// loadServerKey uses SIGNING_KEY or generates an ephemeral key.
func loadServerKey(cfg *config.Config, log *logrus.Entry) (*identity.KeyPair, error) {
	if cfg.Security.SigningKey != "" {
		return identity.KeyPairFromPrivateKey(cfg.Security.SigningKey)
	}
	log.Warn("SIGNING_KEY is empty; generated an ephemeral registry key, sessions will not survive a restart")
	return identity.GenerateKeyPair()
}
