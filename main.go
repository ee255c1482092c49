package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/username/wealthfolio/backend/src/config"
	"github.com/username/wealthfolio/backend/src/database"
	"github.com/username/wealthfolio/backend/src/handlers"
	"github.com/username/wealthfolio/backend/src/logger"
	"github.com/username/wealthfolio/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Wealthfolio backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing services and handlers...")
	ledgerService := services.NewLedgerService(database.DB)
	securityResolver := services.NewSecurityResolver(services.ResolverConfig{
		FundSearchBaseURL:  config.Cfg.FundSearchBaseURL,
		QuoteLookupBaseURL: config.Cfg.QuoteLookupBaseURL,
		Timeout:            config.Cfg.ResolverTimeout,
		CacheTTL:           config.Cfg.ResolverCacheTTL,
		RateLimit:          config.Cfg.ResolverRateLimit,
		RateBurst:          config.Cfg.ResolverRateBurst,
		MaxAttempts:        config.Cfg.ResolverMaxAttempts,
	})
	importService := services.NewImportService(
		ledgerService, securityResolver,
		config.Cfg.SessionTTL, config.Cfg.MaxParallelFiles,
	)

	importHandler := handlers.NewImportHandler(importService)
	holdingsHandler := handlers.NewHoldingsHandler(ledgerService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/import/upload", importHandler.HandleUpload)
	apiRouter.HandleFunc("POST /api/import/manual", importHandler.HandleManual)
	apiRouter.HandleFunc("POST /api/import/commit", importHandler.HandleCommit)
	apiRouter.HandleFunc("GET /api/holdings", holdingsHandler.HandleGetHoldings)
	apiRouter.HandleFunc("GET /api/holdings/duplicates", holdingsHandler.HandleGetDuplicateGroups)
	apiRouter.HandleFunc("GET /api/holdings/export", holdingsHandler.HandleExportHoldings)
	apiRouter.HandleFunc("GET /api/asset-classes", holdingsHandler.HandleGetAssetClasses)

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "WEALTHFOLIO Backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
