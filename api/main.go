package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"janus/api/auth"
	"janus/api/config"
	"janus/api/cutover"
	"janus/api/handler"
	"janus/api/health"
	"janus/api/hub"
	"janus/api/k8s"
	"janus/api/storage"
	"janus/api/store"
)

var Version = "dev"

func main() {
	cfg := config.Load()

	db, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		log.Fatalf("migration: %v", err)
	}

	if err := db.RecoverInFlightDeployments(context.Background()); err != nil {
		log.Printf("WARNING: deployment recovery: %v", err)
	}

	var orch cutover.Orchestrator
	kube, err := k8s.NewClient(cfg.Namespace, cfg.AppsDir)
	if err != nil {
		log.Printf("WARNING: k8s unavailable (%v), deploys disabled", err)
	} else {
		orch = kube
	}

	var s3Client *storage.Client
	if cfg.S3Endpoint != "" {
		s3Client, err = storage.NewClient(storage.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Printf("WARNING: S3 storage unavailable (%v)", err)
		} else if err := s3Client.EnsureBucket(context.Background()); err != nil {
			log.Printf("WARNING: S3 bucket: %v", err)
			s3Client = nil
		} else {
			log.Println("S3 archive connected at " + cfg.S3Endpoint)
		}
	}

	// Parse allowed origins: always include localhost, plus configured extras.
	allowedOrigins := []string{"http://localhost:5173", "http://localhost:3000"}
	if cfg.AllowedOrigins != "" {
		for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}

	ws := hub.New(allowedOrigins)
	go ws.Run()

	poller := &health.Poller{
		DB:      db,
		WS:      ws,
		AppsDir: cfg.AppsDir,
	}

	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	defer pollerCancel()
	go poller.Run(pollerCtx)

	h := handler.New(db, orch, ws, cfg, s3Client)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// JWT session auth (when configured)
	if cfg.JWTSecret != "" {
		verifier := auth.NewVerifier(cfg.JWTSecret, 0)
		r.Use(verifier.Middleware("/ws", "/api/health", "/api/version", "/api/webhooks/push"))
		log.Println("JWT auth enabled")
	}

	// Optional static bearer token when JANUS_API_TOKEN is set
	if cfg.APIToken != "" {
		r.Use(bearerAuth(cfg.APIToken))
		log.Println("API token auth enabled")
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"version": Version})
		})
		r.Post("/webhooks/push", h.WebhookPush)
		r.Get("/apps", h.ListApps)
		r.Get("/deployments", h.ListAllDeployments)
		r.Route("/apps/{id}", func(r chi.Router) {
			r.Use(handler.ValidateAppID)
			r.Get("/", h.GetApp)
			r.Get("/status", h.AppStatus)
			r.Post("/deploy", h.Deploy)
			r.Post("/promote", h.Promote)
			r.Get("/health-checks", h.GetHealthHistory)
		})
	})

	r.Get("/ws", ws.HandleConnect)

	srv := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("janus %s listening on %s:%s", Version, cfg.BindAddr, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for WebSocket upgrade, health check and webhooks
			if r.URL.Path == "/ws" || r.URL.Path == "/api/health" || r.URL.Path == "/api/version" || r.URL.Path == "/api/webhooks/push" {
				next.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(header[7:]), []byte(token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
