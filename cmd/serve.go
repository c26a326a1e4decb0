package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmonsif/aeroconnect/analysis"
	"github.com/mmonsif/aeroconnect/auth"
	"github.com/mmonsif/aeroconnect/config"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/handlers"
	"github.com/mmonsif/aeroconnect/middleware"
	"github.com/mmonsif/aeroconnect/session"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

var devSeedPassword string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Starts the HTTP API. Without FIREBASE_PROJECT_ID the server runs on an
in-memory store seeded with the demo accounts (development only).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&devSeedPassword, "dev-password", "Passw0rd1", "password of the seeded accounts when running on the in-memory store")
	rootCmd.AddCommand(serveCmd)
}

// backend bundles the store, blob store and their shutdown hook.
type backend struct {
	store db.Store
	blobs db.BlobStore
	close func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if !cfg.FirebaseEnabled() {
		log.Println("⚠️  FIREBASE_PROJECT_ID not set, using the in-memory store")
		store := db.NewMemoryStore()
		if err := db.Seed(ctx, store, devSeedPassword); err != nil {
			return nil, fmt.Errorf("failed to seed in-memory store: %w", err)
		}
		return &backend{store: store, blobs: db.NewMemoryBlobStore(), close: func() {}}, nil
	}

	fs, err := db.NewFirestoreStore(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath, cfg.Firebase.StorageBucket)
	if err != nil {
		return nil, err
	}
	blobs, err := db.NewFirebaseBlobStore(ctx, fs.App(), cfg.Firebase.StorageBucket)
	if err != nil {
		fs.Close()
		return nil, err
	}
	return &backend{store: fs, blobs: blobs, close: func() { fs.Close() }}, nil
}

func serve(cfg *config.Config) error {
	log.Printf("🚀 Starting AeroConnect API Server")
	log.Printf("📍 Environment: %s", cfg.Server.Environment)
	log.Printf("🔧 Port: %s", cfg.Server.Port)

	ctx := context.Background()
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer be.close()

	analyzer, err := analysis.New(ctx, analysis.Config{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		BaseURL:  cfg.AI.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	if c, ok := analyzer.(io.Closer); ok {
		defer c.Close()
	}
	log.Printf("🤖 AI provider: %q", cfg.AI.Provider)

	jwtManager := auth.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.Expiration,
		cfg.JWT.RefreshTokenExpiration,
	)
	log.Printf("🔐 JWT Manager initialized (expiration: %v)", cfg.JWT.Expiration)

	sessions := session.NewManager(be.store, be.blobs, analyzer, session.Options{
		ToastTTL:    cfg.Session.ToastTTL,
		AITimeout:   cfg.AI.Timeout,
		IdleTimeout: cfg.Session.IdleTimeout,
	})
	if err := sessions.StartSweeper(); err != nil {
		return err
	}
	defer sessions.Shutdown()

	// Initialize rate limiter
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	rateLimiter.CleanupOldLimiters(cleanupCtx)
	log.Printf("🛡️  Rate limiter initialized (%d requests per %v)", cfg.RateLimit.Requests, cfg.RateLimit.Window)

	mux := handlers.NewRouter(be.store, sessions, jwtManager, cfg.CORS.AllowedOrigins)

	// Apply global middleware
	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler(mux)
	handler = rateLimiter.Middleware()(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("✅ Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	}

	log.Println("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
	return nil
}
