package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/Lllllllleong/identityonboardflow/internal/auth"
	"github.com/Lllllllleong/identityonboardflow/internal/config"
	"github.com/Lllllllleong/identityonboardflow/internal/face"
	"github.com/Lllllllleong/identityonboardflow/internal/obs"
	"github.com/Lllllllleong/identityonboardflow/internal/server"
	"github.com/Lllllllleong/identityonboardflow/internal/store"
)

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		slog.Error("Critical error during service startup", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closeLogs, err := obs.NewLogger(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build logging sink: %w", err)
	}
	defer closeLogs()
	slog.SetDefault(logger)

	documents, err := store.NewFirestoreStore(ctx, cfg.ProjectID, cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("failed to create document store: %w", err)
	}
	defer documents.Close()

	blobs, err := store.NewGCSBlobStore(ctx, cfg.StorageBucket, cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}
	defer blobs.Close()

	var detector face.Detector
	switch cfg.FaceProvider {
	case config.FaceProviderVertex:
		gemini, err := face.NewGeminiDetector(ctx, cfg.ProjectID, cfg.VertexRegion)
		if err != nil {
			return fmt.Errorf("failed to create vertex detector: %w", err)
		}
		defer gemini.Close()
		detector = gemini
	default:
		detector = face.NewRESTDetector(cfg.FaceAPIEndpoint, cfg.FaceAPIKey, logger)
	}

	var gate *auth.Gate
	if !cfg.AuthDisabled {
		gate = auth.NewGate(auth.NewJWTVerifier(cfg.AuthJWTSecret))
	} else {
		logger.Warn("Authentication is disabled; all routes are open")
	}

	srv := server.New(cfg, logger, gate, documents, blobs, detector)
	if err := funcframework.RegisterHTTPFunctionContext(ctx, "/", srv.Handler().ServeHTTP); err != nil {
		return fmt.Errorf("failed to register HTTP function: %w", err)
	}

	logger.Info("Identity backend initialized.",
		"port", cfg.Port,
		"faceProvider", cfg.FaceProvider,
		"usersCollection", cfg.UsersCollection,
	)
	return funcframework.Start(cfg.Port)
}
