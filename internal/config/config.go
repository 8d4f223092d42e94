// Package config loads all service configuration from the environment.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Face detection providers.
const (
	FaceProviderREST   = "rest"
	FaceProviderVertex = "vertex"
)

// Config holds every tunable the service reads at startup. Clients are
// constructed from it once in the entry point and injected into handlers.
type Config struct {
	Port            string
	ProjectID       string
	StorageBucket   string
	UsersCollection string
	CredentialsFile string
	AuthJWTSecret   string
	AuthDisabled    bool
	FaceProvider    string
	FaceAPIEndpoint string
	FaceAPIKey      string
	VertexRegion    string
	LogFile         string
	CloudLogging    bool
	MaxUploadBytes  int64
	ListEnrichLimit int
}

// Load reads the environment and validates required values.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("USERS_COLLECTION", "users")
	v.SetDefault("FACE_PROVIDER", FaceProviderREST)
	v.SetDefault("VERTEX_REGION", "us-central1")
	v.SetDefault("MAX_UPLOAD_BYTES", int64(5*1024*1024))
	v.SetDefault("LIST_ENRICH_LIMIT", 10)

	cfg := &Config{
		Port:            v.GetString("PORT"),
		ProjectID:       v.GetString("GCP_PROJECT_ID"),
		StorageBucket:   v.GetString("STORAGE_BUCKET"),
		UsersCollection: v.GetString("USERS_COLLECTION"),
		CredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
		AuthJWTSecret:   v.GetString("AUTH_JWT_SECRET"),
		AuthDisabled:    v.GetBool("AUTH_DISABLED"),
		FaceProvider:    v.GetString("FACE_PROVIDER"),
		FaceAPIEndpoint: v.GetString("FACE_API_ENDPOINT"),
		FaceAPIKey:      v.GetString("FACE_API_KEY"),
		VertexRegion:    v.GetString("VERTEX_REGION"),
		LogFile:         v.GetString("LOG_FILE"),
		CloudLogging:    v.GetBool("CLOUD_LOGGING_ENABLED"),
		MaxUploadBytes:  v.GetInt64("MAX_UPLOAD_BYTES"),
		ListEnrichLimit: v.GetInt("LIST_ENRICH_LIMIT"),
	}
	if err := cfg.sanityCheck(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) sanityCheck() error {
	if c.ProjectID == "" {
		return fmt.Errorf("GCP_PROJECT_ID environment variable must be set")
	}
	if c.StorageBucket == "" {
		return fmt.Errorf("STORAGE_BUCKET environment variable must be set")
	}
	if !c.AuthDisabled && c.AuthJWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET environment variable must be set unless AUTH_DISABLED=true")
	}
	switch c.FaceProvider {
	case FaceProviderREST:
		if c.FaceAPIEndpoint == "" || c.FaceAPIKey == "" {
			return fmt.Errorf("FACE_API_ENDPOINT and FACE_API_KEY must be set for the rest face provider")
		}
	case FaceProviderVertex:
		if c.VertexRegion == "" {
			return fmt.Errorf("VERTEX_REGION must be set for the vertex face provider")
		}
	default:
		return fmt.Errorf("unknown FACE_PROVIDER %q", c.FaceProvider)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}
