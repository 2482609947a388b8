// Package config defines the validated Configuration value the core
// consumes. Parsing a configuration file and wiring a CLI front-end
// are out of scope — this package only validates an in-memory value
// and applies/reverts profiles.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Profile names the policy configuration in effect.
type Profile string

const (
	Dev    Profile = "Dev"
	Prod   Profile = "Prod"
	Custom Profile = "Custom"
)

type (
	// Configuration is the validated value the runtime is built from.
	Configuration struct {
		Profile       Profile `validate:"required,oneof=Dev Prod Custom"`
		ProfileName   string  `validate:"required_if=Profile Custom"`
		ProfileConfig map[string]any

		Database DatabaseConfig `validate:"required"`
		Cache    CacheConfig
		Health   HealthConfig
		Batch    BatchConfig
		AI       AIConfig
	}

	// DatabaseConfig carries the vector store / persistence connection. The
	// concrete store implementation is an external collaborator; the
	// core only validates the connection string is present.
	DatabaseConfig struct {
		ConnectionString string `validate:"required"`
	}

	// CacheConfig sizes the in-process LRU caches (usage guides, embeddings).
	CacheConfig struct {
		Path string
		Size int `validate:"gte=0"`
	}

	// HealthConfig toggles the health endpoint/aggregator.
	HealthConfig struct {
		Enabled bool
		Config  map[string]any
	}

	// BatchConfig bounds batched operations (promotion sweeps, backups).
	BatchConfig struct {
		MaxBatchSize int `validate:"gte=0"`
	}

	// AIConfig configures the embedding provider contract: the provider
	// itself is external; this records the shape the core expects.
	AIConfig struct {
		Embedding  EmbeddingConfig
		Reranking  RerankingConfig
	}

	// EmbeddingConfig describes the fixed-dimension embedding contract.
	EmbeddingConfig struct {
		Model     string `validate:"required"`
		MaxLength int    `validate:"gt=0"`
		BatchSize int    `validate:"gt=0"`
		Dim       int    `validate:"gt=0"`
		UseGPU    bool
	}

	// RerankingConfig bounds the optional reranking pass.
	RerankingConfig struct {
		Enabled bool
		TopN    int `validate:"gte=0"`
	}
)

var validate = validator.New()

// Validate applies struct-tag validation to the configuration. Absence of
// Database.ConnectionString is a validation error.
func (c Configuration) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyProfile returns a copy of c with Profile (and ProfileName, for
// Custom) set to the requested profile. The result's Profile field is
// guaranteed to match the applied profile, so
// Config -> ApplyProfile -> RevertProfile -> ApplyProfile round-trips.
func (c Configuration) ApplyProfile(p Profile, name string) Configuration {
	cp := c
	cp.Profile = p
	if p == Custom {
		cp.ProfileName = name
	} else {
		cp.ProfileName = ""
	}
	return cp
}

// RevertProfile returns a copy of c with the profile reset to prior,
// mirroring ApplyProfile so the pair is inverse operations on the Profile
// fields alone (the rest of the configuration is untouched by either).
func (c Configuration) RevertProfile(prior Profile, priorName string) Configuration {
	return c.ApplyProfile(prior, priorName)
}
