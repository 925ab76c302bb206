package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ManifestFile is the file name of a manifest inside an export directory.
const ManifestFile = "manifest.json"

// ManifestVersion is written into new manifests.
const ManifestVersion = "1.0"

// DefaultMinMemoryGB is the host memory recommended for serving an export.
const DefaultMinMemoryGB = 4

var requiredManifestFields = []string{"version", "created_at", "desktop_config", "pi_requirements"}

// Manifest describes how an index was built and what a serving host needs.
type Manifest struct {
	Version          string           `json:"version"`
	CreatedAt        string           `json:"created_at"`
	ExportType       string           `json:"export_type,omitempty"`
	BuildConfig      BuildConfig      `json:"desktop_config"`
	HostRequirements HostRequirements `json:"pi_requirements"`
	Statistics       *Statistics      `json:"statistics,omitempty"`
}

// BuildConfig records the models used on the host that built the index.
type BuildConfig struct {
	EmbeddingModel     string `json:"embedding_model,omitempty"`
	EmbeddingDimension *int   `json:"embedding_dimension,omitempty"`
	VisionModel        string `json:"vision_model,omitempty"`
}

// HostRequirements records what a serving host should run.
type HostRequirements struct {
	ConversationalModel string   `json:"conversational_model,omitempty"`
	MinMemoryGB         *float64 `json:"min_memory_gb,omitempty"`
	EmbeddingDimension  *int     `json:"embedding_dimension,omitempty"`
}

// Statistics summarizes an export.
type Statistics struct {
	TotalChunks    int `json:"total_chunks"`
	TotalDocuments int `json:"total_documents"`
}

// NewManifest returns a manifest stamped with the current version and time.
func NewManifest(embeddingModel string, dimension int, conversationalModel string, stats Statistics) Manifest {
	mem := float64(DefaultMinMemoryGB)
	return Manifest{
		Version:    ManifestVersion,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		ExportType: "full",
		BuildConfig: BuildConfig{
			EmbeddingModel:     embeddingModel,
			EmbeddingDimension: &dimension,
		},
		HostRequirements: HostRequirements{
			ConversationalModel: conversationalModel,
			MinMemoryGB:         &mem,
			EmbeddingDimension:  &dimension,
		},
		Statistics: &stats,
	}
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest at path without validating it.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("reading manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}

// Validation is the result of checking a manifest against this host.
// Only Errors make it invalid; Warnings are informational.
type Validation struct {
	Valid                   bool     `json:"valid"`
	EmbeddingDimensionMatch bool     `json:"embedding_dimension_match"`
	ModelCompatible         bool     `json:"model_compatible"`
	Errors                  []string `json:"errors"`
	Warnings                []string `json:"warnings"`
}

func (v *Validation) addError(msg string) {
	log.Printf("loader: manifest: %s", msg)
	v.Errors = append(v.Errors, msg)
}

func (v *Validation) addWarning(msg string) {
	log.Printf("loader: manifest: %s", msg)
	v.Warnings = append(v.Warnings, msg)
}

// Environment describes the current host for manifest checks.
type Environment struct {
	EmbeddingModel string
	// Dimension reports what the configured embedding provider produces.
	// Nil means no provider is available.
	Dimension           func(ctx context.Context) (int, error)
	ConversationalModel string
	// MemoryGB reports total host memory. Nil uses HostMemoryGB.
	MemoryGB func() (float64, error)
}

// ValidateManifest checks the manifest at path against env. A missing
// manifest is valid with a warning. An unreadable manifest or one missing
// required fields is invalid. An embedding dimension mismatch is an error;
// model and memory mismatches are warnings.
func ValidateManifest(ctx context.Context, path string, env Environment) Validation {
	log.Printf("loader: validating manifest at %s", path)
	v := Validation{Errors: []string{}, Warnings: []string{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		v.Valid = true
		v.addWarning(fmt.Sprintf("Manifest file not found at %s. Proceeding with default settings, but compatibility cannot be verified.", path))
		return v
	}
	if err != nil {
		v.addError(fmt.Sprintf("Failed to validate manifest: %v", err))
		return v
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			v.addError(fmt.Sprintf("Manifest file is not valid JSON: %v", err))
		} else {
			v.addError(fmt.Sprintf("Failed to validate manifest: %v", err))
		}
		return v
	}

	var missing []string
	for _, f := range requiredManifestFields {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		v.addError(fmt.Sprintf("Manifest is missing required fields: %s", strings.Join(missing, ", ")))
		return v
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		v.addError(fmt.Sprintf("Failed to validate manifest: %v", err))
		return v
	}

	v.EmbeddingDimensionMatch = checkDimension(ctx, &v, m, env)

	current := env.ConversationalModel
	if want := m.HostRequirements.ConversationalModel; want != "" && want != current {
		v.addWarning(fmt.Sprintf("Model mismatch: manifest recommends %s, but current configuration uses %s. This may affect response quality.", want, current))
	} else {
		v.ModelCompatible = true
		log.Printf("loader: manifest: model configuration compatible: %s", current)
	}

	if minGB := m.HostRequirements.MinMemoryGB; minGB != nil && *minGB > 0 {
		memFn := env.MemoryGB
		if memFn == nil {
			memFn = HostMemoryGB
		}
		total, err := memFn()
		switch {
		case err != nil:
			log.Printf("loader: manifest: cannot check memory requirements: %v", err)
		case total < *minGB:
			v.addWarning(fmt.Sprintf("System memory (%.1fGB) is below recommended minimum (%gGB). Performance may be degraded.", total, *minGB))
		default:
			log.Printf("loader: manifest: memory requirements met: %.1fGB available", total)
		}
	}

	v.Valid = len(v.Errors) == 0
	if v.Valid {
		log.Printf("loader: manifest validation passed")
	} else {
		log.Printf("loader: manifest validation failed with %d errors", len(v.Errors))
	}
	return v
}

func checkDimension(ctx context.Context, v *Validation, m Manifest, env Environment) bool {
	declared := m.BuildConfig.EmbeddingDimension
	if declared == nil {
		v.addWarning("Manifest does not specify embedding dimension")
		return false
	}
	if env.Dimension == nil {
		v.addWarning("Could not verify embedding dimensions: no embedding provider available")
		return false
	}
	actual, err := env.Dimension(ctx)
	if err != nil {
		v.addWarning(fmt.Sprintf("Could not verify embedding dimensions: %v", err))
		return false
	}
	if actual != *declared {
		v.addError(fmt.Sprintf("Embedding dimension mismatch: manifest specifies %d, but model %s produces %d dimensions", *declared, env.EmbeddingModel, actual))
		return false
	}
	log.Printf("loader: manifest: embedding dimensions match: %d", actual)
	return true
}
