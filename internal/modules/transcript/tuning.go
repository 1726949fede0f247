package transcript

import (
	"embed"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/inkbridge-backend/internal/logger"
)

const tuningEnv = "TRANSCRIPT_TUNING_YAML"

//go:embed tuning.yaml
var tuningFS embed.FS

// Tuning holds the engine's adjustable constants. The match tolerance in
// particular is deliberately a knob: vertical-overlap matching is heuristic
// and the right value depends on the handwriting.
type Tuning struct {
	MatchTolerance  float64 `yaml:"match_tolerance"`
	ChunkCapacity   int     `yaml:"chunk_capacity"`
	IndentUnit      float64 `yaml:"indent_unit"`
	RenderScale     float64 `yaml:"render_scale"`
	PageConcurrency int     `yaml:"page_concurrency"`
	LeaseTTLSeconds int     `yaml:"lease_ttl_seconds"`
}

func DefaultTuning() Tuning {
	return Tuning{
		MatchTolerance:  5,
		ChunkCapacity:   800,
		IndentUnit:      10,
		RenderScale:     6,
		PageConcurrency: 4,
		LeaseTTLSeconds: 120,
	}
}

// LoadTuning reads the override file named by TRANSCRIPT_TUNING_YAML, then
// the embedded defaults, then hardcoded defaults, taking the first that
// parses. Bad overrides never stop a worker from starting.
func LoadTuning(log *logger.Logger) Tuning {
	if path := strings.TrimSpace(os.Getenv(tuningEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			if t, err := parseTuning(raw); err == nil {
				log.Info("Loaded tuning overrides", "path", path)
				return t
			} else {
				log.Warn("Ignoring invalid tuning overrides", "path", path, "error", err)
			}
		} else {
			log.Warn("Could not read tuning overrides", "path", path, "error", err)
		}
	}

	raw, err := tuningFS.ReadFile("tuning.yaml")
	if err == nil {
		if t, err := parseTuning(raw); err == nil {
			return t
		}
	}
	return DefaultTuning()
}

func parseTuning(raw []byte) (Tuning, error) {
	t := DefaultTuning()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, err
	}
	if t.MatchTolerance <= 0 {
		t.MatchTolerance = DefaultTuning().MatchTolerance
	}
	if t.ChunkCapacity <= 0 {
		t.ChunkCapacity = DefaultTuning().ChunkCapacity
	}
	if t.IndentUnit <= 0 {
		t.IndentUnit = DefaultTuning().IndentUnit
	}
	if t.RenderScale <= 0 {
		t.RenderScale = DefaultTuning().RenderScale
	}
	if t.PageConcurrency <= 0 {
		t.PageConcurrency = DefaultTuning().PageConcurrency
	}
	if t.LeaseTTLSeconds <= 0 {
		t.LeaseTTLSeconds = DefaultTuning().LeaseTTLSeconds
	}
	return t, nil
}
