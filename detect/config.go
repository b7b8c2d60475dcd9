package detect

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Options is the detection configuration surface. The zero value plus
// applyDefaults is a working production setup.
type Options struct {
	// MinConfidence drops forms scoring below it. Default: 0.6.
	MinConfidence float64 `yaml:"min_confidence"`
	// MaxFormsPerPage caps returned forms to bound downstream work.
	// Default: 5.
	MaxFormsPerPage int `yaml:"max_forms_per_page"`
	// SkipJobContext disables job context extraction.
	SkipJobContext bool `yaml:"skip_job_context"`
	// TimeBudget bounds a whole scan including fallback. Exceeding it is a
	// soft failure with partial results. Default: 3s.
	TimeBudget time.Duration `yaml:"time_budget"`
	// PlatformPriority is the identification and fallback order.
	PlatformPriority []Platform `yaml:"platform_priority"`
	// DisableFallback turns off trying other strategies when the primary
	// finds nothing.
	DisableFallback bool `yaml:"disable_fallback"`
	// Weights for the confidence scorer. Zero value means defaults.
	Weights Weights `yaml:"weights"`

	// Keywords and ProfileRules override the built-in heuristic tables.
	Keywords     Keywords      `yaml:"-"`
	ProfileRules []ProfileRule `yaml:"-"`

	Logger *slog.Logger `yaml:"-"`
}

func (o *Options) applyDefaults() {
	if o.MinConfidence <= 0 {
		o.MinConfidence = 0.6
	}
	if o.MaxFormsPerPage <= 0 {
		o.MaxFormsPerPage = 5
	}
	if o.TimeBudget <= 0 {
		o.TimeBudget = 3 * time.Second
	}
	if len(o.PlatformPriority) == 0 {
		o.PlatformPriority = AllPlatforms()
	}
	o.Weights.applyDefaults()
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// LoadOptionsFile reads Options from a YAML file and applies defaults.
func LoadOptionsFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect: read config: %w", err)
	}
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("detect: parse config: %w", err)
	}
	o.applyDefaults()
	return &o, nil
}
