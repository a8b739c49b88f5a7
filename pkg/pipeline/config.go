package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML duration strings.
type Duration time.Duration

// UnmarshalYAML parses values like "30s" or "10m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// EngineConfig holds configuration for the verification Engine. All of
// the admission-policy thresholds that varied across revisions of the
// original workflow are explicit here rather than hard-coded.
type EngineConfig struct {
	// MaxUploadSizeMB caps the uploaded archive size.
	MaxUploadSizeMB int `yaml:"maxUploadSizeMB" validate:"gt=0"`

	// TempDir is the scratch root for extraction directories. Empty
	// selects the system default.
	TempDir string `yaml:"tempDir"`

	// SecurityIssueThreshold is the maximum number of security findings
	// tolerated at decision time. Default 0: any finding rejects.
	SecurityIssueThreshold int `yaml:"securityIssueThreshold" validate:"gte=0"`

	// MatchThreshold is the minimum description match score. Default 0.8.
	MatchThreshold float64 `yaml:"matchThreshold" validate:"gte=0,lte=1"`

	// RemediateHighOnly restricts the remediation loop to high-severity
	// findings. When false, any finding re-runs security analysis.
	RemediateHighOnly bool `yaml:"remediateHighOnly"`

	// MaxSecurityRetries bounds the remediation loop: the security
	// analyzer runs at most MaxSecurityRetries+1 times per run.
	MaxSecurityRetries int `yaml:"maxSecurityRetries" validate:"gte=0"`

	// RunTimeout is the overall per-run deadline. YAML accepts duration
	// strings such as "10m".
	RunTimeout Duration `yaml:"runTimeout" validate:"gt=0"`

	// InstallDeps installs the server's declared dependencies before
	// building. Install failure rejects the run.
	InstallDeps bool `yaml:"installDeps"`

	// MaxSubprocesses bounds concurrent build/install subprocesses
	// across runs sharing this engine.
	MaxSubprocesses int64 `yaml:"maxSubprocesses" validate:"gt=0"`

	// Model selects the reasoning-service model.
	Model string `yaml:"model"`

	// BaseURL overrides the reasoning-service endpoint.
	BaseURL string `yaml:"baseURL"`

	// SigningKeyPath points to an Ed25519 JWK used to sign approval
	// attestations. Empty disables signing.
	SigningKeyPath string `yaml:"signingKeyPath"`
}

// DefaultEngineConfig returns the default configuration: the strict
// canonical admission policy.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxUploadSizeMB:        50,
		SecurityIssueThreshold: 0,
		MatchThreshold:         0.8,
		RemediateHighOnly:      true,
		MaxSecurityRetries:     2,
		RunTimeout:             Duration(10 * time.Minute),
		MaxSubprocesses:        4,
	}
}

// LoadConfig reads a YAML config file over the defaults and validates
// the result.
func LoadConfig(path string) (*EngineConfig, error) {
	config := DefaultEngineConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration's field constraints.
func (c *EngineConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
