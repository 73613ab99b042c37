// Package configs provides the global Configuration type for cablecat.
package configs

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/cablecat/api"
	"github.com/macropower/cablecat/api/v1beta1"
	"github.com/macropower/cablecat/pkg/schema"
	"github.com/macropower/cablecat/pkg/yaml"
)

//go:generate go run ../../../internal/schemagen -kind Configuration -o configs.v1beta1.json

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	// ValidKinds contains the valid kind values for global configurations.
	ValidKinds = []string{"Configuration"}

	// DefaultValidator validates global configuration against the JSON schema.
	DefaultValidator = yaml.MustNewValidator("/configs.v1beta1.json", schema.MustGenerate(&Config{}))

	validate = validator.New(validator.WithRequiredStructEnabled())

	// Compile-time interface checks.
	_ v1beta1.Object = (*Config)(nil)
)

// Config represents the global cablecat configuration.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	// Rulebook selects the rulebook to classify with.
	Rulebook *RulebookConfig `json:"rulebook,omitempty" jsonschema:"title=Rulebook"`
	// Input configures how asset tables are read.
	Input *InputConfig `json:"input,omitempty" jsonschema:"title=Input"`
	// Output configures how classified tables are written.
	Output *OutputConfig `json:"output,omitempty" jsonschema:"title=Output"`
	// Catalog configures value catalogs.
	Catalog *CatalogConfig `json:"catalog,omitempty" jsonschema:"title=Catalog"`
	// Classify configures the classification run.
	Classify *ClassifyConfig `json:"classify,omitempty" jsonschema:"title=Classify"`
	// Telemetry configures trace export.
	Telemetry *TelemetryConfig `json:"telemetry,omitempty" jsonschema:"title=Telemetry"`
	// Serve configures the MCP server.
	Serve            *ServeConfig `json:"serve,omitempty" jsonschema:"title=Serve"`
	v1beta1.TypeMeta `json:",inline"`
}

// New creates a new global [Config] with default values.
func New() *Config {
	c := &Config{
		TypeMeta: v1beta1.TypeMeta{
			APIVersion: v1beta1.APIVersion,
			Kind:       "Configuration",
		},
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes nil fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.Rulebook == nil {
		c.Rulebook = &RulebookConfig{}
	}
	c.Rulebook.EnsureDefaults()

	if c.Input == nil {
		c.Input = &InputConfig{}
	}
	c.Input.EnsureDefaults()

	if c.Output == nil {
		c.Output = &OutputConfig{}
	}
	c.Output.EnsureDefaults()

	if c.Catalog == nil {
		c.Catalog = &CatalogConfig{}
	}
	c.Catalog.EnsureDefaults()

	if c.Classify == nil {
		c.Classify = &ClassifyConfig{}
	}

	if c.Telemetry == nil {
		c.Telemetry = &TelemetryConfig{}
	}
	c.Telemetry.EnsureDefaults()

	if c.Serve == nil {
		c.Serve = &ServeConfig{}
	}
	c.Serve.EnsureDefaults()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}

	var errs []error
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s: failed %q constraint", fe.Namespace(), fe.Tag()))
	}

	return fmt.Errorf("validate config: %w", errors.Join(errs...))
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// MarshalYAML serializes the config to YAML.
func (c Config) MarshalYAML() ([]byte, error) {
	type alias Config

	b, err := api.MarshalYAML(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return b, nil
}

// Write writes the config to the specified path if it doesn't already exist.
func (c Config) Write(path string) error {
	b, err := c.MarshalYAML()
	if err != nil {
		return err
	}

	err = api.WriteIfNotExists(path, b)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// WriteDefault writes the embedded default config.yaml to the specified path.
func WriteDefault(path string, force bool) error {
	err := api.WriteDefaultFile(path, defaultConfigYAML, force, "configuration")
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}

// GetPath returns the path to the global configuration file.
func GetPath() string {
	return api.GetConfigPath("config.yaml")
}
