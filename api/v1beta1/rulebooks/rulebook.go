// Package rulebooks provides the Rulebook configuration kind and the
// embedded preset rulebooks.
package rulebooks

import (
	"embed"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/macropower/cablecat/api"
	"github.com/macropower/cablecat/api/v1beta1"
	"github.com/macropower/cablecat/pkg/classify"
	"github.com/macropower/cablecat/pkg/config"
	"github.com/macropower/cablecat/pkg/rulebook"
	"github.com/macropower/cablecat/pkg/schema"
	"github.com/macropower/cablecat/pkg/yaml"
)

//go:generate go run ../../../internal/schemagen -kind Rulebook -o rulebooks.v1beta1.json

var (
	//go:embed presets/*.yaml
	presetFS embed.FS

	// ValidKinds contains the valid kind values for rulebooks.
	ValidKinds = []string{"Rulebook"}

	// DefaultValidator validates rulebooks against the JSON schema.
	DefaultValidator = yaml.MustNewValidator("/rulebooks.v1beta1.json", schema.MustGenerate(&Rulebook{}))

	// Compile-time interface checks.
	_ v1beta1.Object = (*Rulebook)(nil)
)

// Rulebook is a versioned classification rulebook document.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Rulebook struct {
	rulebook.Rulebook `json:",inline"`
	v1beta1.TypeMeta  `json:",inline"`
	// Metadata identifies this revision of the rulebook.
	Metadata v1beta1.ObjectMeta `json:"metadata" jsonschema:"title=Metadata"`
}

// New creates an empty [Rulebook].
func New() *Rulebook {
	return &Rulebook{
		TypeMeta: v1beta1.TypeMeta{
			APIVersion: v1beta1.APIVersion,
			Kind:       "Rulebook",
		},
	}
}

// EnsureDefaults is a no-op. Rulebooks have no defaults; omissions are
// reported by [Rulebook.Compile].
func (r *Rulebook) EnsureDefaults() {}

func (r Rulebook) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// MarshalYAML serializes the rulebook to YAML.
func (r Rulebook) MarshalYAML() ([]byte, error) {
	type alias Rulebook

	b, err := api.MarshalYAML(alias(r))
	if err != nil {
		return nil, fmt.Errorf("marshal rulebook: %w", err)
	}

	return b, nil
}

// String returns the rulebook name and revision.
func (r *Rulebook) String() string {
	if r.Metadata.Revision == "" {
		return r.Metadata.Name
	}

	return r.Metadata.Name + "@" + r.Metadata.Revision
}

// Presets returns the names of the embedded rulebooks.
func Presets() []string {
	entries, err := presetFS.ReadDir("presets")
	if err != nil {
		panic(err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}

	slices.Sort(names)

	return names
}

// Preset returns the source of the embedded rulebook with the given name.
func Preset(name string) ([]byte, error) {
	if !slices.Contains(Presets(), name) {
		return nil, fmt.Errorf("unknown preset %q, expected one of: %s", name, strings.Join(Presets(), ", "))
	}

	data, err := presetFS.ReadFile("presets/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}

	return data, nil
}

// WritePreset writes the named preset to path so that it can be revised.
func WritePreset(name, path string, force bool) error {
	data, err := Preset(name)
	if err != nil {
		return err
	}

	err = api.WriteDefaultFile(path, data, force, "rulebook")
	if err != nil {
		return fmt.Errorf("write rulebook: %w", err)
	}

	return nil
}

// Source identifies where to load a rulebook from. A non-empty Path takes
// precedence over Preset.
type Source struct {
	Preset string
	Path   string
}

func (s Source) String() string {
	if s.Path != "" {
		return s.Path
	}

	return "preset:" + s.Preset
}

// NewLoader returns a [config.Loader] for the rulebook at src.
func NewLoader(src Source, opts ...config.LoaderOpt) (*config.Loader[*Rulebook], error) {
	if src.Path != "" {
		l, err := config.NewLoaderFromFile(src.Path, New, DefaultValidator, opts...)
		if err != nil {
			return nil, fmt.Errorf("load rulebook %s: %w", src.Path, err)
		}

		return l, nil
	}

	data, err := Preset(src.Preset)
	if err != nil {
		return nil, err
	}

	return config.NewLoaderFromBytes(data, New, DefaultValidator, opts...), nil
}

// Load reads, validates, and compiles the rulebook at src. Errors are
// annotated with the rulebook source.
func Load(src Source, opts ...config.LoaderOpt) (*Rulebook, *classify.Classifier, error) {
	l, err := NewLoader(src, opts...)
	if err != nil {
		return nil, nil, err
	}

	err = l.Validate()
	if err != nil {
		return nil, nil, fmt.Errorf("validate rulebook %s: %w", src, err)
	}

	rb, err := l.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load rulebook %s: %w", src, err)
	}

	c, err := rb.Compile()
	if err != nil {
		return nil, nil, fmt.Errorf("compile rulebook %s: %w", src, l.Wrap(err))
	}

	return rb, c, nil
}
