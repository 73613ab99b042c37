// Package config loads cablecat configuration documents.
//
// A [Loader] decodes a YAML document, validates it against a JSON schema,
// and formats errors with the annotated source so that analysts can find
// the offending line in a rulebook or configuration file.
package config
