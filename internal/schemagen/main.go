package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/macropower/cablecat/api/v1beta1/configs"
	"github.com/macropower/cablecat/api/v1beta1/rulebooks"
	"github.com/macropower/cablecat/pkg/schema"
)

const modulePath = "github.com/macropower/cablecat"

var (
	outFile = flag.String("o", "schema.json", "Output file for the generated schema")
	kind    = flag.String("kind", "Configuration", "Kind to generate, one of: Configuration, Rulebook")
	root    = flag.String("root", "../../..", "Repository root, used to read doc comments")
)

func main() {
	flag.Parse()

	out, err := filepath.Abs(*outFile)
	if err != nil {
		log.Fatalf("resolve output path: %v", err)
	}

	var (
		obj   any
		paths []string
	)

	switch *kind {
	case "Configuration":
		obj = configs.New()
		paths = []string{"./api/v1beta1", "./api/v1beta1/configs"}
	case "Rulebook":
		obj = rulebooks.New()
		paths = []string{"./api/v1beta1", "./api/v1beta1/rulebooks", "./pkg/rulebook", "./pkg/rule", "./pkg/predicate", "./pkg/record"}
	default:
		log.Fatalf("unknown kind %q", *kind)
	}

	// Doc comments are keyed by import path, so they must be read from the
	// repository root.
	err = os.Chdir(*root)
	if err != nil {
		log.Fatalf("change to repository root: %v", err)
	}

	gen, err := schema.NewGenerator(schema.WithGoComments(modulePath, paths...))
	if err != nil {
		log.Fatalf("create generator: %v", err)
	}

	jsData, err := gen.Generate(obj)
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	err = os.WriteFile(out, jsData, 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
