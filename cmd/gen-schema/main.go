// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Command gen-schema writes the JSON Schema for the API request bodies.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/geoelevate/geoelevate/internal/web"
)

func main() {
	out := flag.String("out", filepath.Join("schemas", "api.schema.json"), "output file")
	flag.Parse()

	schema, err := web.GenerateSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, schema, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s\n", *out)
}
