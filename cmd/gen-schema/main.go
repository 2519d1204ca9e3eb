// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

// Command gen-schema generates the JSON Schema files for the config and seed documents.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/redinnova/innovanet/internal/config"
	"github.com/redinnova/innovanet/internal/schema"
	"github.com/redinnova/innovanet/internal/seed"
)

var documents = map[string]schema.Document{
	"config.schema.json": config.Document,
	"seed.schema.json":   seed.Document,
}

func main() {
	if err := os.MkdirAll("schemas", 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	for name, doc := range documents {
		data, err := doc.Generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating %s: %v\n", name, err)
			os.Exit(1)
		}

		outPath := filepath.Join("schemas", name)
		if err := os.WriteFile(outPath, data, 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s\n", outPath)
	}
}
