// consumo-admin runs the out-of-band operator commands: schema
// initialization and the one-shot catalog import.
package main

import (
	"context"
	"fmt"
	"os"

	"consumo/internal/catalog"
	"consumo/internal/cli"
	"consumo/internal/storage"
)

const usage = `Usage: consumo-admin <command>

Commands:
  init-db               create or upgrade the database schema
  load-catalog [file]   load products from a CSV price list
                        (defaults to CATALOG_FILE from the environment)
`

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg := cli.LoadAndValidateConfig(logger)

	switch os.Args[1] {
	case "init-db":
		if err := storage.RunMigrations(cfg.DBPath()); err != nil {
			logger.Error("Schema initialization failed", "error", err, "db", cfg.DBPath())
			os.Exit(1)
		}
		fmt.Printf("Database initialized at %s\n", cfg.DBPath())

	case "load-catalog":
		path := cfg.CatalogFile
		if len(os.Args) > 2 {
			path = os.Args[2]
		}

		repo := cli.OpenRepository(logger, cfg.DBPath())
		defer repo.Close()

		loader := catalog.NewLoader(repo)
		res, err := loader.LoadFile(context.Background(), path)
		if err != nil {
			logger.Error("Catalog load failed", "error", err, "file", path)
			os.Exit(1)
		}
		fmt.Printf("Catalog loaded from %s: %d created, %d skipped\n", path, res.Created, res.Skipped)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
}
