package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/thotranphuc276/person-detection/internal/bootstrap"
	"github.com/thotranphuc276/person-detection/internal/config"
	"github.com/thotranphuc276/person-detection/internal/logger"
	"github.com/thotranphuc276/person-detection/internal/repository/sqlite"
	"github.com/thotranphuc276/person-detection/internal/service/telemetry"
)

// provision prepares the stores without starting the API: it creates the
// detection schema and installs the telemetry index template.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path (empty to skip)")
	esURL := flag.String("es", cfg.ElasticsearchURL, "Elasticsearch URL (empty to skip)")
	prefix := flag.String("prefix", telemetry.DefaultIndexPrefix, "Telemetry index prefix")
	attempts := flag.Int("attempts", cfg.ConnectMaxAttempts, "Connection attempts per store")
	delay := flag.Duration("delay", cfg.ConnectRetryDelay, "Delay between connection attempts")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	out := logger.NewWithWriter(os.Stdout, cfg.Debug)
	connector := bootstrap.NewConnector(bootstrap.Policy{MaxAttempts: *attempts, RetryDelay: *delay}, out)

	failed := false

	if *dbPath != "" {
		db, err := bootstrap.Connect(ctx, connector, "database "+*dbPath, sqlite.Dial(*dbPath))
		if err != nil {
			out.Error("%v", err)
			failed = true
		} else {
			if err := db.Migrate(ctx); err != nil {
				out.Error("%v", err)
				failed = true
			} else {
				fmt.Printf("Database schema ready at %s\n", db.Path())
			}
			db.Close()
		}
	}

	if *esURL != "" {
		es, err := bootstrap.Connect(ctx, connector, "elasticsearch "+*esURL,
			telemetry.DialElasticsearch(telemetry.ElasticOptions{Address: *esURL, InsecureSkipVerify: !cfg.IsProduction()}))
		if err != nil {
			out.Error("%v", err)
			failed = true
		} else {
			if err := telemetry.ProvisionTemplate(ctx, es, *prefix); err != nil {
				out.Error("Failed to create index template: %v", err)
				failed = true
			} else {
				fmt.Printf("Index template %s installed for %s-*\n", telemetry.TemplateName(*prefix), *prefix)
			}
			es.Close()
		}
	}

	if failed {
		os.Exit(1)
	}
}
