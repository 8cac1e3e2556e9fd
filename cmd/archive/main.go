package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"match-analyzer/internal/archive"
	"match-analyzer/internal/collector"
	"match-analyzer/internal/config"
	"match-analyzer/internal/storage"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to TOML config file")
	prefix := flag.String("prefix", "", "Object key prefix (default from config, raw/)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *prefix != "" {
		cfg.S3.Prefix = *prefix
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := cfg.RequireS3(); err != nil {
		log.Fatalf("Error: %v", err)
	}

	ctx, cancel := collector.SetupSignalHandler(context.Background(), nil)
	defer cancel()

	raw, err := storage.NewRawStore(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to open data dir: %v", err)
	}

	client, err := archive.NewS3Client(ctx, archive.S3Config{
		Bucket:         cfg.S3.Bucket,
		Region:         cfg.S3.Region,
		Endpoint:       cfg.S3.Endpoint,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	fmt.Printf("Archiving %s to s3://%s/%s\n", raw.Dir(), cfg.S3.Bucket, cfg.S3.Prefix)

	a := archive.New(raw, client, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.Concurrency)
	res, err := a.Archive(ctx)
	if err != nil {
		log.Fatalf("Archive failed: %v", err)
	}
	fmt.Printf("Uploaded %d files (%d bytes), %d already archived\n", res.Uploaded, res.Bytes, res.Skipped)
}
