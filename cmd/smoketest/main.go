package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"match-analyzer/internal/config"
	"match-analyzer/internal/riot"
	"match-analyzer/internal/storage"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to TOML config file")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: smoketest [--config=path] <match_id>")
		fmt.Fprintln(os.Stderr, "  e.g. smoketest NA1_500000000")
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	matchID := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		log.Fatalf("Error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("Starting smoke test for match ID: %s\n", matchID)

	if err := run(ctx, cfg, matchID); err != nil {
		fmt.Printf("\nSmoke test FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nSmoke test PASSED")
}

func run(ctx context.Context, cfg *config.Config, matchID string) error {
	fmt.Printf("0. Validating API key on %s...\n", cfg.Riot.Platform)
	valid, err := riot.NewKeyValidator(riot.WithPlatform(cfg.Riot.Platform)).ValidateKey(ctx, cfg.Riot.APIKey)
	if err != nil {
		return fmt.Errorf("key validation: %w", err)
	}
	if !valid {
		return riot.ErrUnauthorized
	}
	fmt.Println("   Key is valid")

	client, err := cfg.NewRiotClient()
	if err != nil {
		return err
	}
	raw, err := storage.NewRawStore(cfg.Storage.DataDir)
	if err != nil {
		return err
	}

	fmt.Printf("1. Fetching match: %s...\n", matchID)
	match, err := client.GetMatchRaw(ctx, matchID)
	if err != nil {
		return err
	}
	path, err := raw.SaveMatch(matchID, match)
	if err != nil {
		return err
	}
	fmt.Printf("   Match saved to: %s\n", path)

	fmt.Printf("2. Fetching timeline: %s...\n", matchID)
	timeline, err := client.GetTimelineRaw(ctx, matchID)
	if err != nil {
		return err
	}
	path, err = raw.SaveTimeline(matchID, timeline)
	if err != nil {
		return err
	}
	fmt.Printf("   Timeline saved to: %s\n", path)
	return nil
}
