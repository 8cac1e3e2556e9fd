package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"match-analyzer/internal/collector"
	"match-analyzer/internal/config"
	"match-analyzer/internal/db"
	"match-analyzer/internal/discord"
	"match-analyzer/internal/storage"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to TOML config file")
	user := flag.String("user", "", "Riot ID (GameName#TagLine)")
	puuid := flag.String("puuid", "", "Direct PUUID (defaults to RIOT_PUUID)")
	notify := flag.Bool("notify", false, "Post the run summary to the Discord webhook")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := collector.SetupSignalHandler(context.Background(), nil)
	defer cancel()

	target := *puuid
	if target == "" {
		target = cfg.Riot.PUUID
	}
	if *user != "" {
		if err := cfg.RequireAPIKey(); err != nil {
			log.Fatalf("Error: %v", err)
		}
		target, err = lookupRiotID(ctx, cfg, *user)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	}
	if target == "" {
		fmt.Println("Error: provide --user or --puuid, or set RIOT_PUUID")
		os.Exit(1)
	}

	raw, err := storage.NewRawStore(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to open data dir: %v", err)
	}

	store, err := db.Open(ctx, db.Config{
		Driver:    cfg.Database.Driver,
		URL:       cfg.Database.URL,
		AuthToken: cfg.Database.AuthToken,
	})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	fmt.Printf("Processing data for PUUID: %s\n", target)

	c := collector.New(nil, raw, store, collector.Config{})
	if *notify && cfg.Notify.DiscordWebhookURL != "" {
		c.SetNotifier(discord.NewWebhookClient(cfg.Notify.DiscordWebhookURL).SendRunSummary)
	}

	if _, err := c.Process(ctx, target); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("[Shutdown] Processing interrupted.")
			return
		}
		store.Close()
		log.Fatalf("Process failed: %v", err)
	}
}

func lookupRiotID(ctx context.Context, cfg *config.Config, riotID string) (string, error) {
	gameName, tagLine, err := config.ParseRiotID(riotID)
	if err != nil {
		return "", err
	}

	client, err := cfg.NewRiotClient()
	if err != nil {
		return "", err
	}

	fmt.Printf("Resolving PUUID for %s#%s...\n", gameName, tagLine)
	account, err := client.GetAccountByRiotID(ctx, gameName, tagLine)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", riotID, err)
	}
	return account.PUUID, nil
}
