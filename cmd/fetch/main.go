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
	"match-analyzer/internal/riot"
	"match-analyzer/internal/storage"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to TOML config file")
	user := flag.String("user", "", "Riot ID (GameName#TagLine)")
	puuid := flag.String("puuid", "", "Direct PUUID (defaults to RIOT_PUUID)")
	count := flag.Int("count", 20, "Number of matches to fetch")
	queue := flag.Int("queue", 0, "Queue id filter, e.g. 420 for ranked solo (0 = any)")
	matchType := flag.String("type", "", "Match type filter: ranked, normal, tourney, tutorial")
	notify := flag.Bool("notify", false, "Post the run summary to the Discord webhook")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *queue != 0 {
		cfg.Riot.Queue = *queue
	}
	if *matchType != "" {
		cfg.Riot.Type = *matchType
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		log.Fatalf("Error: %v", err)
	}
	if *count <= 0 {
		log.Fatalf("Error: --count must be positive")
	}
	if *user == "" && *puuid == "" && cfg.Riot.PUUID == "" {
		fmt.Println("Usage:")
		fmt.Println("  fetch --user='GameName#TagLine' [--count=20] [--queue=420] [--type=ranked]")
		fmt.Println("  fetch --puuid=PUUID [--count=20]")
		os.Exit(1)
	}

	ctx, cancel := collector.SetupSignalHandler(context.Background(), func() {
		fmt.Println("\n[Shutdown] Gracefully shutting down...")
	})
	defer cancel()

	client, err := cfg.NewRiotClient()
	if err != nil {
		log.Fatalf("Failed to create Riot client: %v", err)
	}

	target, err := resolvePUUID(ctx, client, *user, *puuid, cfg.Riot.PUUID)
	if err != nil {
		log.Fatalf("Error: %v", err)
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

	c := collector.New(client, raw, store, collector.Config{
		Queue: cfg.Riot.Queue,
		Type:  cfg.Riot.Type,
	})
	if *notify {
		if cfg.Notify.DiscordWebhookURL == "" {
			log.Println("[Notify] DISCORD_WEBHOOK_URL not set, skipping notifications")
		} else {
			c.SetNotifier(discord.NewWebhookClient(cfg.Notify.DiscordWebhookURL).SendRunSummary)
		}
	}

	if _, err := c.Run(ctx, target, *count); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("[Shutdown] Run interrupted, partial results saved.")
			return
		}
		store.Close()
		log.Fatalf("Fetch failed: %v", err)
	}
}

// resolvePUUID picks the target player: a Riot ID is looked up, otherwise the
// flag value or the configured PUUID is used as is.
func resolvePUUID(ctx context.Context, client *riot.Client, user, puuid, fallback string) (string, error) {
	if user == "" {
		if puuid != "" {
			return puuid, nil
		}
		return fallback, nil
	}

	gameName, tagLine, err := config.ParseRiotID(user)
	if err != nil {
		return "", err
	}

	fmt.Printf("Resolving PUUID for %s#%s...\n", gameName, tagLine)
	account, err := client.GetAccountByRiotID(ctx, gameName, tagLine)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", user, err)
	}
	fmt.Printf("  Found PUUID: %s\n", account.PUUID)
	return account.PUUID, nil
}
