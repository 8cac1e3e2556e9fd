package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"match-analyzer/internal/analysis"
	"match-analyzer/internal/config"
	"match-analyzer/internal/db"
	"match-analyzer/internal/discord"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to TOML config file")
	user := flag.String("user", "", "Riot ID (GameName#TagLine)")
	puuid := flag.String("puuid", "", "Direct PUUID to analyze")
	limit := flag.Int("limit", analysis.DefaultLimit, "Number of games to analyze")
	notify := flag.Bool("notify", false, "Post the report to the Discord webhook")
	flag.Parse()

	if *user == "" && *puuid == "" {
		fmt.Println("Error: Must provide either --user or --puuid")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	target, label := *puuid, *puuid
	if *user != "" {
		gameName, tagLine, err := config.ParseRiotID(*user)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		if err := cfg.RequireAPIKey(); err != nil {
			log.Fatalf("Error: %v", err)
		}
		client, err := cfg.NewRiotClient()
		if err != nil {
			log.Fatalf("Failed to create Riot client: %v", err)
		}

		fmt.Printf("Resolving PUUID for %s...\n", *user)
		account, err := client.GetAccountByRiotID(ctx, gameName, tagLine)
		if err != nil {
			log.Fatalf("Error fetching PUUID: %v", err)
		}
		target, label = account.PUUID, *user
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

	fmt.Printf("Analyzing last %d games for PUUID: %s...\n", *limit, target)

	report, err := analysis.NewEngine(store).Report(ctx, target, *limit)
	if err != nil {
		store.Close()
		log.Fatalf("Analysis failed: %v", err)
	}
	if report == nil {
		fmt.Println("No games found in database. Run fetch first.")
		return
	}

	report.Render(os.Stdout, label)

	if *notify {
		if cfg.Notify.DiscordWebhookURL == "" {
			log.Println("[Notify] DISCORD_WEBHOOK_URL not set, skipping notification")
			return
		}
		if err := discord.NewWebhookClient(cfg.Notify.DiscordWebhookURL).SendReport(ctx, report, label); err != nil {
			log.Printf("[Notify] Failed to send report: %v", err)
		}
	}
}
