// Command broadcast sends one text payload to every known user directly from
// the database, for operators when the chat-side broadcast flow is
// unavailable. It uses the same pacing as the in-service fan-out.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ovoronin/pairline/internal/botapi"
	"github.com/ovoronin/pairline/internal/domain"
	"github.com/ovoronin/pairline/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		apiURL string
		token  string
		dbPath string
		text   string
		pacing time.Duration
		dryRun bool
	)

	flag.StringVar(&apiURL, "api-url", envOrDefault("CHAT_API_URL", "https://api.telegram.org"), "bot API base URL")
	flag.StringVar(&token, "token", envOrDefault("BOT_TOKEN", ""), "bot token")
	flag.StringVar(&dbPath, "db", envOrDefault("DATABASE_PATH", "pairline.db"), "SQLite database path")
	flag.StringVar(&text, "text", "", "message text to broadcast")
	flag.DurationVar(&pacing, "pacing", domain.DefaultBroadcastPacing, "delay between sends")
	flag.BoolVar(&dryRun, "dry-run", false, "list recipients without sending")
	flag.Parse()

	if token == "" && !dryRun {
		return fmt.Errorf("--token is required (or set BOT_TOKEN)")
	}
	if text == "" {
		return fmt.Errorf("--text is required")
	}

	repo, err := sqlite.NewRepository(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()
	ids, err := repo.AllUserIDs(ctx)
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Printf("Would send to %d users\n", len(ids))
		return nil
	}

	sender := botapi.NewClient(apiURL, token)
	payload := domain.TextPayload(text)

	var success, failure int
	for _, userID := range ids {
		if _, err := sender.Send(ctx, userID, payload); err != nil {
			failure++
			fmt.Printf("send to %d failed: %v\n", userID, err)
		} else {
			success++
		}
		time.Sleep(pacing)
	}

	rate := 0.0
	if len(ids) > 0 {
		rate = float64(success) / float64(len(ids)) * 100
	}
	fmt.Printf("Done: %d total, %d delivered, %d failed (%.1f%%)\n", len(ids), success, failure, rate)
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
