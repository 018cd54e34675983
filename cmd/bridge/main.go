package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/taskops/telegram-bridge/internal/conf"
	"github.com/taskops/telegram-bridge/internal/data"
	"github.com/taskops/telegram-bridge/internal/runner"
	"github.com/taskops/telegram-bridge/internal/service"
	"github.com/taskops/telegram-bridge/telegram"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		// A missing credential is not an error worth crash-looping a
		// supervisor over. Say what is missing and exit clean.
		log.Printf("Bridge disabled: %v", err)
		return
	}

	tgClient := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.BaseURL, cfg.Poll.Timeout)

	repos, err := data.NewRepositories(tgClient, cfg)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.RunLog.Close()

	jobs := runner.New(cfg.WorkspaceRoot)

	bridge := service.NewBridge(
		service.Options{
			AllowedChat:    cfg.Telegram.AllowedChat,
			AllowAnyChat:   cfg.Telegram.AllowAnyChat,
			PollTimeout:    cfg.Poll.Timeout,
			Tunables:       cfg.Poll.ToTunables(),
			NotifyCooldown: cfg.Poll.NotifyCooldown,
			Debug:          cfg.Debug,
		},
		tgClient,
		repos.Messenger,
		repos.Board,
		repos.Inference,
		repos.Prefs,
		repos.RunLog,
		jobs,
		nil,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		bridge.Stop()
	}()

	fmt.Println("Starting task-board control bridge...")
	if err := bridge.Start(); err != nil {
		log.Fatalf("Bridge error: %v", err)
	}
}
