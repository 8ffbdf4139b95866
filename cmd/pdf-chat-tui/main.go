// ABOUTME: Terminal chat panel for a document backed by the serverless-pdf-chat API
// ABOUTME: Wires config, auth, the API client, and the sync engine into a bubbletea program

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/irfanadziri/serverless-pdf-chat/internal/api"
	"github.com/irfanadziri/serverless-pdf-chat/internal/auth"
	"github.com/irfanadziri/serverless-pdf-chat/internal/config"
	"github.com/irfanadziri/serverless-pdf-chat/internal/conversation"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: ~/.config/pdf-chat/config.toml)")
	conversationID := flag.String("conversation", "", "conversation to resume")
	flag.Parse()

	if err := run(*configPath, *conversationID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, conversationID string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if conversationID == "" {
		conversationID = cfg.Chat.ConversationID
	}

	// The program owns the terminal; logs go to a file when requested,
	// nowhere otherwise.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if logPath := os.Getenv("PDF_CHAT_LOG"); logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: parseLevel(cfg.Logging.Level)}))
	}

	token, err := auth.ResolveFrom(cfg.Auth.Token, cfg.Auth.TokenFile)
	if err != nil {
		return err
	}

	var opts []api.Option
	if cfg.API.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.API.Timeout))
	}
	client := api.NewClient(cfg.API.BaseURL, auth.StaticToken(token), logger, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := conversation.NewStore(logger)
	defer store.Close()

	route := &routeState{}
	engine := conversation.NewEngine(client, route, store, cfg.Chat.DocumentID, logger)

	snaps, _ := store.Subscribe(ctx)

	m := newModel(ctx, engine, route, snaps, cfg.Chat.DocumentID, conversationID)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && !explicit {
		return config.FromEnv()
	}
	return config.Load(path)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routeState records the current navigation target so the footer can show a
// resumable conversation id.
type routeState struct {
	documentID     string
	conversationID string
}

func (r *routeState) Navigate(documentID, conversationID string) {
	r.documentID = documentID
	r.conversationID = conversationID
}
