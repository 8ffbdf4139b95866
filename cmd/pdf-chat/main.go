// ABOUTME: Scriptable CLI for chatting with a document via the serverless-pdf-chat API
// ABOUTME: Subcommands: ask, history, list, token

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/irfanadziri/serverless-pdf-chat/internal/api"
	"github.com/irfanadziri/serverless-pdf-chat/internal/auth"
	"github.com/irfanadziri/serverless-pdf-chat/internal/config"
	"github.com/irfanadziri/serverless-pdf-chat/internal/conversation"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "ask":
		err = cmdAsk(ctx, args)
	case "history":
		err = cmdHistory(ctx, args)
	case "list":
		err = cmdList(ctx, args)
	case "token":
		err = cmdToken(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: pdf-chat <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  ask <prompt...>   Ask a question about the configured document")
	fmt.Println("  history           Show a conversation's message history")
	fmt.Println("  list              List the document's conversations")
	fmt.Println("  token             Show the configured bearer token's subject and expiry")
	fmt.Println()
	fmt.Println("Flags common to ask/history/list:")
	fmt.Println("  -config <path>        Config file (default: ~/.config/pdf-chat/config.toml)")
	fmt.Println("  -conversation <id>    Conversation to resume (ask) or show (history)")
}

// loadConfig reads the config file, falling back to environment variables
// when no file exists at the resolved path.
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

// routeState is the CLI's navigation collaborator: it remembers the current
// conversation target so a deep link can be printed after creation.
type routeState struct {
	documentID     string
	conversationID string
}

func (r *routeState) Navigate(documentID, conversationID string) {
	r.documentID = documentID
	r.conversationID = conversationID
}

// session bundles what every remote-facing subcommand needs.
type session struct {
	cfg    *config.Config
	engine *conversation.Engine
	route  *routeState
}

func newSession(configPath string) (*session, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Logging.Level)

	token, err := auth.ResolveFrom(cfg.Auth.Token, cfg.Auth.TokenFile)
	if err != nil {
		return nil, err
	}
	warnIfExpired(token)

	var opts []api.Option
	if cfg.API.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.API.Timeout))
	}
	client := api.NewClient(cfg.API.BaseURL, auth.StaticToken(token), logger, opts...)

	store := conversation.NewStore(logger)
	route := &routeState{documentID: cfg.Chat.DocumentID, conversationID: cfg.Chat.ConversationID}
	engine := conversation.NewEngine(client, route, store, cfg.Chat.DocumentID, logger)

	return &session{cfg: cfg, engine: engine, route: route}, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func warnIfExpired(token string) {
	info, err := auth.Inspect(token)
	if err != nil {
		return
	}
	if info.Expired() {
		color.Yellow("Warning: bearer token expired at %s", info.ExpiresAt.Format(time.RFC3339))
	}
}

func cmdAsk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	conversationID := fs.String("conversation", "", "conversation to resume")
	if err := fs.Parse(args); err != nil {
		return err
	}

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return fmt.Errorf("ask requires a prompt")
	}

	sess, err := newSession(*configPath)
	if err != nil {
		return err
	}
	engine := sess.engine

	if *conversationID == "" {
		*conversationID = sess.cfg.Chat.ConversationID
	}

	if *conversationID != "" {
		if err := engine.Load(ctx, *conversationID); err != nil {
			return err
		}
	} else {
		_, done, err := engine.CreateAndLoad(ctx)
		if err != nil {
			return err
		}
		if err := <-done; err != nil {
			return err
		}
	}

	engine.SetPrompt(prompt)
	if err := engine.Submit(ctx); err != nil {
		return err
	}

	conv := engine.Store().Conversation()
	if conv == nil || len(conv.Messages) == 0 {
		fmt.Println("No response recorded")
		return nil
	}

	printMessage(conv.Messages[len(conv.Messages)-1])
	fmt.Println()
	color.New(color.Faint).Printf("conversation: %s (resume with -conversation)\n", sess.route.conversationID)
	return nil
}

func cmdHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	conversationID := fs.String("conversation", "", "conversation to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := newSession(*configPath)
	if err != nil {
		return err
	}

	if *conversationID == "" {
		*conversationID = sess.cfg.Chat.ConversationID
	}
	if *conversationID == "" {
		return fmt.Errorf("history requires -conversation (or chat.conversation_id in config)")
	}

	if err := sess.engine.Load(ctx, *conversationID); err != nil {
		return err
	}

	conv := sess.engine.Store().Conversation()
	if conv == nil || len(conv.Messages) == 0 {
		fmt.Println("No messages yet")
		return nil
	}

	cyan := color.New(color.FgCyan)
	cyan.Printf("%s — %d messages\n", conv.Document.Filename, len(conv.Messages))
	fmt.Println(strings.Repeat("-", 60))
	for _, msg := range conv.Messages {
		printMessage(msg)
	}
	return nil
}

func cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := newSession(*configPath)
	if err != nil {
		return err
	}

	refs, err := sess.engine.ListConversations(ctx)
	if err != nil {
		return err
	}

	if len(refs) == 0 {
		fmt.Println("No conversations yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONVERSATION\tCREATED")
	for _, ref := range refs {
		fmt.Fprintf(w, "%s\t%s\n", ref.ConversationID, ref.Created)
	}
	return w.Flush()
}

func cmdToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	token, err := auth.ResolveFrom(cfg.Auth.Token, cfg.Auth.TokenFile)
	if err != nil {
		return err
	}

	info, err := auth.Inspect(token)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	fmt.Printf("subject: %s\n", info.Subject)
	if info.ExpiresAt.IsZero() {
		fmt.Println("expires: never")
	} else if info.Expired() {
		color.Red("expires: %s (EXPIRED)", info.ExpiresAt.Format(time.RFC3339))
	} else {
		green.Printf("expires: %s\n", info.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func printMessage(msg conversation.Message) {
	switch msg.Type {
	case conversation.MessageTypeAI:
		color.New(color.FgGreen).Print("ai> ")
	default:
		color.New(color.FgCyan).Print("you> ")
	}
	fmt.Println(msg.Data.Content)
}
