// finchat - terminal client for the finchat research assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/fininsight/finchat/internal/auth"
	"github.com/fininsight/finchat/internal/backend"
	"github.com/fininsight/finchat/internal/cli"
	"github.com/fininsight/finchat/internal/config"
	"github.com/fininsight/finchat/internal/dispatch"
	"github.com/fininsight/finchat/internal/identity"
	"github.com/fininsight/finchat/internal/model"
	"github.com/fininsight/finchat/internal/session"
	"github.com/fininsight/finchat/internal/storage"
	"github.com/fininsight/finchat/internal/store"
	"github.com/fininsight/finchat/internal/ui/chat"
	"github.com/fininsight/finchat/internal/ui/login"
	"github.com/fininsight/finchat/internal/ui/styles"
)

func main() {
	args := cli.NewArgParser(os.Args[1:])

	cfg := config.Global()
	if u := args.Flag("backend"); u != "" {
		cfg.Backend.URL = u
	}
	if m := args.Flag("model"); m != "" {
		cfg.DefaultModel = m
	}

	switch args.Subcommand() {
	case "login":
		if err := cli.RunLogin(cfg); err != nil {
			cli.Fatal(err)
		}
	case "logout":
		if err := cli.RunLogout(cfg); err != nil {
			cli.Fatal(err)
		}
	case "chat":
		account, err := loadAccount(cfg)
		if err != nil {
			cli.Fatal(err)
		}
		client := newClient(cfg, account)
		if err := cli.RunChat(cfg, client, account, cfg.DefaultModel, args.BoolFlag("research")); err != nil {
			cli.Fatal(err)
		}
	case "ask":
		account, err := loadAccount(cfg)
		if err != nil {
			cli.Fatal(err)
		}
		client := newClient(cfg, account)
		question := strings.Join(args.PositionalFrom(1), " ")
		if err := cli.RunAsk(client, question, cfg.DefaultModel, args.BoolFlag("research")); err != nil {
			cli.Fatal(err)
		}
	case "version":
		cli.PrintVersion()
	case "help":
		cli.PrintHelp()
	case "", "tui":
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			// No terminal to paint; fall back to the plain REPL.
			account, err := loadAccount(cfg)
			if err != nil {
				cli.Fatal(err)
			}
			client := newClient(cfg, account)
			if err := cli.RunChat(cfg, client, account, cfg.DefaultModel, args.BoolFlag("research")); err != nil {
				cli.Fatal(err)
			}
			return
		}
		runTUI(cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args.Subcommand())
		cli.PrintHelp()
		os.Exit(1)
	}
}

// loadAccount hydrates the stored session. A missing session yields an
// unauthenticated (nil) account, not an error.
func loadAccount(cfg *config.Config) (*model.Account, error) {
	sessionPath, err := cfg.SessionPath()
	if err != nil {
		return nil, err
	}
	return identity.NewStore(sessionPath).Hydrate()
}

// newClient builds the backend client from configuration, attaching
// the session token when signed in.
func newClient(cfg *config.Config, account *model.Account) *backend.Client {
	client := backend.New(cfg.Backend.URL).
		WithTimeout(time.Duration(cfg.Backend.TimeoutSecs) * time.Second).
		WithAgentTimeout(time.Duration(cfg.Backend.AgentTimeoutSecs) * time.Second).
		WithRateLimit(cfg.Backend.RatePerMinute).
		WithMaxUploadBytes(cfg.Backend.MaxUploadBytes)
	if account.IsAuthenticated() {
		client.WithToken(account.Token)
	}
	return client
}

// runTUI starts the full-screen interface.
func runTUI(cfg *config.Config) {
	// The TUI owns the terminal; route the standard logger to a file.
	log.SetOutput(io.Discard)
	if dir, err := config.ConfigDir(); err == nil {
		if err := os.MkdirAll(dir, 0755); err == nil {
			if f, err := os.OpenFile(filepath.Join(dir, "finchat.log"),
				os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600); err == nil {
				log.SetOutput(f)
				defer f.Close()
			}
		}
	}

	account, err := loadAccount(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not restore session: %v\n", err)
		account = nil
	}

	app, err := newApp(cfg, account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.cleanup()

	// Reload the config when it changes on disk; the new values apply
	// to the next client construction and autosave interval.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	go config.Watch(watchCtx, func(next *config.Config) {
		app.sessionMgr.SetAutoSaveInterval(time.Duration(next.Storage.AutosaveSecs) * time.Second)
	})

	p := tea.NewProgram(
		app,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running finchat: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// APPLICATION MODEL
// =============================================================================

// State represents the current application screen.
type State int

const (
	StateLogin State = iota
	StateChat
)

// App is the top-level Bubble Tea model: the login screen until a
// session exists, then the chat view.
type App struct {
	state State
	theme *styles.Theme
	cfg   *config.Config

	width  int
	height int

	loginModel login.Model
	chatModel  chat.Model

	// Shared state carried across the login -> chat transition.
	client        *backend.Client
	identityStore *identity.Store
	threadStore   *storage.ThreadStore
	registry      *store.Registry
	directory     *store.Directory
	sessionMgr    *session.Manager
}

// newApp assembles the application model and restores local threads.
func newApp(cfg *config.Config, account *model.Account) (*App, error) {
	theme := styles.NewTheme()

	sessionPath, err := cfg.SessionPath()
	if err != nil {
		return nil, err
	}
	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, err
	}

	threadStore, err := storage.Open(dbPath)
	if err != nil {
		// The chat still works without local persistence.
		fmt.Fprintf(os.Stderr, "Warning: local storage unavailable: %v\n", err)
		threadStore = nil
	}

	registry := store.NewRegistry()
	if threadStore != nil {
		if threads, err := threadStore.LoadAll(context.Background()); err == nil {
			for _, th := range threads {
				registry.AdoptThread(th)
			}
		}
	}

	sessionCfg := session.DefaultConfig()
	if cfg.Storage.AutosaveSecs > 0 {
		sessionCfg.AutoSaveInterval = time.Duration(cfg.Storage.AutosaveSecs) * time.Second
	}

	app := &App{
		theme:         theme,
		cfg:           cfg,
		identityStore: identity.NewStore(sessionPath),
		threadStore:   threadStore,
		registry:      registry,
		directory:     store.NewDirectory(),
		sessionMgr:    session.NewManager(sessionCfg),
	}

	if account.IsAuthenticated() {
		app.startChat(account)
	} else {
		app.state = StateLogin
		flow := auth.NewFlow(
			cfg.Backend.URL,
			cfg.Auth.CallbackPort,
			time.Duration(cfg.Auth.CallbackTimeoutSecs)*time.Second,
		)
		app.loginModel = login.New(theme, flow)
	}
	return app, nil
}

// startChat builds the chat view for the given account (which may be
// unauthenticated when the user skipped sign-in).
func (a *App) startChat(account *model.Account) {
	a.client = newClient(a.cfg, account)
	dispatcher := dispatch.New(a.client, a.registry, a.directory, a.sessionMgr.SessionID())
	a.chatModel = chat.New(
		a.theme, account, a.registry, a.directory,
		dispatcher, a.sessionMgr, a.threadStore, a.identityStore,
		a.cfg.DefaultModel, a.cfg.UI.Markdown,
	)
	a.state = StateChat
}

// cleanup releases resources on exit.
func (a *App) cleanup() {
	if a.threadStore != nil {
		a.threadStore.Close()
	}
}

// Init starts the active screen.
func (a *App) Init() tea.Cmd {
	if a.state == StateChat {
		return a.chatModel.Init()
	}
	return a.loginModel.Init()
}

// Update routes messages to the active screen and handles the login
// completion transition.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		a.width = size.Width
		a.height = size.Height
	}

	switch a.state {
	case StateLogin:
		if done, ok := msg.(login.CompletedMsg); ok {
			return a.handleLoginCompleted(done)
		}
		var cmd tea.Cmd
		a.loginModel, cmd = a.loginModel.Update(msg)
		return a, cmd

	case StateChat:
		next, cmd := a.chatModel.Update(msg)
		if chatModel, ok := next.(chat.Model); ok {
			a.chatModel = chatModel
		}
		return a, cmd
	}
	return a, nil
}

// handleLoginCompleted processes the sign-in outcome: persist the
// session and enter the chat, or bounce the failure back to the login
// screen.
func (a *App) handleLoginCompleted(done login.CompletedMsg) (tea.Model, tea.Cmd) {
	if done.Err != nil {
		var cmd tea.Cmd
		a.loginModel, cmd = a.loginModel.Update(done)
		return a, cmd
	}

	account := done.Account
	if done.Skipped {
		account = nil
	} else if err := a.identityStore.Save(account); err != nil {
		// Signed in for this run even if the session could not be
		// stored for the next one.
		fmt.Fprintf(os.Stderr, "Warning: could not store session: %v\n", err)
	}

	a.startChat(account)

	cmds := []tea.Cmd{a.chatModel.Init()}
	if a.width > 0 {
		// Replay the terminal size so the chat lays itself out.
		next, cmd := a.chatModel.Update(tea.WindowSizeMsg{Width: a.width, Height: a.height})
		if chatModel, ok := next.(chat.Model); ok {
			a.chatModel = chatModel
		}
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

// View renders the active screen.
func (a *App) View() string {
	if a.state == StateChat {
		return a.chatModel.View()
	}
	return a.loginModel.View()
}
