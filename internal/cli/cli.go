// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the non-TUI command surface: sign-in and
// sign-out, the plain-terminal chat REPL, and the usage text.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fininsight/finchat/internal/auth"
	"github.com/fininsight/finchat/internal/config"
	"github.com/fininsight/finchat/internal/identity"
	"github.com/fininsight/finchat/internal/ui/styles"
)

// Version is the client version reported by "finchat version".
const Version = "1.0.0"

// =============================================================================
// STYLES
// =============================================================================

var (
	headingStyle = lipgloss.NewStyle().
			Foreground(styles.Indigo).
			Bold(true)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Teal)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)
)

// =============================================================================
// USAGE
// =============================================================================

// PrintVersion prints the client version.
func PrintVersion() {
	fmt.Printf("finchat %s\n", Version)
}

// PrintHelp prints the top-level usage text.
func PrintHelp() {
	fmt.Println(headingStyle.Render("finchat - terminal client for the finchat assistant"))
	fmt.Println()
	fmt.Println(infoStyle.Render("Usage: finchat [command] [flags]"))
	fmt.Println()
	fmt.Println(headingStyle.Render("Commands"))
	fmt.Printf("  %s   launch the full-screen chat (default)\n", commandStyle.Render("tui    "))
	fmt.Printf("  %s   plain-terminal chat without the TUI\n", commandStyle.Render("chat   "))
	fmt.Printf("  %s   sign in with Google\n", commandStyle.Render("login  "))
	fmt.Printf("  %s   remove the stored session\n", commandStyle.Render("logout "))
	fmt.Printf("  %s   print the client version\n", commandStyle.Render("version"))
	fmt.Printf("  %s   show this help\n", commandStyle.Render("help   "))
	fmt.Println()
	fmt.Println(headingStyle.Render("Flags"))
	fmt.Println("  --model NAME      model to chat with (gpt, gemini, grok)")
	fmt.Println("  --research        enable deep research mode")
	fmt.Println("  --backend URL     override the backend base URL")
	fmt.Println()
	fmt.Println(infoStyle.Render("Configuration: ~/.finchat/config.toml"))
}

// =============================================================================
// SIGN-IN / SIGN-OUT
// =============================================================================

// RunLogin executes the browser sign-in flow and stores the session.
func RunLogin(cfg *config.Config) error {
	sessionPath, err := cfg.SessionPath()
	if err != nil {
		return err
	}

	flow := auth.NewFlow(
		cfg.Backend.URL,
		cfg.Auth.CallbackPort,
		time.Duration(cfg.Auth.CallbackTimeoutSecs)*time.Second,
	)

	fmt.Println(infoStyle.Render("Opening your browser for Google sign-in..."))
	account, err := flow.Run(context.Background())
	if err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	if err := identity.NewStore(sessionPath).Save(account); err != nil {
		return fmt.Errorf("signed in but could not store the session: %w", err)
	}

	fmt.Printf("Signed in as %s\n", commandStyle.Render(account.Email))
	return nil
}

// RunLogout removes the stored session. Already signed out is not an
// error.
func RunLogout(cfg *config.Config) error {
	sessionPath, err := cfg.SessionPath()
	if err != nil {
		return err
	}
	if err := identity.NewStore(sessionPath).Logout(); err != nil {
		return err
	}
	fmt.Println(infoStyle.Render("Signed out."))
	return nil
}

// Fatal prints an error and exits non-zero.
func Fatal(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
	os.Exit(1)
}
