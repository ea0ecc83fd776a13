// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/fininsight/finchat/internal/backend"
	"github.com/fininsight/finchat/internal/config"
	"github.com/fininsight/finchat/internal/dispatch"
	"github.com/fininsight/finchat/internal/model"
	"github.com/fininsight/finchat/internal/store"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// replInput wraps liner with persistent input history.
type replInput struct {
	line        *liner.State
	historyFile string
}

func newReplInput() *replInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}

	r := &replInput{
		line:        line,
		historyFile: filepath.Join(dir, "chat_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// Read reads one line, recording non-empty input in history.
func (r *replInput) Read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close persists history and restores the terminal.
func (r *replInput) Close() {
	if f, err := os.Create(r.historyFile); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	}
	r.line.Close()
}

// =============================================================================
// CHAT REPL
// =============================================================================

// RunChat runs the plain-terminal chat loop. It shares the optimistic
// dispatch path with the TUI; the placeholder resolution just prints
// instead of repainting.
func RunChat(cfg *config.Config, client *backend.Client, account *model.Account, modelName string, research bool) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("chat requires an interactive terminal")
	}

	registry := store.NewRegistry()
	directory := store.NewDirectory()
	d := dispatch.New(client, registry, directory, uuid.NewString())

	wrap := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		wrap = w - 2
		if wrap > 100 {
			wrap = 100
		}
	}
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)

	input := newReplInput()
	defer input.Close()

	fmt.Println(headingStyle.Render("finchat"))
	if account.IsAuthenticated() {
		fmt.Println(infoStyle.Render("Signed in as " + account.Email))
	} else {
		fmt.Println(infoStyle.Render("Not signed in; projects are unavailable. Run 'finchat login'."))
	}
	fmt.Println(infoStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Println()

	for {
		line, err := input.Read("> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			// Ctrl+D or a closed terminal ends the session.
			fmt.Println()
			return nil
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "/") {
			quit, newModel, newResearch := handleReplCommand(trimmed, d, registry, directory, account, modelName, research)
			if quit {
				return nil
			}
			modelName, research = newModel, newResearch
			continue
		}

		cmd := d.Send(line, modelName, research)
		if cmd == nil {
			continue
		}
		result, ok := cmd().(dispatch.SendResultMsg)
		if !ok || result.Dropped {
			continue
		}
		if result.Err != nil {
			fmt.Println(errorStyle.Render("Error: ") + result.Err.Error())
			continue
		}
		printReply(renderer, result.Content)
	}
}

// handleReplCommand executes one slash command. Returns the quit flag
// and the possibly updated model and research settings.
func handleReplCommand(trimmed string, d *dispatch.Dispatcher, registry *store.Registry,
	directory *store.Directory, account *model.Account, modelName string, research bool) (bool, string, bool) {

	fields := strings.Fields(trimmed)
	switch fields[0] {
	case "/quit", "/q", "/exit":
		return true, modelName, research

	case "/help", "/h":
		printReplHelp()

	case "/model", "/m":
		if len(fields) > 1 {
			name := strings.ToLower(fields[1])
			if _, err := backend.ResolveModel(name, false); err != nil {
				fmt.Println(errorStyle.Render("Error: ") + "unknown model " + name)
			} else {
				modelName = name
				fmt.Println(infoStyle.Render("Model: " + backend.ModelDisplayName(modelName)))
			}
		} else {
			fmt.Println(infoStyle.Render("Model: " + backend.ModelDisplayName(modelName)))
		}

	case "/research", "/r":
		research = !research
		if research {
			fmt.Println(infoStyle.Render("Deep research on."))
		} else {
			fmt.Println(infoStyle.Render("Deep research off."))
		}

	case "/projects", "/p":
		if !account.IsAuthenticated() {
			fmt.Println(errorStyle.Render("Error: ") + "sign in first ('finchat login')")
			break
		}
		if msg, ok := d.RefreshProjects(account.Email)().(dispatch.ProjectsLoadedMsg); ok && msg.Err != nil {
			fmt.Println(errorStyle.Render("Error: ") + msg.Err.Error())
			break
		}
		projects := directory.Projects()
		if len(projects) == 0 {
			fmt.Println(infoStyle.Render("No projects yet."))
			break
		}
		for i, p := range projects {
			fmt.Printf("  %s %s\n", commandStyle.Render(strconv.Itoa(i+1)+"."), p.DisplayName())
		}

	case "/open", "/o":
		if len(fields) < 2 {
			fmt.Println(infoStyle.Render("Usage: /open <number>"))
			break
		}
		idx, err := strconv.Atoi(fields[1])
		projects := directory.Projects()
		if err != nil || idx < 1 || idx > len(projects) {
			fmt.Println(errorStyle.Render("Error: ") + "no such project; run /projects first")
			break
		}
		p := projects[idx-1]
		if msg, ok := d.OpenProject(p.ID)().(dispatch.ProjectHistoryMsg); ok && msg.Err != nil {
			fmt.Println(errorStyle.Render("Error: ") + msg.Err.Error())
			break
		}
		fmt.Println(infoStyle.Render("Opened project " + p.DisplayName() + ". Messages now go to its conversation."))

	case "/close":
		registry.ClearSelection()
		fmt.Println(infoStyle.Render("Left the project. Messages go to a standalone thread."))

	case "/history":
		th := registry.ActiveThread()
		if th == nil || th.IsEmpty() {
			fmt.Println(infoStyle.Render("No messages yet."))
			break
		}
		for _, msg := range th.Messages {
			who := "You"
			if msg.Role == model.RoleAssistant {
				who = "Assistant"
			}
			fmt.Printf("%s %s\n", commandStyle.Render(who+":"), msg.Preview(80))
		}

	case "/clear", "/c":
		if th := registry.ActiveThread(); th != nil {
			th.ClearHistory()
		}
		fmt.Println(infoStyle.Render("History cleared."))

	default:
		fmt.Println(errorStyle.Render("Error: ") + "unknown command " + fields[0] + " (try /help)")
	}

	return false, modelName, research
}

// printReply renders the assistant reply, falling back to plain text
// when markdown rendering is unavailable.
func printReply(renderer *glamour.TermRenderer, content string) {
	if renderer != nil {
		if out, err := renderer.Render(content); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Println(content)
}

func printReplHelp() {
	fmt.Println(headingStyle.Render("Commands"))
	fmt.Printf("  %s  show this help\n", commandStyle.Render("/help     "))
	fmt.Printf("  %s  show or switch model\n", commandStyle.Render("/model    "))
	fmt.Printf("  %s  toggle deep research\n", commandStyle.Render("/research "))
	fmt.Printf("  %s  list your projects\n", commandStyle.Render("/projects "))
	fmt.Printf("  %s  open project by number\n", commandStyle.Render("/open N   "))
	fmt.Printf("  %s  leave the current project\n", commandStyle.Render("/close    "))
	fmt.Printf("  %s  show the conversation so far\n", commandStyle.Render("/history  "))
	fmt.Printf("  %s  clear the conversation\n", commandStyle.Render("/clear    "))
	fmt.Printf("  %s  exit\n", commandStyle.Render("/quit     "))
}
