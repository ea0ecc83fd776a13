// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"

	"github.com/fininsight/finchat/internal/backend"
	"github.com/fininsight/finchat/internal/util"
)

// RunAsk sends a single question and prints the normalized reply.
// Suited for piping: no prompt, no history, exit code reflects the
// outcome.
func RunAsk(client *backend.Client, question, modelName string, research bool) error {
	prompt := util.NormalizeInput(question)
	if prompt == "" {
		return errors.New("usage: finchat ask <question>")
	}

	reply, err := client.AgentCall(context.Background(), modelName, research, uuid.NewString(), prompt, "")
	if err != nil {
		return err
	}

	renderer, rerr := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if rerr == nil {
		if out, err := renderer.Render(reply); err == nil {
			fmt.Print(out)
			return nil
		}
	}
	fmt.Println(reply)
	return nil
}
