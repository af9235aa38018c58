package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/studio-client/internal/chat"
	"github.com/bizmatters/agent-builder/studio-client/internal/models"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <agent> [message...]",
		Short: "Talk to an agent",
		Long: `Talk to an agent. With a message, send it and print the reply.
Without one, read messages from stdin until EOF or /quit.`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runChat,
	}
}

func (a *app) runChat(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	ctx, cancel := a.opContext(cmd)
	session, err := a.studio.Chats.Open(ctx, args[0])
	cancel()
	if err != nil {
		if snap := session.Snapshot(); snap.Err != "" {
			return errors.New(snap.Err)
		}
		return err
	}

	snap := session.Snapshot()
	printMessages(out, snap.Messages)
	if preview := session.KnowledgePreview(); len(preview) > 0 {
		fmt.Fprintf(out, "\nWhat %s knows:\n", snap.Agent.DisplayTitle())
		for _, item := range preview {
			fmt.Fprintf(out, "  - %s\n", item.Content)
		}
	}

	if len(args) > 1 {
		return a.send(cmd, session, strings.Join(args[1:], " "))
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" {
			return nil
		}
		if line == "" {
			continue
		}
		if err := a.send(cmd, session, line); err != nil {
			a.logger.Debug("chat send failed", zap.Error(err))
		}
	}
}

// send prints every message the exchange appended
func (a *app) send(cmd *cobra.Command, session *chat.Session, text string) error {
	ctx, cancel := a.opContext(cmd)
	defer cancel()

	before := len(session.Messages())
	_, err := session.Send(ctx, text)

	messages := session.Messages()
	if before < len(messages) {
		// the user's own line is already on screen
		for _, m := range messages[before:] {
			if m.Sender != models.SenderUser {
				printMessages(cmd.OutOrStdout(), []models.Message{m})
			}
		}
	}
	return err
}

func printMessages(out io.Writer, messages []models.Message) {
	for _, m := range messages {
		switch m.Sender {
		case models.SenderSystem:
			fmt.Fprintf(out, "! %s\n", m.Content)
		case models.SenderUser:
			fmt.Fprintf(out, "you: %s\n", m.Content)
		default:
			fmt.Fprintf(out, "%s\n", m.Content)
		}
	}
}
