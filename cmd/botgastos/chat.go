package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginasoft/BotGastos/internal/daemon"
	"github.com/ginasoft/BotGastos/internal/plugins"
	"github.com/ginasoft/BotGastos/pkg/api"
	"github.com/ginasoft/BotGastos/pkg/config"
	"github.com/ginasoft/BotGastos/pkg/engine"
)

func chatCmd() *cobra.Command {
	var (
		ledger   string
		userID   int64
		userName string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot from the terminal",
		Long: `Read expense messages from stdin, one per line, and print the bot's replies.
End a line with a backslash to continue the message on the next line (useful for
receipts). Answer a prompt with "confirmar" or "cancelar".

Examples:
  botgastos chat --ledger memory
  botgastos chat --ledger csv --name Gina`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("ledger") {
				if err := os.Setenv("BOTGASTOS_LEDGER", ledger); err != nil {
					return fmt.Errorf("selecting ledger: %w", err)
				}
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			registry, err := plugins.Default()
			if err != nil {
				return fmt.Errorf("registering plugins: %w", err)
			}

			c, err := daemon.New(registry, nil, logger).Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					logger.Error("closing ledger", "error", err)
				}
			}()

			return runChat(cmd.Context(), c.Engine, cmd.InOrStdin(), cmd.OutOrStdout(), api.UserID(userID), userName)
		},
	}

	cmd.Flags().StringVar(&ledger, "ledger", config.LedgerMemory, "ledger backend (sheets, postgres, csv, json, memory)")
	cmd.Flags().Int64Var(&userID, "user", 1, "chat user id")
	cmd.Flags().StringVar(&userName, "name", os.Getenv("USER"), "name recorded with each expense")

	return cmd
}

// runChat feeds each message read from in to the engine until in is exhausted or
// ctx is canceled.
func runChat(ctx context.Context, e *engine.Engine, in io.Reader, out io.Writer, user api.UserID, userName string) error {
	scanner := bufio.NewScanner(in)
	var message []string

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := scanner.Text()
		if cont, ok := strings.CutSuffix(line, `\`); ok {
			message = append(message, cont)
			continue
		}
		message = append(message, line)
		text := strings.Join(message, "\n")
		message = message[:0]

		if strings.TrimSpace(text) == "" {
			continue
		}

		reply, err := e.Handle(ctx, api.RawInput{
			Text:      text,
			Channel:   api.ChannelText,
			User:      user,
			UserName:  userName,
			Timestamp: time.Now(),
		})
		if err != nil {
			logger.Error("handling message", "error", err)
			if reply.Text == "" {
				fmt.Fprintf(out, "error: %v\n\n", err)
				continue
			}
		}

		fmt.Fprintln(out, reply.Text)
		if len(reply.Actions) > 0 {
			labels := make([]string, 0, len(reply.Actions))
			for _, a := range reply.Actions {
				labels = append(labels, a.Data)
			}
			fmt.Fprintf(out, "[%s]\n", strings.Join(labels, " / "))
		}
		fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}
