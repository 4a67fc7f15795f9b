package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lexibot/internal/app"
	"lexibot/internal/config"
	kit "lexibot/internal/transport"
)

var (
	pushChatID   int64
	pushThreadID int
	pushEnrich   bool
)

func getPushCommand() *cobra.Command {
	pushCmd := &cobra.Command{
		Use:   "push <file>",
		Short: "Send a quiz file to a chat as polls, then exit",
		Long: `Delivers a quiz file without starting the update poller. With --enrich the
questions are explained by Gemini first and enriched_<file> is written.

Example:
  lexibot push quiz1 --chat -1001234567890 --thread 7 --enrich`,
		Args: cobra.ExactArgs(1),
		RunE: runPush,
	}
	pushCmd.Flags().Int64Var(&pushChatID, "chat", 0, "target chat id (required)")
	pushCmd.Flags().IntVar(&pushThreadID, "thread", 0, "forum topic id")
	pushCmd.Flags().BoolVarP(&pushEnrich, "enrich", "e", false, "add explanations before sending")
	_ = pushCmd.MarkFlagRequired("chat")
	return pushCmd
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, config.EnvFromOS())
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	rep, err := a.Push(ctx, kit.ChatTarget{ChatID: pushChatID, ThreadID: pushThreadID}, args[0], pushEnrich)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, app.StopCLI)

	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %d of %d polls (%d failed, %d pinned)\n", rep.Sent, rep.Total, rep.Failed, rep.Pinned)
	if !rep.Complete() {
		return errors.New("some polls were not sent")
	}
	return nil
}
