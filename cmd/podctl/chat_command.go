package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"pod-assistant/internal/app"
	"pod-assistant/internal/domain"
	"pod-assistant/internal/workflow"
)

const chatHelp = `Type a docket number (for example DKT-1001) to look it up.
Commands:
  /upload <path>  verify a proof of delivery photo for the active docket
  /status         show the active docket and pending evidence
  /reset          forget the active docket
  /quit           leave the chat
Say "update" once a photo has been accepted to mark the docket delivered.`

// chatEngine is the subset of *workflow.Engine the REPL drives.
type chatEngine interface {
	OpenSession(ctx context.Context) workflow.Snapshot
	CloseSession(ctx context.Context, sessionID string) error
	Snapshot(sessionID string) (workflow.Snapshot, error)
	SubmitText(ctx context.Context, sessionID, text string) (workflow.Turn, error)
	UploadImage(ctx context.Context, sessionID string, img domain.Image) (workflow.Turn, *workflow.Analysis, error)
	Reset(ctx context.Context, sessionID string) (workflow.Turn, error)
}

func newChatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive docket session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			awsCfg, err := ctx.awsConfig(cmd.Context(), true)
			if err != nil {
				return err
			}
			a, err := app.Build(cmd.Context(), cfg, awsCfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return runChat(cmd.Context(), a.Engine, cmd.InOrStdin(), cmd.OutOrStdout(), isInteractive(cmd.InOrStdin()))
		},
	}
}

func isInteractive(r io.Reader) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func runChat(ctx context.Context, engine chatEngine, in io.Reader, out io.Writer, interactive bool) error {
	snap := engine.OpenSession(ctx)
	defer func() { _ = engine.CloseSession(context.WithoutCancel(ctx), snap.SessionID) }()

	if interactive {
		fmt.Fprintln(out, chatHelp)
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		done, err := handleChatLine(ctx, engine, snap.SessionID, line, out)
		if err != nil {
			var wfErr *workflow.Error
			if !errors.As(err, &wfErr) || wfErr.Code != workflow.ErrorInvalidInput {
				return err
			}
			fmt.Fprintf(out, "! %s\n", wfErr.Reason)
		}
		if done {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func handleChatLine(ctx context.Context, engine chatEngine, sessionID, line string, out io.Writer) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(out, chatHelp)
		return false, nil
	case "/status":
		snap, err := engine.Snapshot(sessionID)
		if err != nil {
			return false, err
		}
		printStatus(out, snap)
		return false, nil
	case "/reset":
		turn, err := engine.Reset(ctx, sessionID)
		if err != nil {
			return false, err
		}
		printMessages(out, turn.Messages)
		return false, nil
	case "/upload":
		return false, uploadFile(ctx, engine, sessionID, strings.TrimSpace(arg), out)
	}

	turn, err := engine.SubmitText(ctx, sessionID, line)
	if err != nil {
		return false, err
	}
	printMessages(out, turn.Messages)
	return false, nil
}

func uploadFile(ctx context.Context, engine chatEngine, sessionID, path string, out io.Writer) error {
	if path == "" {
		fmt.Fprintln(out, "! usage: /upload <path>")
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(out, "! %v\n", err)
		return nil
	}

	turn, analysis, err := engine.UploadImage(ctx, sessionID, domain.Image{Name: filepath.Base(path), Data: data})
	if err != nil {
		return err
	}
	printMessages(out, turn.Messages)
	if analysis == nil {
		return nil
	}

	result, err := analysis.Wait(ctx)
	if err != nil {
		return err
	}
	if result.Discarded {
		return nil
	}
	snap, err := engine.Snapshot(sessionID)
	if err != nil {
		return err
	}
	for _, m := range snap.Messages {
		if m.ID == result.MessageID {
			printMessages(out, []domain.Message{m})
		}
	}
	if result.Applied {
		fmt.Fprintf(out, "  (proof accepted for %s, say \"update\" to mark it delivered)\n", analysis.DocketID)
	}
	return nil
}

func printMessages(out io.Writer, msgs []domain.Message) {
	for _, m := range msgs {
		if m.Role != domain.RoleAssistant {
			continue
		}
		prefix := "assistant"
		switch m.Status {
		case domain.StatusLoading:
			prefix = "assistant (working)"
		case domain.StatusError:
			prefix = "assistant (error)"
		}
		fmt.Fprintf(out, "%s: %s\n", prefix, m.Content)
	}
}

func printStatus(out io.Writer, snap workflow.Snapshot) {
	if snap.ActiveDocket == nil {
		fmt.Fprintln(out, "No active docket.")
		return
	}
	d := snap.ActiveDocket
	fmt.Fprintln(out, renderDockets([]domain.Docket{*d}))
	fmt.Fprintf(out, "phase=%s evidence_pending=%t verifying=%t\n", snap.Phase, snap.EvidencePending, snap.Verifying)
}
