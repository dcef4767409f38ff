package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/dispatch"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/session"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/state"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

var (
	chatResume    string
	chatNamespace string
	chatCluster   string
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatResume, "resume", "r", "", "resume a stored conversation by id")
	chatCmd.Flags().StringVarP(&chatNamespace, "namespace", "n", "", "namespace to scope the conversation to")
	chatCmd.Flags().StringVar(&chatCluster, "cluster", "", "cluster to scope the conversation to")
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with the agent.

Ctrl-C cancels the reply in progress; at the prompt it exits.
Commands: /clear, /resume <id>, /ns [namespace], /id, /quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	backend, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.MigrateLegacy(ctx)

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	rc := requestContext(cfg)
	if chatNamespace != "" {
		rc.Namespace = chatNamespace
	}
	if chatCluster != "" {
		rc.Cluster = chatCluster
	}

	sess := session.New(session.Options{
		Transport:        newTransport(cfg),
		Store:            store,
		Engine:           engine,
		UserID:           cfg.Agent.UserID,
		TenantID:         cfg.Agent.TenantID,
		Context:          rc,
		ToolPreferences:  toolPreferences(cfg),
		ModelPreferences: modelPreferences(cfg),
	})
	if chatResume != "" {
		if err := sess.Resume(ctx, types.ConversationID(chatResume)); err != nil {
			return err
		}
	}

	events := state.NewEventLog(cfg.DataDir)
	sess.Subscribe(events.Recorder(sess.ConversationID))
	sess.Subscribe(printEvents(os.Stdout))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if sess.Snapshot().IsLoading {
				sess.Cancel()
				fmt.Fprintln(os.Stdout, "\n(cancelled)")
				continue
			}
			cancel()
			return
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintf(os.Stdout, "Conversation %s\n", sess.ConversationID())
	for {
		fmt.Fprint(os.Stdout, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stdout)
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := chatCommand(ctx, sess, line); quit {
				return nil
			}
			continue
		}

		err := sess.Send(ctx, line)
		var ae *agent.AgentError
		switch {
		case errors.As(err, &ae):
			fmt.Fprintf(os.Stdout, "\nerror: %s (%s)\n", ae.Message, ae.Code)
		case err != nil:
			fmt.Fprintf(os.Stdout, "error: %v\n", err)
		}
	}
}

// chatCommand handles a slash command. It reports whether to quit.
func chatCommand(ctx context.Context, sess *session.Session, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/clear":
		sess.ClearHistory()
		fmt.Fprintf(os.Stdout, "New conversation %s\n", sess.ConversationID())
	case "/id":
		fmt.Fprintln(os.Stdout, sess.ConversationID())
	case "/resume":
		if len(fields) != 2 {
			fmt.Fprintln(os.Stdout, "usage: /resume <id>")
			return false
		}
		if err := sess.Resume(ctx, types.ConversationID(fields[1])); err != nil {
			fmt.Fprintf(os.Stdout, "error: %v\n", err)
			return false
		}
		snap := sess.Snapshot()
		fmt.Fprintf(os.Stdout, "Resumed %s (%d messages)\n", snap.ConversationID, len(snap.Messages))
	case "/ns":
		rc := sess.Context()
		if len(fields) == 1 {
			fmt.Fprintf(os.Stdout, "cluster=%q namespace=%q\n", rc.Cluster, rc.Namespace)
			return false
		}
		rc.Namespace = fields[1]
		if sess.SetContext(rc) {
			slog.Debug("context changed", "namespace", rc.Namespace)
		}
	default:
		fmt.Fprintf(os.Stdout, "unknown command %s\n", fields[0])
	}
	return false
}

// printEvents renders a turn as it streams. Errors are reported by the
// caller of Send.
func printEvents(w io.Writer) dispatch.Observer {
	return func(ev agent.Event) {
		switch p := ev.Payload.(type) {
		case agent.Text:
			fmt.Fprint(w, p.Text)
		case agent.ToolCall:
			fmt.Fprintf(w, "\n[tool] %s\n", p.Name)
		case agent.ToolResult:
			if p.IsError {
				fmt.Fprintf(w, "[tool] %s failed\n", p.ToolCallID)
			}
		case agent.TurnSummary:
			fmt.Fprintln(w)
		}
	}
}
