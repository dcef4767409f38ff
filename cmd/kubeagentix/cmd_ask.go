package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/gateway"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/session"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/state"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
)

var askConversation string

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askConversation, "conversation", "c", "", "conversation id to continue (default: new conversation)")
}

var askCmd = &cobra.Command{
	Use:   "ask <message>...",
	Short: "Send one or more messages and print the replies",
	Long: `Send each argument as a message, in order, on one conversation and print
each reply when its turn ends. Stored conversations are resumed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

type askResult struct {
	reply string
	err   error
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	backend, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store.MigrateLegacy(ctx)

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	events := state.NewEventLog(cfg.DataDir)
	gw := gateway.New(gateway.Options{
		Transport:        newTransport(cfg),
		Store:            store,
		Engine:           engine,
		UserID:           cfg.Agent.UserID,
		TenantID:         cfg.Agent.TenantID,
		Context:          requestContext(cfg),
		ToolPreferences:  toolPreferences(cfg),
		ModelPreferences: modelPreferences(cfg),
		MaxConcurrent:    int64(cfg.MaxConcurrent),
		OnSession: func(s *session.Session) {
			s.Subscribe(events.Recorder(s.ConversationID))
		},
	})
	gw.Start(ctx)
	defer gw.Stop()

	sess, err := gw.Session(ctx, types.ConversationID(askConversation))
	if err != nil {
		return err
	}
	id := sess.ConversationID()
	fmt.Fprintf(os.Stderr, "conversation %s\n", id)

	results := make(chan askResult, len(args))
	for _, msg := range args {
		_, err := gw.Submit(id, msg, gateway.WithOnDone(func(reply string, err error) {
			results <- askResult{reply, err}
		}))
		if err != nil {
			return err
		}
	}

	for range args {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-results:
			if r.err != nil {
				return r.err
			}
			fmt.Fprintln(os.Stdout, r.reply)
		}
	}
	return nil
}
