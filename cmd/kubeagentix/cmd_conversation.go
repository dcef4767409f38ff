package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/codec"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/state"
	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
)

var (
	showRaw     bool
	eventsLimit int
)

func init() {
	rootCmd.AddCommand(conversationCmd)
	conversationCmd.AddCommand(conversationListCmd, conversationShowCmd, conversationDeleteCmd, conversationEventsCmd)
	conversationShowCmd.Flags().BoolVar(&showRaw, "raw", false, "print the stored CBOR value in diagnostic notation")
	conversationEventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "number of most recent events to show (0 for all)")
}

var conversationCmd = &cobra.Command{
	Use:     "conversation",
	Aliases: []string{"conv"},
	Short:   "Manage stored conversations",
}

var conversationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored conversations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		backend, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		ctx := context.Background()
		store.MigrateLegacy(ctx)
		list, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		events := state.NewEventLog(cfg.DataDir)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tOUTCOME\tMESSAGES\tEVENTS\tNAMESPACE\tUPDATED")
		for _, c := range list {
			count, err := events.Count(ctx, c.ID)
			if err != nil {
				count = 0
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				c.ID,
				c.Outcome,
				len(c.Messages),
				count,
				c.Namespace,
				c.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var conversationShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		backend, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		ctx := context.Background()
		id := types.ConversationID(args[0])
		if showRaw {
			data, err := store.Raw(ctx, id)
			if err != nil {
				return err
			}
			diag, err := codec.Diagnose(data)
			if err != nil {
				return err
			}
			fmt.Println(diag)
			return nil
		}

		conv, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Conversation %s (%s)\n", conv.ID, conv.Outcome)
		if conv.Cluster != "" || conv.Namespace != "" {
			fmt.Printf("Context: cluster=%q namespace=%q\n", conv.Cluster, conv.Namespace)
		}
		for _, m := range conv.Messages {
			fmt.Printf("\n[%s]\n%s\n", m.Role, m.Content)
		}
		if len(conv.ToolCalls) > 0 {
			fmt.Println("\nTool calls:")
			for _, tc := range conv.ToolCalls {
				fmt.Printf("  %s %s\n", tc.ID, tc.Name)
			}
		}
		return nil
	},
}

var conversationDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		backend, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := store.Delete(context.Background(), types.ConversationID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Conversation %s deleted.\n", args[0])
		return nil
	},
}

var conversationEventsCmd = &cobra.Command{
	Use:   "events <id>",
	Short: "Print the streamed event log of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		events := state.NewEventLog(cfg.DataDir)
		list, err := events.Tail(context.Background(), types.ConversationID(args[0]), eventsLimit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No events found.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tTIME\tTYPE\tPAYLOAD")
		for _, ev := range list {
			payload := string(ev.Payload)
			var compact map[string]any
			if json.Unmarshal(ev.Payload, &compact) == nil {
				if b, err := json.Marshal(compact); err == nil {
					payload = string(b)
				}
			}
			if len(payload) > 120 {
				payload = payload[:117] + "..."
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", ev.Seq, ev.At.Local().Format("15:04:05.000"), ev.Type, payload)
		}
		return w.Flush()
	},
}
