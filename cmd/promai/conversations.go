package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"promai/internal/store"
	"promai/pkg/types"
)

// openStore opens the configured store without loading a model.
func openStore(root *rootOptions, errOut io.Writer) (*store.Store, error) {
	cfg, err := root.load()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.ConversationsDir, store.Options{
		OnRepair: func(r *store.RepairError) { fmt.Fprintf(errOut, "note: %s\n", r.Error()) },
	})
}

func newConversationsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List, show or delete stored conversations",
	}
	cmd.AddCommand(newConvListCmd(root), newConvShowCmd(root), newConvDeleteCmd(root))
	return cmd
}

func newConvListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer st.Close()
			metas, err := st.Metas()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tTURNS\tUPDATED")
			for _, m := range metas {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", m.ID, m.Title, m.TurnCount, humanize.Time(m.UpdatedAt))
			}
			return w.Flush()
		},
	}
}

func newConvShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer st.Close()
			conv, err := st.Load(args[0])
			if err != nil {
				return err
			}
			printConversation(cmd.OutOrStdout(), conv)
			return nil
		},
	}
}

func printConversation(w io.Writer, conv *types.Conversation) {
	fmt.Fprintf(w, "# %s\n", conv.Title)
	for _, t := range conv.Turns {
		who := "You"
		if t.Role == types.RoleAssistant {
			who = "Assistant"
		}
		fmt.Fprintf(w, "\n[%s] %s\n%s\n", t.Timestamp.Local().Format(time.DateTime), who, t.Content)
	}
}

func newConvDeleteCmd(root *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := store.ValidateID(id); err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(fmt.Sprintf("Delete conversation %s?", id))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			st, err := openStore(root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
