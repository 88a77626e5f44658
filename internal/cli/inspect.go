package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/rollcall/internal/engine"
	"github.com/lazypower/rollcall/internal/store"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"chats"},
	Short:   "List tracked group chats",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		ids, err := st.ListConversations(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no tracked chats")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CHAT\tMEMBERS")
		for _, id := range ids {
			recs, err := st.ListMembers(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%d\t%d\n", id, len(recs))
		}
		return tw.Flush()
	},
}

// Group chat ids are negative, so the id is a flag value rather than a
// positional argument that cobra would parse as a shorthand flag.
var membersChat int64

func init() {
	membersCmd.Flags().Int64Var(&membersChat, "chat", 0, "chat id, e.g. --chat=-1001234567890")
}

var membersCmd = &cobra.Command{
	Use:     "members --chat <chat-id>",
	Short:   "List a chat's members and how long they have been inactive",
	Example: "  rollcall members --chat=-1001234567890",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if membersChat == 0 {
			return errors.New("--chat is required")
		}
		chatID := membersChat

		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		recs, err := st.ListMembers(ctx, chatID)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no members tracked in chat %d\n", chatID)
			return nil
		}

		th := engine.Thresholds{WarnAfter: cfg.Moderation.WarnAfterDays, RemoveAfter: cfg.Moderation.RemoveAfterDays}
		today := engine.Today(time.Now())

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MEMBER\tNAME\tLAST ACTIVE\tDAYS\tSTATUS")
		for _, rec := range recs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
				rec.MemberID, rec.DisplayName, rec.LastActive.Format(store.DateLayout),
				engine.DaysInactive(today, rec.LastActive), th.Status(rec, today))
		}
		return tw.Flush()
	},
}
