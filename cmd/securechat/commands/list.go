package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your chats with unread counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			chats, err := appCtx.Chats(cmd.Context())
			if err != nil {
				return err
			}
			if len(chats) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no chats")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PEER\tUNREAD\tMESSAGES\tLAST ACTIVITY\tCONTEXT\tSESSION")
			for _, c := range chats {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
					c.PeerName, c.Unread, c.Messages,
					c.LastActivity.Local().Format("2006-01-02 15:04"), c.ContextID, c.SessionID)
			}
			return tw.Flush()
		},
	}
}
