package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/rudransh-shrivastava/peer-room/internal/room"
	"github.com/rudransh-shrivastava/peer-room/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "prints the chat history",
	Long:  `prints the most recent chat messages and shared files stored by previous sessions`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := store.Open(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close(db) }()

		entries, err := store.NewChatStore(db).List(cmd.Context(), limit)
		if err != nil {
			return err
		}

		writeHistory(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 50, "number of entries to show, 0 for all")
}

func writeHistory(out io.Writer, entries []room.ChatEntry) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Time", "From", "To", "Message"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, e := range entries {
		msg := e.Message
		if e.Image != "" {
			msg = fmt.Sprintf("[file] %s", e.Message)
		}
		table.Append([]string{e.Timestamp.Format(time.DateTime), e.UserID, e.Recipient, msg})
	}
	table.Render()
}
