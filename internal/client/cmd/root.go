package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/rudransh-shrivastava/peer-room/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   `peer-room`,
	Short: `peer-room is a peer to peer chat room`,
	Long:  `peer-room connects directly to every participant of a room and exchanges chat messages and files with them`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("history", "", "chat history database (ROOM_HISTORY_DB)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (ROOM_LOG_LEVEL)")

	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig reads the environment and applies any flags set on cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	flags := map[string]*string{
		"history":    &cfg.HistoryDB,
		"log-level":  &cfg.LogLevel,
		"signal-url": &cfg.SignalURL,
		"id":         &cfg.ParticipantID,
		"stun":       &cfg.STUNServers,
	}
	for name, dst := range flags {
		f := cmd.Flags().Lookup(name)
		if f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	if f := cmd.Flags().Lookup("max-file-size"); f != nil && f.Changed {
		if cfg.MaxFileSize, err = cmd.Flags().GetInt64("max-file-size"); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}
