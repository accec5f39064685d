package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rudransh-shrivastava/peer-room/internal/room"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "joins a room",
	Long: `joins a room through the signaling server and opens a direct connection to every participant.
Type a line to send it as a message, "/send path" to share a file, "/peers" to list connections and "/quit" to leave.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		audio, _ := cmd.Flags().GetBool("audio")
		video, _ := cmd.Flags().GetBool("video")

		return runJoin(cmd.Context(), cfg, room.MediaOfferPolicy{
			OfferToReceiveAudio: audio,
			OfferToReceiveVideo: video,
		}, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	joinCmd.Flags().String("signal-url", "", "signaling server websocket url (ROOM_SIGNAL_URL)")
	joinCmd.Flags().String("id", "", "participant id, random when empty (ROOM_PARTICIPANT_ID)")
	joinCmd.Flags().String("stun", "", "comma separated STUN servers (ROOM_STUN_SERVERS)")
	joinCmd.Flags().Int64("max-file-size", 0, "largest file /send accepts, in bytes (ROOM_MAX_FILE_SIZE)")
	joinCmd.Flags().Bool("audio", false, "ask peers for audio")
	joinCmd.Flags().Bool("video", false, "ask peers for video")
}
