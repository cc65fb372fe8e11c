// Package chatstreamcmder
package chatstreamcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/chatstream/cmd/chatstream/chat"
	configcmder "github.com/papercomputeco/chatstream/cmd/chatstream/config"
	initcmder "github.com/papercomputeco/chatstream/cmd/chatstream/init"
	servecmder "github.com/papercomputeco/chatstream/cmd/chatstream/serve"
	versioncmder "github.com/papercomputeco/chatstream/cmd/version"
)

const chatstreamLongDesc string = `Chatstream streams chat replies token by token over Server-Sent Events.

Run the server and talk to it using:
  chatstream serve     Run the streaming chat server
  chatstream chat      Start an interactive chat session against a server
  chatstream init      Create a local .chatstream/ directory
  chatstream config    Manage persistent configuration`

const chatstreamShortDesc string = "Chatstream - token streaming chat"

func NewChatstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chatstream",
		Short:        chatstreamShortDesc,
		Long:         chatstreamLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .chatstream/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
