// Command cli queries the configured music server the same way the bot does.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/keshon/discodrome/internal/config"
	"github.com/keshon/discodrome/internal/subsonic"
)

func main() {
	a := &app{newClient: clientFromEnv}
	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func clientFromEnv() (*subsonic.Client, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	log.SetLevel(cfg.Level())
	return subsonic.New(cfg.Subsonic(), subsonic.WithLogger(log.Default().WithPrefix("subsonic"))), nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "discodrome-cli",
		Short:        "Query the music server behind the Discodrome bot",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			c, err := a.newClient()
			if err != nil {
				return err
			}
			a.client = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.client != nil {
				a.client.Close()
			}
		},
	}

	root.AddCommand(
		a.pingCmd(),
		a.searchCmd(),
		a.playlistsCmd(),
		a.playlistCmd(),
		a.albumCmd(),
		a.discoCmd(),
		a.randomCmd(),
		a.similarCmd(),
		a.coverCmd(),
		a.streamCmd(),
	)
	return root
}
