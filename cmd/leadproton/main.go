// Command leadproton manages the lead workspace from the terminal. It uses
// the same store as the API server, so both can run side by side.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leadproton/server/internal/app"
	"github.com/leadproton/server/internal/config"
	"github.com/leadproton/server/internal/workspace"
	"github.com/leadproton/server/pkg/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	app     *app.App
	out     io.Writer
	verbose bool
}

func (c *cli) ws() *workspace.Workspace {
	return c.app.Workspace
}

func (c *cli) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "leadproton",
		Short: "Manage leads, follow-ups and templates",
		Long: `leadproton works on the lead workspace shared with the API server.

The store is selected with STORE_BACKEND and STORE_PATH (or a .env file);
AI features use GEMINI_API_KEY, ANTHROPIC_API_KEY or OPENAI_API_KEY when set.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.out == nil {
				c.out = cmd.OutOrStdout()
			}
			if c.app != nil {
				return nil
			}
			return c.open(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newLeadsCmd(c),
		newTemplatesCmd(c),
		newFollowUpCmd(c),
		newDiscoverCmd(c),
		newAnalyticsCmd(c),
	)
	return root
}

func (c *cli) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewNop()
	if c.verbose {
		if log, err = logger.NewDevelopment(); err != nil {
			return err
		}
	}
	logger.SetGlobal(log)

	c.app, err = app.New(ctx, cfg, log)
	return err
}

func main() {
	c := &cli{}
	err := newRootCmd(c).ExecuteContext(context.Background())
	if c.app != nil {
		c.app.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}
