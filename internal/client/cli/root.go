package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/config"
	"github.com/spf13/cobra"
)

// App carries what every subcommand needs.
type App struct {
	client client.Client
	reader *bufio.Reader
	out    io.Writer
}

// NewRootCommand builds the authctl command tree. The API client is created
// from configuration right before a subcommand runs.
func NewRootCommand() *cobra.Command {
	app := &App{reader: bufio.NewReader(os.Stdin), out: os.Stdout}

	var (
		configPath  string
		serverURL   string
		sessionFile string
	)

	cmd := newRootCommand(app)
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(commandContext(cmd), configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("server") {
			cfg.ServerURL = serverURL
		}
		if cmd.Flags().Changed("session-file") {
			cfg.SessionFile = sessionFile
		}
		app.client = client.New(cfg.ServerURL, client.NewFileSessionStore(cfg.SessionFile), cfg.Timeout)
		return nil
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a JSON config file")
	cmd.PersistentFlags().StringVarP(&serverURL, "server", "a", "", "Base URL of the authkeeper server")
	cmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "File keeping the session between runs")
	return cmd
}

// newRootCommand wires the subcommands to app without any configuration
// loading, so tests can inject a client.
func newRootCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Command-line client for the authkeeper auth server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		app.newSignupCommand(),
		app.newLoginCommand(),
		app.newLogoutCommand(),
		app.newVerifyCommand(),
		app.newForgotCommand(),
		app.newResetCommand(),
		app.newWhoamiCommand(),
	)
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
