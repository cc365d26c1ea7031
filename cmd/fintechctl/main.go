package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fintech/internal/app/logger"
	"fintech/pkg/walletclient"
)

const defaultAPIURL = "http://localhost:3000"

type cli struct {
	apiURL      string
	sessionFile string
	verbose     bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", userMessage(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "fintechctl",
		Short:         "Command line client for the fintech wallet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	apiURL := os.Getenv("FINTECH_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	root.PersistentFlags().StringVar(&c.apiURL, "api-url", apiURL, "Wallet API base URL (env FINTECH_API_URL)")
	root.PersistentFlags().StringVar(&c.sessionFile, "session-file", defaultSessionFile(), "Where the login session is kept")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log HTTP calls")

	root.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.balanceCmd(),
		c.sendCmd(),
		c.historyCmd(),
		c.watchCmd(),
	)

	return root
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".fintech-session.json"
	}
	return filepath.Join(dir, "fintech", "session.json")
}

func (c *cli) client() (*walletclient.Service, error) {
	l := logger.Nop().Logger
	if c.verbose {
		l = logger.New(true, true).Logger.Level(zerolog.DebugLevel)
	}
	return walletclient.NewService(c.apiURL, walletclient.WithLogger(l))
}

func (c *cli) session() (*walletclient.Session, error) {
	s, err := walletclient.LoadSession(c.sessionFile)
	if errors.Is(err, walletclient.ErrNoSession) {
		return nil, errors.New("not logged in, run: fintechctl login")
	}
	return s, err
}

// userMessage strips transport detail from network failures
func userMessage(err error) string {
	if errors.Is(err, walletclient.ErrNetwork) {
		return walletclient.ErrNetwork.Error()
	}
	return err.Error()
}
