package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iudanet/changesync/internal/client/api"
	"github.com/iudanet/changesync/internal/client/iocli"
	"github.com/iudanet/changesync/internal/client/storage/boltdb"
	"github.com/iudanet/changesync/internal/client/sync"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	DB      string
	Token   string
	Verbose bool
}

// Opener собирает Cli для выполнения команды. Возвращаемая функция освобождает ресурсы.
type Opener func(ctx context.Context, opts *RootOptions, io iocli.IO) (*Cli, func() error, error)

// NewRootCommand creates the root command of the client.
func NewRootCommand(version string, stdio iocli.IO) *cobra.Command {
	return newRootCommand(version, stdio, openBolt)
}

func newRootCommand(version string, stdio iocli.IO, open Opener) *cobra.Command {
	opts := &RootOptions{}

	var (
		app     *Cli
		closeFn func() error
	)

	cmd := &cobra.Command{
		Use:     "changesync",
		Short:   "Offline change queue for the changesync server",
		Long:    "Records local edits to catalog entities in a local outbox and pushes them to the server in batches.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// help и completion не работают с локальной базой
			if cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
				return nil
			}
			var err error
			app, closeFn, err = open(cmd.Context(), opts, stdio)
			if err != nil {
				return fmt.Errorf("failed to open client: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if closeFn == nil {
				return nil
			}
			return closeFn()
		},
		SilenceUsage: true,
	}

	cmd.SetOut(stdio)
	cmd.SetErr(stdio)

	cmd.PersistentFlags().StringVar(&opts.Server, "server", "http://localhost:8080", "server URL")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "changesync-client.db", "path to local database")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "sync token (default $"+TokenEnv+")")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	get := func() *Cli { return app }

	cmd.AddCommand(newPutCommand(get))
	cmd.AddCommand(newDeleteCommand(get))
	cmd.AddCommand(newPushCommand(get, opts))
	cmd.AddCommand(newStatusCommand(get))

	return cmd
}

// openBolt открывает локальную BoltDB и собирает сервис синхронизации
func openBolt(ctx context.Context, opts *RootOptions, stdio iocli.IO) (*Cli, func() error, error) {
	store, err := boltdb.New(ctx, opts.DB)
	if err != nil {
		return nil, nil, err
	}

	var logOut io.Writer = io.Discard
	if opts.Verbose {
		logOut = stdio
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	apiClient := api.NewClient(opts.Server)
	syncService := sync.NewService(apiClient, store, store, logger)

	return New(stdio, store, store, syncService), store.Close, nil
}
