package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"channah-support-chat/internal/config"
	"channah-support-chat/internal/database"
	internaljwt "channah-support-chat/internal/jwt"
	authservice "channah-support-chat/internal/service/auth"
	"channah-support-chat/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadServer()
	lg, err := logger.NewStderr(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}
	defer lg.Sync()

	cobra.CheckErr(newRootCommand(cfg, lg).ExecuteContext(ctx))
}

func newRootCommand(cfg config.Server, lg *logger.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "chat-admin",
		Short:        "Operate the support chat DynamoDB storage",
		SilenceUsage: true,
	}

	openDB := func(ctx context.Context) (*database.Database, error) {
		return database.NewDatabase(ctx, database.Config{
			Region:       cfg.AWSRegion,
			Endpoint:     cfg.DynamoDBEndpoint,
			AccessKey:    cfg.AWSID,
			SecretKey:    cfg.AWSSecret,
			SessionToken: cfg.AWSToken,
		})
	}

	tables := &cobra.Command{
		Use:   "tables",
		Short: "Show the state of the chat tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			statuses, err := db.TableStatuses(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TABLE\tSTATUS\tITEMS\tINDEXES")
			for _, st := range statuses {
				status := st.Status
				if !st.Exists {
					status = "MISSING"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", st.Name, status, st.ItemCount, strings.Join(st.Indexes, ","))
			}
			return tw.Flush()
		},
	}

	tables.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create missing chat tables and wait until they are active",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			created, err := db.EnsureTables(cmd.Context())
			if err != nil {
				return err
			}
			lg.Info("tables ensured", zap.Strings("created", created))
			return nil
		},
	})

	tables.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every table visible to the configured account",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			names, err := db.Client.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})

	var agent authservice.RegisterParams
	createAgent := &cobra.Command{
		Use:   "create-agent",
		Short: "Create a support agent account",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			// Register signs a token for the new account.
			internaljwt.Configure(cfg.UserSecret, cfg.TokenTTL)
			agent.Role = "agent"
			result, err := authservice.New(db).Register(cmd.Context(), agent)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created agent %s (%s)\n", result.User.Email, result.User.UserID)
			return nil
		},
	}
	createAgent.Flags().StringVar(&agent.Name, "name", "", "display name")
	createAgent.Flags().StringVar(&agent.Email, "email", "", "login email")
	createAgent.Flags().StringVar(&agent.Password, "password", "", "initial password")

	root.AddCommand(tables, createAgent)
	return root
}
