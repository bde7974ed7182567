package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"channah-support-chat/internal/chat/chatapi"
	"channah-support-chat/internal/chat/credential"
	"channah-support-chat/internal/config"
	"channah-support-chat/pkg/logger"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs.
type app struct {
	cfg   config.Client
	log   *logger.Logger
	creds *credential.Store

	in    *bufio.Reader
	outMu sync.Mutex
	out   io.Writer
}

func (a *app) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) api(token string) *chatapi.Client {
	return chatapi.New(a.cfg.APIURL,
		chatapi.WithTimeout(a.cfg.HTTPTimeout),
		chatapi.WithToken(token),
		chatapi.WithLogger(a.log),
	)
}

// credential loads the stored sign-in or asks the user to log in.
func (a *app) credential(returnPath string) (credential.Credential, error) {
	cred, err := a.creds.Load()
	if err != nil {
		return cred, err
	}
	if !cred.Valid() {
		return cred, &chatapi.LoginRequiredError{ReturnPath: returnPath, Reason: chatapi.ReasonMissingToken}
	}
	return cred, nil
}

func newRootCommand(a *app) *cobra.Command {
	var (
		apiURL    string
		wsURL     string
		credsFile string
		logLevel  string
	)

	root := &cobra.Command{
		Use:           "chat-client",
		Short:         "Talk to customer support from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiURL != "" {
				a.cfg.APIURL = apiURL
			}
			if wsURL != "" {
				a.cfg.WSURL = wsURL
			}
			if credsFile != "" {
				a.cfg.CredentialsFile = credsFile
			}
			if a.cfg.CredentialsFile == "" {
				a.cfg.CredentialsFile = credential.DefaultPath()
			}
			if logLevel != "" {
				a.cfg.LogLevel = logLevel
			}

			lg, err := logger.NewStderr(a.cfg.LogLevel)
			if err != nil {
				return errors.Wrap(err, "init logger")
			}
			a.log = lg
			logger.SetGlobal(lg)
			a.creds = credential.NewStore(a.cfg.CredentialsFile)
			a.out = cmd.OutOrStdout()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&apiURL, "api", "", "chat API base URL (default $CHAT_API_URL)")
	root.PersistentFlags().StringVar(&wsURL, "ws", "", "push channel base URL (default $CHAT_WS_URL)")
	root.PersistentFlags().StringVar(&credsFile, "credentials", "", "credential file (default $CHAT_CREDENTIALS_FILE)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newLoginCommand(a),
		newRegisterCommand(a),
		newLogoutCommand(a),
		newListCommand(a),
		newCreateCommand(a),
		newOpenCommand(a),
		newCloseCommand(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: config.LoadClient(), out: os.Stdout}
	err := newRootCommand(a).ExecuteContext(ctx)
	if a.log != nil {
		a.log.Sync()
	}
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	var loginErr *chatapi.LoginRequiredError
	if errors.As(err, &loginErr) {
		fmt.Fprintf(os.Stderr, "Login required (%s). Run `chat-client login`, then return to %s.\n", loginErr.Reason, loginErr.ReturnPath)
		os.Exit(2)
	}
	if errors.Is(err, chatapi.ErrUnauthenticated) {
		fmt.Fprintln(os.Stderr, "Login required. Run `chat-client login` first.")
		os.Exit(2)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
