package main

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"channah-support-chat/internal/chat/chatapi"
	"channah-support-chat/internal/chat/chatlist"
	"channah-support-chat/internal/chat/session"
	"channah-support-chat/internal/chat/transport"
	"channah-support-chat/internal/config"
	"channah-support-chat/internal/dto"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newListCommand(a *app) *cobra.Command {
	var status, search string
	var watch bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show your conversations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := a.credential("/chat")
			if err != nil {
				return err
			}

			var list *chatlist.Controller
			list = chatlist.New(chatlist.Config{
				Lister:     a.api(cred.Token),
				Credential: cred,
				Interval:   a.cfg.ListInterval,
				Logger:     a.log,
				OnChange: func([]dto.Conversation) {
					if watch {
						a.printConversations(list.Query(status, search))
					}
				},
			})

			if watch {
				return list.Run(cmd.Context())
			}
			if err := list.Refresh(cmd.Context()); err != nil {
				return err
			}
			a.printConversations(list.Query(status, search))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "all", "open, active, closed or all")
	cmd.Flags().StringVar(&search, "search", "", "match subject, customer name or email")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep refreshing")
	return cmd
}

func (a *app) printConversations(items []dto.Conversation) {
	a.outMu.Lock()
	defer a.outMu.Unlock()

	if len(items) == 0 {
		a.out.Write([]byte("No conversations.\n"))
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	tw.Write([]byte("ID\tSTATUS\tUNREAD\tSUBJECT\tLAST MESSAGE\n"))
	for _, c := range items {
		last := ""
		if c.LastMessage != nil {
			last = truncate(c.LastMessage.Content, 40)
		}
		tw.Write([]byte(strings.Join([]string{c.ID, c.Status, strconv.Itoa(c.UnreadCount), truncate(c.Subject, 40), last}, "\t") + "\n"))
	}
	tw.Flush()
}

func newCreateCommand(a *app) *cobra.Command {
	var subject, message string

	cmd := &cobra.Command{
		Use:   "create [message]",
		Short: "Open a new support conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				message = strings.Join(args, " ")
			}
			if strings.TrimSpace(message) == "" {
				return errors.New("a first message is required (--message or argument)")
			}
			cred, err := a.credential("/chat/new")
			if err != nil {
				return err
			}
			conv, err := a.api(cred.Token).CreateConversation(cmd.Context(), subject, message)
			if err != nil {
				return chatapi.RequireLogin("/chat/new", errors.Wrap(err, "create conversation"))
			}
			a.printf("Created conversation %s (%s).\n", conv.ID, conv.Status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject line, defaults to the start of the message")
	cmd.Flags().StringVarP(&message, "message", "m", "", "first message")
	return cmd
}

func newCloseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "close <conversation-id>",
		Short: "Close a conversation (agents only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := a.credential("/chat/" + args[0])
			if err != nil {
				return err
			}
			conv, err := a.api(cred.Token).CloseConversation(cmd.Context(), args[0])
			if err != nil {
				return chatapi.RequireLogin("/chat/"+args[0], errors.Wrap(err, "close conversation"))
			}
			a.printf("Conversation %s is %s.\n", conv.ID, conv.Status)
			return nil
		},
	}
}

func newOpenCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open <conversation-id>",
		Short: "Join a conversation; type to send, /close to close, /quit to leave",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConversation(cmd, args[0])
		},
	}
}

func (a *app) runConversation(cmd *cobra.Command, conversationID string) error {
	cred, err := a.credential("/chat/" + conversationID)
	if err != nil {
		return err
	}
	client := a.api(cred.Token)

	closed := make(chan struct{})
	var closeOnce sync.Once
	sessions := session.New(session.Config{
		API:           session.ClientAPI(client),
		Dialer:        transport.NewWebsocketDialer(a.cfg.WSURL),
		PollInterval:  a.cfg.PollInterval,
		TypingTTL:     a.cfg.TypingTTL,
		Backoff:       a.backoff(),
		PollStopAfter: a.cfg.PollStopAfter,
		Logger:        a.log,
	}, session.Funcs{
		Message: func(m dto.Message) {
			who := m.SenderRole
			if m.SenderID == cred.UserID {
				who = "you"
			}
			a.printf("[%s] %s: %s\n", shortTime(m.CreatedAt), who, m.Content)
		},
		Typing: func(typing bool) {
			if typing {
				a.printf("... typing\n")
			}
		},
		Closed: func(string) {
			a.printf("This conversation has been closed.\n")
			closeOnce.Do(func() { close(closed) })
		},
	})
	defer sessions.Shutdown()

	list := chatlist.New(chatlist.Config{
		Lister:     client,
		Opener:     sessions,
		Credential: cred,
		Logger:     a.log,
	})
	if err := list.Refresh(cmd.Context()); err != nil {
		return err
	}
	conv, ok := list.Get(conversationID)
	if !ok {
		return errors.Errorf("conversation %s not found", conversationID)
	}
	if _, err := list.Open(cmd.Context(), conversationID); err != nil {
		return err
	}
	a.printf("Joined %q (%s). Type a message and press enter.\n", conv.Subject, conv.Status)

	g, ctx := errgroup.WithContext(cmd.Context())
	lines := make(chan string)
	go a.readLines(ctx, cmd, lines)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-closed:
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				done, err := a.handleLine(ctx, sessions, line)
				if err != nil {
					a.printf("! %v\n", err)
				}
				if done {
					return nil
				}
			}
		}
	})
	return g.Wait()
}

// handleLine sends one line of input. It reports true when the user asked to
// leave.
func (a *app) handleLine(ctx context.Context, sessions *session.Controller, line string) (bool, error) {
	switch strings.TrimSpace(line) {
	case "":
		return false, nil
	case "/quit", "/exit":
		return true, nil
	case "/close":
		return false, sessions.CloseConversation(ctx)
	}

	sessions.Typing()
	sendCtx, cancel := context.WithTimeout(ctx, a.cfg.HTTPTimeout)
	defer cancel()
	if _, err := sessions.Send(sendCtx, line); err != nil {
		var sendErr *session.SendError
		if errors.As(err, &sendErr) {
			return false, errors.Errorf("not sent, try again: %q (%v)", sendErr.Content, sendErr.Err)
		}
		return false, err
	}
	return false, nil
}

func (a *app) readLines(ctx context.Context, cmd *cobra.Command, lines chan<- string) {
	defer close(lines)
	if a.in == nil {
		a.in = bufio.NewReader(cmd.InOrStdin())
	}
	scanner := bufio.NewScanner(a.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (a *app) backoff() transport.Backoff {
	if a.cfg.Reconnect == config.ReconnectNone {
		return transport.NoReconnect{}
	}
	return transport.DefaultBackoff()
}

func shortTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
