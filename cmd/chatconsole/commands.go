package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/linesmerrill/primecare-chat/chat"
)

func init() {
	conversationsCmd.Flags().StringP("search", "s", "", "only show conversations matching this text")
	rootCmd.AddCommand(loginCmd, conversationsCmd, chatCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and print a token for later commands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		cred := s.Credential()
		fmt.Printf("Signed in as %s (%s)\n", cred.Name, cred.Role)
		fmt.Printf("export CHAT_TOKEN=%s\n", cred.Token)
		return nil
	},
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List your conversations",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		items, err := s.Conversations(cmd.Context())
		if err != nil {
			if chat.IsRetryable(err) {
				return fmt.Errorf("%w (try again)", err)
			}
			return err
		}
		if search, _ := cmd.Flags().GetString("search"); search != "" {
			items = s.Directory.Filter(search)
		}
		if len(items) == 0 {
			fmt.Println("No conversations yet.")
			return nil
		}
		fmt.Printf("%d unread\n", s.Directory.UnreadConversations())
		for _, c := range items {
			unread := ""
			if c.UnreadCount > 0 {
				unread = fmt.Sprintf(" (%d new)", c.UnreadCount)
			}
			name := c.CounterpartName
			if name == "" {
				name = c.CounterpartID
			}
			fmt.Printf("[%s] %-24s %s%s\n     %s\n", c.Initials, name, c.LastMessage, unread, c.ID)
		}
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat [conversation-id]",
	Short: "Open a conversation and chat until EOF",
	Long: `Open a conversation, print its history and follow new messages. Every line
typed is sent; "/file <path>" attaches a file to your local copy. Patients may
omit the conversation id to open their care team conversation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		s, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		items, err := s.Conversations(ctx)
		if err != nil {
			return err
		}
		id := ""
		if len(args) == 1 {
			id = args[0]
		} else if len(items) > 0 {
			id = items[0].ID
		}
		if id == "" {
			return chat.ErrNoConversation
		}

		role := s.Credential().Role
		var mu sync.Mutex
		printed := map[string]bool{}
		s.Stream.OnChange(func(msgs []chat.Message) {
			mu.Lock()
			defer mu.Unlock()
			for _, m := range msgs {
				if printed[m.ID] || printed[m.CorrelationID] && m.CorrelationID != "" {
					continue
				}
				printed[m.ID] = true
				if m.CorrelationID != "" {
					printed[m.CorrelationID] = true
				}
				printMessage(m, role)
			}
		})
		s.Stream.OnTyping(func(typing bool) {
			if typing {
				fmt.Println("  ...typing")
			}
		})
		s.Conn.OnStatus(func(connected bool) {
			if !connected {
				fmt.Fprintln(os.Stderr, "disconnected from chat")
			}
		})

		if err := s.Open(ctx, id); err != nil {
			return err
		}

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if err := send(cmd, s, line); err != nil && err != chat.ErrEmptyMessage {
					fmt.Fprintf(os.Stderr, "not sent: %v\n", err)
				}
			}
		}
	},
}

func send(cmd *cobra.Command, s *chat.Session, line string) error {
	if path, ok := strings.CutPrefix(line, "/file "); ok {
		f, err := os.Open(strings.TrimSpace(path))
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = s.Send(cmd.Context(), "", &chat.Upload{Name: filepath.Base(f.Name()), Data: f})
		return err
	}
	_, err := s.Send(cmd.Context(), line, nil)
	return err
}

func printMessage(m chat.Message, role string) {
	who := "them"
	if m.FromSelf(role) {
		who = "you"
	}
	text := m.Content
	if m.Attachment != nil {
		text = strings.TrimSpace(text + " [" + m.Attachment.Name + " " + m.Attachment.URL + "]")
	}
	fmt.Printf("%s %-4s %s\n", m.CreatedAt.Local().Format("15:04"), who, text)
}
