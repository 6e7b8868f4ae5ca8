package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/linesmerrill/primecare-chat/chat"
	"github.com/linesmerrill/primecare-chat/config"
	"github.com/linesmerrill/primecare-chat/logging"
)

// rootCmd is the terminal chat console for patients and the care team
var rootCmd = &cobra.Command{
	Use:   "chatconsole",
	Short: "PrimeCare chat from the terminal",
	Long: `chatconsole signs in to the PrimeCare chat service and lets patients talk to
the care team, or care team members answer every patient conversation.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadEnv()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().String("email", "", "account email (prompted when empty)")
	rootCmd.PersistentFlags().String("token", "", "bearer token from a previous login (default $CHAT_TOKEN)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log connection events")
}

// openSession builds a session and signs in with --token, $CHAT_TOKEN or an
// email and password prompt
func openSession(ctx context.Context, cmd *cobra.Command) (*chat.Session, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	env := "production"
	if verbose {
		env = "development"
	}

	cfg := chat.ConfigFromEnv()
	cfg.Log = logging.New(env)
	if url := os.Getenv("CLOUDINARY_URL"); url != "" {
		up, err := chat.NewCloudinaryUploader(url, "primecare-chat")
		if err != nil {
			return nil, err
		}
		cfg.Uploader = up
	}
	s := chat.NewSession(cfg)

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("CHAT_TOKEN")
	}
	if token != "" {
		u, err := s.API.Me(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("token rejected: %w", err)
		}
		return s, s.Start(ctx, chat.Credential{Token: token, UserID: u.ID, Name: u.FullName, Role: u.Role})
	}

	email, _ := cmd.Flags().GetString("email")
	reader := bufio.NewReader(os.Stdin)
	if email == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	password, err := readPassword(reader)
	if err != nil {
		return nil, err
	}
	if _, err := s.Login(ctx, email, password); err != nil {
		var fe *chat.FetchError
		if errors.As(err, &fe) {
			return nil, fmt.Errorf("sign in failed: %w", err)
		}
		// connected or not, REST calls still work
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	return s, nil
}

func readPassword(reader *bufio.Reader) (string, error) {
	fmt.Print("Password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err == nil {
		return string(b), nil
	}
	// not a terminal, e.g. piped input
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
