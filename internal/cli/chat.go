// chat.go implements "concierge chat", an interactive session over stdin.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/capitalize-ai/travel-concierge/internal/app"
	"github.com/capitalize-ai/travel-concierge/internal/config"
	"github.com/capitalize-ai/travel-concierge/internal/language"
	"github.com/capitalize-ai/travel-concierge/internal/service"
	"github.com/capitalize-ai/travel-concierge/internal/session"
)

var (
	chatLanguage string
	chatModel    string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat with the concierge.

Commands:
  /new          start a new chat session
  /list         list earlier chats
  /switch <id>  continue an earlier chat
  /quit         exit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatLanguage, "language", "l", "", "Reply language (default: detect per message)")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Override the provider's model")
}

func runChat(cmd *cobra.Command, args []string) error {
	var lang language.Label
	if chatLanguage != "" {
		l, ok := language.Parse(chatLanguage)
		if !ok {
			return fmt.Errorf("unsupported language %q", chatLanguage)
		}
		lang = l
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if chatModel != "" {
		cfg.LLMModel = chatModel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.New(cfg, nil, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	r := &repl{
		chat:        a.Chat,
		language:    lang,
		in:          cmd.InOrStdin(),
		out:         cmd.OutOrStdout(),
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
	return r.run(ctx)
}

// repl reads user lines and slash commands and prints streamed replies.
type repl struct {
	chat        *service.ChatService
	language    language.Label
	in          io.Reader
	out         io.Writer
	interactive bool
}

func (r *repl) run(ctx context.Context) error {
	if r.interactive {
		fmt.Fprintln(r.out, "Multilingual Travel Concierge. Type /quit to exit.")
	}

	lines, scanErr := r.readLines(ctx)
	for {
		if r.interactive {
			fmt.Fprint(r.out, "> ")
		}

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := r.command(line)
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := r.turn(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(r.out, "\nerror: %v\n", err)
		}
	}
}

// readLines feeds input lines to a channel so an interrupt can end the
// session while a read is blocked. The error channel receives the scanner
// error once lines is closed.
func (r *repl) readLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(r.in)
		defer func() {
			errc <- scanner.Err()
			close(lines)
		}()

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	return lines, errc
}

func (r *repl) command(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	store := r.chat.Store()

	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/new":
		fmt.Fprintf(r.out, "started chat %s\n", store.Create())
	case "/list":
		sessions := store.List()
		if len(sessions) == 0 {
			fmt.Fprintln(r.out, "no earlier chats")
		}
		for _, s := range sessions {
			marker := " "
			if s.Active {
				marker = "*"
			}
			fmt.Fprintf(r.out, "%s %s  %s\n", marker, s.ID, s.Preview)
		}
	case "/switch":
		if len(fields) != 2 {
			return false, errors.New("usage: /switch <id>")
		}
		if err := store.SetActive(fields[1]); err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return false, fmt.Errorf("no chat %s", fields[1])
			}
			return false, err
		}
		detail, err := store.Detail(fields[1])
		if err != nil {
			return false, err
		}
		for _, m := range detail.Messages {
			fmt.Fprintf(r.out, "%s: %s\n", m.Role, m.Content)
		}
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}

func (r *repl) turn(ctx context.Context, line string) error {
	sessionID := r.chat.Store().ActiveID()

	_, err := r.chat.HandleTurnStream(ctx, sessionID, line, r.language, func(token string, _ int) error {
		_, err := io.WriteString(r.out, token)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(r.out)
	return nil
}
