// watch.go implements "concierge watch", tailing transcript events from NATS.
package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/travel-concierge/internal/config"
	"github.com/capitalize-ai/travel-concierge/internal/model"
	natsclient "github.com/capitalize-ai/travel-concierge/internal/nats"
)

var watchCmd = &cobra.Command{
	Use:   "watch [session-id]",
	Short: "Print transcript events published by a running server",
	Long: `Subscribe to the transcript events a server publishes to NATS and
print them as they arrive. Without a session id every session is shown.
Requires NATS_URL.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.NATSURL == "" {
		return errors.New("NATS_URL is not set")
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	client, err := natsclient.Connect(natsclient.Config{
		URL:   cfg.NATSURL,
		Token: cfg.NATSToken,
		Name:  "concierge-watch",
	}, log)
	if err != nil {
		return err
	}
	defer client.Close()

	sessionID := "*"
	if len(args) == 1 {
		sessionID = args[0]
	}

	out := cmd.OutOrStdout()
	sub, err := client.SubscribeTranscripts(sessionID, func(event *model.TranscriptEvent) {
		fmt.Fprintln(out, formatEvent(event))
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}

func formatEvent(event *model.TranscriptEvent) string {
	line := fmt.Sprintf("%s %s %s", event.CreatedAt.Format("15:04:05"), event.SessionID, event.Message.Role)
	if event.Language != "" {
		line += fmt.Sprintf(" [%s/%s]", event.Language, event.Intent)
	}
	return line + ": " + event.Message.Content
}
