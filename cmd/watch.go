package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/krockxz/mailflow-relay/internal/sseclient"
)

// NewWatchCmd returns the "watch" subcommand: a terminal subscriber that
// prints relay events as they arrive. Useful as a smoke test against a
// running relay.
func NewWatchCmd() *cobra.Command {
	var (
		url         string
		delay       time.Duration
		maxAttempts int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Subscribe to a relay's SSE stream and print events",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWatch(url, delay, maxAttempts)
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:8990/sse", "Relay SSE endpoint")
	cmd.Flags().DurationVar(&delay, "reconnect-delay", sseclient.DefaultReconnectDelay, "Delay between reconnect attempts")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", sseclient.UnlimitedReconnects, "Max consecutive reconnect attempts (-1 = unlimited)")
	return cmd
}

func runWatch(url string, delay time.Duration, maxAttempts int) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := sseclient.New(sseclient.Options{
		URL:                  url,
		ReconnectDelay:       delay,
		MaxReconnectAttempts: maxAttempts,
		Logger:               slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})

	client.OnConnectionChange(func(connected bool) {
		if connected {
			fmt.Printf("connected (client %s)\n", client.ClientID())
		} else {
			fmt.Println("disconnected")
		}
	})
	client.OnEmail(func(eventType string, ev sseclient.EmailEvent) {
		fmt.Printf("%s  message=%s  at=%s\n",
			eventType, ev.MessageID, time.UnixMilli(ev.Timestamp).Format(time.RFC3339))
	})
	client.OnMessage(func(eventType string, data []byte) {
		fmt.Printf("%s  %s\n", eventType, data)
	})

	client.Connect()
	defer client.Disconnect()

	<-ctx.Done()
	return nil
}
