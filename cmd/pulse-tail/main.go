package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opspulse/pulsefeed/internal/config"
	"github.com/opspulse/pulsefeed/internal/logging"
	"github.com/opspulse/pulsefeed/internal/realtime"
	"github.com/opspulse/pulsefeed/internal/wire"
)

var (
	configPath string
	urlFlag    string
	tokenFlag  string
	roomFlags  []string
	eventFlags []string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pulse-tail",
	Short: "Tail events from a pulsefeed relay",
	Long:  "Pulse-tail attaches to a relay, joins the given rooms, and prints\nevery matching event to stdout as it arrives.",
	RunE:  runTail,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "pulsefeed.yaml", "path to config file")
	rootCmd.Flags().StringVar(&urlFlag, "url", "", "relay websocket endpoint (overrides config)")
	rootCmd.Flags().StringVar(&tokenFlag, "token", "", "bearer token for the relay (overrides config)")
	rootCmd.Flags().StringSliceVar(&roomFlags, "room", nil, "room to join (repeatable)")
	rootCmd.Flags().StringSliceVar(&eventFlags, "event", nil, "event name to print (repeatable, required)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

func runTail(cmd *cobra.Command, args []string) error {
	if len(eventFlags) == 0 {
		return fmt.Errorf("at least one --event is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	url := cfg.Client.URL
	if urlFlag != "" {
		url = urlFlag
	}
	token := cfg.Client.Token
	if tokenFlag != "" {
		token = tokenFlag
	}

	logger := logging.New(logging.Config{Level: logLevel, JSON: false, Output: os.Stderr})

	client := realtime.New(realtime.Options{
		URL:         url,
		Token:       token,
		BackoffBase: cfg.Client.BackoffBase.Std(),
		BackoffCap:  cfg.Client.BackoffCap.Std(),
		Logger:      logger,
	})
	defer client.Close()

	client.Subscribe(wire.EventConnect, func(e realtime.Event) {
		fmt.Fprintf(os.Stderr, "* connected to %s\n", url)
	})
	client.Subscribe(wire.EventDisconnect, func(e realtime.Event) {
		fmt.Fprintln(os.Stderr, "* disconnected")
	})
	client.Subscribe(wire.EventConnectError, func(e realtime.Event) {
		fmt.Fprintf(os.Stderr, "* connect error: %s\n", string(e.Data))
	})

	for _, event := range eventFlags {
		name := event
		client.Subscribe(name, func(e realtime.Event) {
			ts := time.Now().Format(time.RFC3339)
			if e.Room != "" {
				fmt.Printf("%s [%s] %s %s\n", ts, e.Room, name, string(e.Data))
				return
			}
			fmt.Printf("%s %s %s\n", ts, name, string(e.Data))
		})
	}

	for _, room := range roomFlags {
		client.JoinRoom(room)
	}

	if err := client.Connect(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	client.Disconnect()
	return nil
}
