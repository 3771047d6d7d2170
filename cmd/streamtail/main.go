// Command streamtail logs into a helpdesk server, follows the caller's
// notification stream, and prints events as they arrive. Useful for
// watching delivery behavior during development.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-helpdesk/pkg/config"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/logger"
	"github.com/goliatone/go-helpdesk/pkg/retry"
	"github.com/goliatone/go-helpdesk/pkg/streamclient"
)

func main() {
	var (
		base  = flag.String("base", "http://localhost:8080", "helpdesk server base URL")
		email = flag.String("email", "alice@example.com", "demo user to log in as")
	)
	flag.Parse()

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	cookie, err := login(*base, *email)
	if err != nil {
		log.Fatalf("login as %s: %v", *email, err)
	}

	header := http.Header{}
	header.Set("Cookie", cookie)

	client, err := streamclient.New(streamclient.Options{
		URL:    *base + "/api/notifications/stream",
		Header: header,
		Backoff: &retry.ExponentialBackoff{
			Base: cfg.Client.BaseDelay,
			Max:  cfg.Client.MaxDelay,
		},
		MaxAttempts:      cfg.Client.MaxAttempts,
		HeartbeatTimeout: cfg.Client.HeartbeatTimeout,
		PollInterval:     cfg.Client.PollInterval,
		Poll:             pollUnread(*base, cookie),
		Logger:           logger.New(),
		Callbacks: streamclient.Callbacks{
			OnNotification: func(payload json.RawMessage) {
				fmt.Printf("notification: %s\n", payload)
			},
			OnUnreadCount: func(count int) {
				fmt.Printf("unread count: %d\n", count)
			},
			OnStatusChange: func(status streamclient.Status) {
				fmt.Printf("status: %s\n", status)
			},
		},
	})
	if err != nil {
		log.Fatalf("stream client: %v", err)
	}

	client.Start()
	defer client.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

func login(base, email string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email})
	resp, err := http.Post(base+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "session_id" {
			return fmt.Sprintf("%s=%s", cookie.Name, cookie.Value), nil
		}
	}
	return "", fmt.Errorf("no session cookie in response")
}

// pollUnread is the fallback fetch used once the stream gives up. It hits
// the plain REST endpoint on an interval instead of relying on push.
func pollUnread(base, cookie string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/notifications/unread-count", nil)
		if err != nil {
			return err
		}
		req.Header.Set("Cookie", cookie)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		var payload struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return err
		}
		fmt.Printf("unread count (poll): %d\n", payload.Count)
		return nil
	}
}
