package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

var chatterUsers = map[string][]string{
	"alice": {"Hello world", "Reviewing the release notes", "Lunch, back in 30", "Shipping it"},
	"bob":   {"Rust programming", "Debugging a flaky test", "On call this week", "Pairing with carol"},
	"carol": {"Go is fun", "Writing docs", "Out of office tomorrow", "Coffee?"},
}

// RunChatter posts a random status for a random simulated user every 2-6
// seconds, and occasionally deletes one, until ctx is cancelled.
func RunChatter(ctx context.Context, baseURL string) {
	client := &http.Client{Timeout: 5 * time.Second}
	users := make([]string, 0, len(chatterUsers))
	for u := range chatterUsers {
		users = append(users, u)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(2+rand.Intn(5)) * time.Second):
		}

		user := users[rand.Intn(len(users))]
		var err error
		if rand.Intn(8) == 0 {
			err = send(ctx, client, http.MethodDelete, baseURL, user, nil)
		} else {
			msgs := chatterUsers[user]
			err = send(ctx, client, http.MethodPost, baseURL, user, map[string]string{
				"message": msgs[rand.Intn(len(msgs))],
			})
		}
		if err != nil && ctx.Err() == nil {
			slog.Warn("chatter request failed", "identity", user, "error", err)
		}
	}
}

func send(ctx context.Context, client *http.Client, method, baseURL, identity string, body any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+"/api/status", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Identity", identity)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", method, req.URL.Path, resp.Status)
	}
	return nil
}
