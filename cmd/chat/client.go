package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"omnitak.com/support-hub/internal/core"
)

// client talks to the chat HTTP API for a single session.
type client struct {
	baseURL   string
	token     string
	sessionID string
	http      *http.Client
}

func newClient(baseURL, token, sessionID string) *client {
	return &client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		sessionID: sessionID,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *client) start(ctx context.Context) (core.StartedConversation, error) {
	var started core.StartedConversation
	err := c.do(ctx, http.MethodPost, "/api/chat/start", map[string]string{"session_id": c.sessionID}, &started)
	if err == nil {
		c.sessionID = started.SessionID
	}
	return started, err
}

func (c *client) send(ctx context.Context, message string) (core.Reply, error) {
	var reply core.Reply
	err := c.do(ctx, http.MethodPost, "/api/chat/send", map[string]string{
		"message":    message,
		"session_id": c.sessionID,
	}, &reply)
	return reply, err
}

func (c *client) escalate(ctx context.Context, reason string) (core.EscalationResult, error) {
	var result core.EscalationResult
	err := c.do(ctx, http.MethodPost, "/api/chat/"+c.sessionID+"/escalate", map[string]string{"reason": reason}, &result)
	return result, err
}

func (c *client) end(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/chat/"+c.sessionID+"/end", nil, nil)
}
