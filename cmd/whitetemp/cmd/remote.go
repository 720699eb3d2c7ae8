package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmcleod/whitetemp/api"
	"github.com/jmcleod/whitetemp/internal/config"
)

// errNoServer means no running server took the command, so it has to run
// against the whitelist file.
var errNoServer = errors.New("no reachable server")

var remoteClient = &http.Client{Timeout: 5 * time.Second}

// forwardCommand runs line on the running server through its admin API, so
// the change lands in the server's memory as well as on disk. Errors wrap
// errNoServer when no server could be asked.
func forwardCommand(ctx context.Context, cfg *config.Config, line string) (string, error) {
	base, ok := cfg.AdminURL()
	if !ok {
		return "", fmt.Errorf("%w: admin API disabled", errNoServer)
	}
	token, err := cfg.AdminToken()
	if err != nil || token == "" {
		return "", fmt.Errorf("%w: no admin token", errNoServer)
	}

	body, err := json.Marshal(api.CommandRequest{Command: line})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/v1/commands", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNoServer, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Operator", "cli")

	resp, err := remoteClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNoServer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var msg api.MessageResponse
		if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
			return "", fmt.Errorf("decoding server reply: %w", err)
		}
		return msg.Message, nil
	}
	var apiErr api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
		return "", fmt.Errorf("server at %s answered %s", base, resp.Status)
	}
	return "", fmt.Errorf("server at %s: %s", base, apiErr.Error)
}
