package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xr-emulator/panel/internal/app"
	"github.com/xr-emulator/panel/internal/client"
)

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL of the XR emulator")
	token := flag.String("token", "", "Auth token (if the emulator requires it)")
	presetsPath := flag.String("presets", "", "YAML file of headset presets")
	flag.Parse()

	if err := run(*wsURL, *token, *presetsPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wsURL, token, presetsPath string) error {
	var presets []client.Preset
	if presetsPath != "" {
		var err error
		if presets, err = client.LoadPresets(presetsPath); err != nil {
			return err
		}
	}

	httpClient := client.NewHTTPClient(deriveHTTPBase(wsURL), token)
	if err := checkToken(httpClient); err != nil {
		return err
	}

	m := app.New(client.NewWSClient(wsURL, token), httpClient, presets)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// checkToken fails fast on a rejected token. An unreachable emulator is not an
// error: the panel keeps reconnecting.
func checkToken(c *client.HTTPClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Device(ctx)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return fmt.Errorf("emulator rejected the auth token (use -token)")
	}
	return nil
}

// deriveHTTPBase maps ws://host:port/ws to http://host:port.
func deriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return "http://127.0.0.1:8080"
	}
	scheme := "http"
	if u.Scheme == "wss" || u.Scheme == "https" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}
