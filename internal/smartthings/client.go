package smartthings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"

	"smart-stay/internal/config"
)

const maxDevicePages = 20

// Client talks to the SmartThings OAuth token endpoint and the device API.
type Client struct {
	http         *resty.Client
	tokenURL     string
	clientID     string
	clientSecret string
	logger       *slog.Logger
}

func NewClient(cfg config.SmartThingsConfig) *Client {
	logger := slog.With("component", "smartthings")

	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger})

	return &Client{
		http:         http,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		logger:       logger,
	}
}

// ExchangeRefreshToken trades a refresh token for a new access token.
func (c *Client) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	const op = "refresh token exchange"
	if c.clientID == "" || c.clientSecret == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", ErrConfiguration)
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token available", ErrConfiguration)
	}

	var token TokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"client_id":     c.clientID,
			"refresh_token": refreshToken,
		}).
		ForceContentType("application/json").
		SetResult(&token).
		Post(c.tokenURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
	}
	if resp.IsError() {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if token.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}
	return &token, nil
}

// ListDevices returns every device visible to the token, following pagination links.
func (c *Client) ListDevices(ctx context.Context, accessToken string) ([]Device, error) {
	const op = "list devices"
	var devices []Device

	next := "/devices"
	for page := 0; next != "" && page < maxDevicePages; page++ {
		var list deviceList
		resp, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(accessToken).
			ForceContentType("application/json").
			SetResult(&list).
			Get(next)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
		}
		if resp.IsError() {
			return nil, &APIError{Op: op, StatusCode: resp.StatusCode(), Body: resp.String()}
		}

		devices = append(devices, list.Items...)
		next = ""
		if list.Links.Next != nil {
			next = list.Links.Next.Href
		}
	}

	if next != "" {
		c.logger.Warn("Device list truncated", "pages", maxDevicePages, "count", len(devices))
	}
	c.logger.Debug("Listed devices", "count", len(devices))
	return devices, nil
}

// ExecuteCommands sends commands to a single device.
func (c *Client) ExecuteCommands(ctx context.Context, accessToken string, deviceID string, commands ...Command) error {
	op := "execute command on " + deviceID
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetPathParam("deviceId", deviceID).
		SetBody(commandRequest{Commands: commands}).
		Post("/devices/{deviceId}/commands")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
	}
	if resp.IsError() {
		return &APIError{Op: op, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
