package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"smart-stay/internal/smartthings"
)

var ErrNoReplacement = errors.New("no replacement device found")

// TokenSource hands out provider access tokens.
type TokenSource interface {
	AccessToken(ctx context.Context, forceRefresh bool) (string, error)
}

// DeviceAPI is the part of the provider API used for device control.
type DeviceAPI interface {
	ListDevices(ctx context.Context, accessToken string) ([]smartthings.Device, error)
	ExecuteCommands(ctx context.Context, accessToken string, deviceID string, commands ...smartthings.Command) error
}

// Resolver picks a substitute for a device id the provider no longer accepts.
type Resolver struct {
	api              DeviceAPI
	tokens           TokenSource
	keywords         []string
	fallbackCategory string
	logger           *slog.Logger
}

func NewResolver(api DeviceAPI, tokens TokenSource, keywords []string, fallbackCategory string) *Resolver {
	folded := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = fold(k); k != "" {
			folded = append(folded, k)
		}
	}
	return &Resolver{
		api:              api,
		tokens:           tokens,
		keywords:         folded,
		fallbackCategory: fallbackCategory,
		logger:           slog.With("component", "resolver"),
	}
}

// Resolve lists the account's devices and returns the most plausible replacement for
// failedDeviceID: a label keyword match first, then the first device in the fallback category.
func (r *Resolver) Resolve(ctx context.Context, failedDeviceID string) (string, error) {
	token, err := r.tokens.AccessToken(ctx, false)
	if err != nil {
		return "", fmt.Errorf("no access token for device lookup: %w", err)
	}

	devices, err := r.api.ListDevices(ctx, token)
	if err != nil {
		return "", fmt.Errorf("device lookup failed: %w", err)
	}

	candidates := make([]smartthings.Device, 0, len(devices))
	for _, d := range devices {
		if d.DeviceID != "" && d.DeviceID != failedDeviceID {
			candidates = append(candidates, d)
		}
	}

	for _, d := range candidates {
		if r.matchesKeyword(d) {
			r.logger.Info("Resolved replacement device by keyword", "failed", failedDeviceID, "device_id", d.DeviceID, "label", d.DisplayName())
			return d.DeviceID, nil
		}
	}

	if r.fallbackCategory != "" {
		for _, d := range candidates {
			if d.HasCategory(r.fallbackCategory) {
				r.logger.Info("Resolved replacement device by category", "failed", failedDeviceID, "device_id", d.DeviceID, "category", r.fallbackCategory)
				return d.DeviceID, nil
			}
		}
	}

	r.logger.Warn("No replacement device", "failed", failedDeviceID, "candidates", len(candidates))
	return "", ErrNoReplacement
}

func (r *Resolver) matchesKeyword(d smartthings.Device) bool {
	label := fold(d.Label)
	name := fold(d.Name)
	for _, k := range r.keywords {
		if strings.Contains(label, k) || strings.Contains(name, k) {
			return true
		}
	}
	return false
}
