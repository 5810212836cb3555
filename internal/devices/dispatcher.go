package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"smart-stay/internal/obs"
	"smart-stay/internal/smartthings"
)

var ErrUnbound = errors.New("no device bound to action")

// DeviceResolver finds a replacement for a device id that was refused.
type DeviceResolver interface {
	Resolve(ctx context.Context, failedDeviceID string) (string, error)
}

// Rebinding records that a command moved from one device id to another.
type Rebinding struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Result struct {
	Success  bool       `json:"success"`
	DeviceID string     `json:"device_id"`
	Command  string     `json:"command"`
	Rebound  *Rebinding `json:"rebound,omitempty"`
	Err      error      `json:"-"`
}

type ActionResult struct {
	Action Action `json:"action"`
	Result
}

// Dispatcher sends switch commands and recovers from expired tokens and stale device ids.
type Dispatcher struct {
	api        DeviceAPI
	tokens     TokenSource
	resolver   DeviceResolver
	bindings   *Bindings
	component  string
	capability string
	logger     *slog.Logger
}

func NewDispatcher(api DeviceAPI, tokens TokenSource, resolver DeviceResolver, bindings *Bindings, component string, capability string) *Dispatcher {
	return &Dispatcher{
		api:        api,
		tokens:     tokens,
		resolver:   resolver,
		bindings:   bindings,
		component:  component,
		capability: capability,
		logger:     slog.With("component", "dispatcher"),
	}
}

// SendCommand issues command to deviceID. With retry budget left, a 401 triggers one
// forced token refresh and a 403 one device re-resolution before retrying.
func (d *Dispatcher) SendCommand(ctx context.Context, deviceID string, command string, retryBudget int) Result {
	res := Result{DeviceID: deviceID, Command: command}

	token, err := d.tokens.AccessToken(ctx, false)
	if err != nil {
		res.Err = fmt.Errorf("no access token: %w", err)
		d.logger.Error("Command not sent", "device_id", deviceID, "command", command, "error", err)
		return res
	}

	err = d.api.ExecuteCommands(ctx, token, deviceID, smartthings.Command{
		Component:  d.component,
		Capability: d.capability,
		Command:    command,
	})
	if err == nil {
		res.Success = true
		d.logger.Info("Command sent", "device_id", deviceID, "command", command)
		return res
	}
	res.Err = err

	if retryBudget <= 0 {
		d.logger.Error("Command failed", "device_id", deviceID, "command", command, "error", err)
		return res
	}

	switch {
	case errors.Is(err, smartthings.ErrUnauthorized):
		d.logger.Warn("Access token rejected, refreshing", "device_id", deviceID)
		if _, err := d.tokens.AccessToken(ctx, true); err != nil {
			res.Err = fmt.Errorf("token refresh after 401 failed: %w", err)
			return res
		}
		return d.SendCommand(ctx, deviceID, command, retryBudget-1)

	case errors.Is(err, smartthings.ErrForbidden):
		d.logger.Warn("Device refused, resolving replacement", "device_id", deviceID)
		replacement, rerr := d.resolver.Resolve(ctx, deviceID)
		if rerr != nil {
			res.Err = fmt.Errorf("%w (resolution: %v)", err, rerr)
			return res
		}
		if replacement == deviceID {
			return res
		}
		retry := d.SendCommand(ctx, replacement, command, retryBudget-1)
		retry.Rebound = &Rebinding{From: deviceID, To: replacement}
		return retry
	}

	d.logger.Error("Command failed", "device_id", deviceID, "command", command, "error", err)
	return res
}

// ControlByAction sends the bound command for action. A successful rebinding repoints
// the action's binding.
func (d *Dispatcher) ControlByAction(ctx context.Context, action Action) ActionResult {
	binding, ok := d.bindings.Get(action)
	if !ok {
		obs.DeviceCommands.WithLabelValues(string(action), "unbound").Inc()
		return ActionResult{
			Action: action,
			Result: Result{Command: binding.Command, Err: fmt.Errorf("%w: %s", ErrUnbound, action)},
		}
	}

	res := d.SendCommand(ctx, binding.DeviceID, binding.Command, 1)
	obs.DeviceCommands.WithLabelValues(string(action), obs.Result(res.Err)).Inc()

	if res.Success && res.Rebound != nil {
		d.bindings.Repoint(action, res.Rebound.To)
		d.logger.Info("Binding repointed", "action", action, "from", res.Rebound.From, "to", res.Rebound.To)
	}
	return ActionResult{Action: action, Result: res}
}
