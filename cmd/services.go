package cmd

import (
	"time"

	"smart-stay/internal/devices"
	"smart-stay/internal/email"
	"smart-stay/internal/obs"
	"smart-stay/internal/power"
	"smart-stay/internal/scheduler"
	"smart-stay/internal/smartthings"
	"smart-stay/internal/token"
)

// services bundles the components shared by the server and the operator commands.
type services struct {
	client     *smartthings.Client
	tokens     *token.Manager
	resolver   *devices.Resolver
	bindings   *devices.Bindings
	dispatcher *devices.Dispatcher
	recorder   *power.Recorder
	intake     *power.Intake
	notifier   *email.Notifier
	reconciler *scheduler.Reconciler

	closeNoise func() error
}

func newServices() *services {
	obs.Init()

	s := &services{}
	st := cfg.SmartThings

	s.client = smartthings.NewClient(st)
	s.tokens = token.NewManager(s.client, provider, st.RefreshToken,
		token.WithSealer(token.NewSealer(cfg.Secret)),
		token.WithInterval(st.RefreshInterval),
	)

	s.resolver = devices.NewResolver(s.client, s.tokens, st.Keywords, st.FallbackCategory)
	s.bindings = devices.BindingsFromConfig(st)
	s.dispatcher = devices.NewDispatcher(s.client, s.tokens, s.resolver, s.bindings, st.Component, st.Capability)

	s.recorder = power.NewRecorder(power.NewState(time.Now()), provider, nil)

	buckets, closeNoise := power.NewBucketStore(cfg.Power, cfg.Redis)
	s.closeNoise = closeNoise
	s.intake = power.NewIntake(s.recorder, power.NewNoiseFilter(buckets, cfg.Power.NoiseWindow), nil)

	s.notifier = email.NewNotifierFromConfig(cfg.Email)
	s.reconciler = scheduler.NewReconciler(provider, s.recorder, s.dispatcher, s.notifier,
		scheduler.WithWindows(cfg.Scheduler.CheckInLead, cfg.Scheduler.CheckOutLag),
	)
	return s
}

func (s *services) Close() {
	if s.closeNoise != nil {
		s.closeNoise()
	}
}
