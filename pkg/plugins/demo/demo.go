// Package demo implements screen demonstration: the controller's screen is
// broadcast to the selected targets, either full screen or in a window.
package demo

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/warden-rc/warden/pkg/feature"
)

// Provider UUID and feature UUIDs are fixed so controller, session and
// helper roles agree on them across versions.
var (
	ProviderUID       = uuid.MustParse("7b6f9bf8-1b33-4c5d-a6b8-81d1a3e6c2f0")
	demoMetaUID       = uuid.MustParse("49ab0f81-4bf1-42a0-9d12-cd85e4a0f7b2")
	fullScreenDemoUID = uuid.MustParse("f27a9cd8-07f6-4b1f-b5f8-3d55c7c76e2a")
	windowDemoUID     = uuid.MustParse("ae45c3db-dc2e-4204-ae8b-374cdab8c62c")
)

// Commands exchanged between the roles.
const (
	cmdStartServer feature.Command = iota
	cmdStopServer
	cmdStartClient
	cmdStopClient
)

// Argument keys.
const (
	argFullScreen = "fullScreen"
	argServerHost = "serverHost"
	argServerPort = "serverPort"
)

// Provider is the demo feature plugin. The two demo variants are Mode
// features grouped under a shared meta feature, so starting either one
// designates it as the target's mode feature.
type Provider struct {
	logger *slog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]map[*feature.ComputerControl]struct{}

	meta     feature.Feature
	features []feature.Feature
}

// New creates the demo provider.
func New(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	meta := feature.Feature{
		UID:   demoMetaUID,
		Name:  "Demo",
		Flags: feature.FlagMeta | feature.FlagMode,
	}
	return &Provider{
		logger: logger.With("plugin", "demo"),
		active: make(map[uuid.UUID]map[*feature.ComputerControl]struct{}),
		meta:   meta,
		features: []feature.Feature{
			meta,
			{
				UID:       fullScreenDemoUID,
				Name:      "FullScreenDemo",
				Flags:     feature.FlagMode,
				ParentUID: demoMetaUID,
			},
			{
				UID:       windowDemoUID,
				Name:      "WindowDemo",
				Flags:     feature.FlagMode,
				ParentUID: demoMetaUID,
			},
		},
	}
}

// UID implements feature.Provider.
func (p *Provider) UID() uuid.UUID { return ProviderUID }

// Features implements feature.Provider.
func (p *Provider) Features() []feature.Feature { return p.features }

// MetaFeature groups both demo variants under the shared demo feature.
func (p *Provider) MetaFeature(featureID uuid.UUID) feature.Feature {
	if featureID == fullScreenDemoUID || featureID == windowDemoUID {
		return p.meta
	}
	return feature.ZeroFeature
}

func (p *Provider) owns(featureID uuid.UUID) bool {
	return featureID == demoMetaUID || featureID == fullScreenDemoUID || featureID == windowDemoUID
}

// Control implements feature.Provider. The demo plugin has no generic
// operations beyond start and stop.
func (p *Provider) Control(ctx context.Context, featureID uuid.UUID, op feature.Operation, args feature.Args, targets []*feature.ComputerControl) bool {
	if !p.owns(featureID) {
		return false
	}
	switch op {
	case feature.OperationStart:
		p.Start(ctx, p.featureByID(featureID), targets)
	case feature.OperationStop:
		p.Stop(ctx, p.featureByID(featureID), targets)
	}
	return true
}

func (p *Provider) featureByID(featureID uuid.UUID) feature.Feature {
	for _, f := range p.features {
		if f.UID == featureID {
			return f
		}
	}
	return feature.ZeroFeature
}

// Start tells each target to join the demo stream. Starting the meta
// feature is treated as a full screen demo.
func (p *Provider) Start(ctx context.Context, f feature.Feature, targets []*feature.ComputerControl) bool {
	if !p.owns(f.UID) {
		return false
	}
	fullScreen := f.UID != windowDemoUID

	for _, t := range targets {
		msg := feature.NewMessage(f.UID, cmdStartClient).
			WithArg(argFullScreen, fullScreen)
		if err := t.SendMessage(msg); err != nil {
			p.logger.Warn("failed to send demo start", "host", t.Host(), "error", err)
			continue
		}
		p.markActive(f.UID, t, true)
	}
	p.logger.Info("demo started", "feature", f.Name, "targets", len(targets))
	return true
}

// Stop tells each target to leave the demo stream.
func (p *Provider) Stop(ctx context.Context, f feature.Feature, targets []*feature.ComputerControl) bool {
	if !p.owns(f.UID) {
		return false
	}
	for _, t := range targets {
		if err := t.SendMessage(feature.NewMessage(f.UID, cmdStopClient)); err != nil {
			p.logger.Warn("failed to send demo stop", "host", t.Host(), "error", err)
		}
		p.markActive(f.UID, t, false)
	}
	p.logger.Info("demo stopped", "feature", f.Name, "targets", len(targets))
	return true
}

func (p *Provider) markActive(featureID uuid.UUID, t *feature.ComputerControl, active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if active {
		if p.active[featureID] == nil {
			p.active[featureID] = make(map[*feature.ComputerControl]struct{})
		}
		p.active[featureID][t] = struct{}{}
		return
	}
	delete(p.active[featureID], t)
}

// HandleSessionMessage implements feature.Provider. The session role
// starts or stops the local demo client on request.
func (p *Provider) HandleSessionMessage(target *feature.ComputerControl, msg feature.Message) bool {
	if !p.owns(msg.FeatureUID) {
		return false
	}
	switch msg.Command {
	case cmdStartClient:
		var fullScreen bool
		if _, err := msg.Arg(argFullScreen, &fullScreen); err != nil {
			p.logger.Warn("malformed demo start message", "error", err)
			return true
		}
		p.logger.Info("starting demo client", "host", target.Host(), "fullScreen", fullScreen)
	case cmdStopClient:
		p.logger.Info("stopping demo client", "host", target.Host())
	}
	return true
}

// HandleControllerMessage implements feature.Provider. The controller side
// of the demo plugin only sends, it never receives.
func (p *Provider) HandleControllerMessage(ctx context.Context, target *feature.ComputerControl, msg feature.Message) bool {
	return false
}

// HandleHelperMessage implements feature.Provider. The helper process
// hosts the demo server end of the stream.
func (p *Provider) HandleHelperMessage(msg feature.Message) bool {
	if !p.owns(msg.FeatureUID) {
		return false
	}
	switch msg.Command {
	case cmdStartServer:
		p.logger.Info("starting demo server")
	case cmdStopServer:
		p.logger.Info("stopping demo server")
	}
	return true
}

// Active implements feature.Provider.
func (p *Provider) Active(target *feature.ComputerControl, featureID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[featureID][target]
	return ok
}
