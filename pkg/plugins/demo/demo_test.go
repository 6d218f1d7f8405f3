package demo

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/warden-rc/warden/pkg/feature"
	"github.com/warden-rc/warden/pkg/remote"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testTarget(host string) *feature.ComputerControl {
	return feature.NewComputerControl(remote.New(host, remote.DefaultConfig(), nil))
}

func TestDemoFeatureSet(t *testing.T) {
	p := New(testLogger())
	catalog := feature.NewCatalog(p)

	features := p.Features()
	if len(features) != 3 {
		t.Fatalf("demo provider exposes %d features, want 3", len(features))
	}

	for _, variant := range []uuid.UUID{fullScreenDemoUID, windowDemoUID} {
		f := catalog.Feature(variant)
		if !f.IsMode() {
			t.Errorf("feature %v not flagged as mode", variant)
		}
		meta := catalog.MetaFeatureOf(variant)
		if meta.UID != demoMetaUID {
			t.Errorf("MetaFeatureOf(%v) = %v, want demo meta", variant, meta.UID)
		}
	}

	if got := catalog.ProviderOf(windowDemoUID); got != ProviderUID {
		t.Errorf("ProviderOf = %v, want %v", got, ProviderUID)
	}
	if p.MetaFeature(uuid.New()).IsValid() {
		t.Error("MetaFeature claimed a foreign feature id")
	}
}

func TestDemoStartStopTracksActive(t *testing.T) {
	p := New(testLogger())
	catalog := feature.NewCatalog(p)
	f := catalog.Feature(fullScreenDemoUID)

	target := testTarget("room-1-pc-1")
	ctx := context.Background()

	if !p.Start(ctx, f, []*feature.ComputerControl{target}) {
		t.Fatal("Start not claimed by owner")
	}
	if !p.Active(target, f.UID) {
		t.Error("demo not active after start")
	}

	if !p.Stop(ctx, f, []*feature.ComputerControl{target}) {
		t.Fatal("Stop not claimed by owner")
	}
	if p.Active(target, f.UID) {
		t.Error("demo still active after stop")
	}

	other := feature.Feature{UID: uuid.New()}
	if p.Start(ctx, other, nil) {
		t.Error("Start claimed a foreign feature")
	}
}

func TestDemoSessionMessageHandling(t *testing.T) {
	p := New(testLogger())
	target := testTarget("room-1-pc-2")

	msg := feature.NewMessage(fullScreenDemoUID, cmdStartClient).WithArg(argFullScreen, true)
	if !p.HandleSessionMessage(target, msg) {
		t.Error("owned session message not claimed")
	}
	if p.HandleSessionMessage(target, feature.NewMessage(uuid.New(), cmdStartClient)) {
		t.Error("foreign session message claimed")
	}
	if !p.HandleHelperMessage(feature.NewMessage(demoMetaUID, cmdStartServer)) {
		t.Error("owned helper message not claimed")
	}
}
