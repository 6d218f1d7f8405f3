package feature

import (
	"testing"

	"github.com/google/uuid"
)

func TestCatalogLookups(t *testing.T) {
	meta := Feature{UID: uuid.New(), Name: "group", Flags: FlagMeta}
	f1 := Feature{UID: uuid.New(), Name: "variant-one", Flags: FlagMode, ParentUID: meta.UID}
	f2 := Feature{UID: uuid.New(), Name: "variant-two", Flags: FlagMode, ParentUID: meta.UID}
	providerA := newStubProvider(meta, f1, f2)
	providerA.meta = meta
	providerB := newStubProvider(modeFeature("unrelated"))

	catalog := NewCatalog(providerA, providerB)

	if got := catalog.Feature(f1.UID); got.UID != f1.UID || got.Name != f1.Name {
		t.Fatalf("Feature(%v) = %+v, want %+v", f1.UID, got, f1)
	}
	if got := catalog.Feature(uuid.New()); got.IsValid() {
		t.Fatalf("Feature(unknown) = %+v, want sentinel", got)
	}

	if got := catalog.ProviderOf(f1.UID); got != providerA.UID() {
		t.Errorf("ProviderOf = %v, want %v", got, providerA.UID())
	}
	if got := catalog.ProviderOf(uuid.New()); got != uuid.Nil {
		t.Errorf("ProviderOf(unknown) = %v, want nil uuid", got)
	}

	related := catalog.RelatedFeatures(f1.UID)
	if len(related) != 3 {
		t.Fatalf("RelatedFeatures returned %d features, want 3", len(related))
	}

	if got := catalog.MetaFeatureOf(f2.UID); got.UID != meta.UID {
		t.Errorf("MetaFeatureOf = %+v, want %+v", got, meta)
	}
	if got := catalog.MetaFeatureOf(uuid.New()); got.IsValid() {
		t.Errorf("MetaFeatureOf(unknown) = %+v, want sentinel", got)
	}

	if got := catalog.FeaturesOf(providerB.UID()); len(got) != 1 {
		t.Errorf("FeaturesOf(providerB) returned %d features, want 1", len(got))
	}
	if got := catalog.FeaturesOf(uuid.New()); len(got) != 0 {
		t.Errorf("FeaturesOf(unknown) returned %d features, want 0", len(got))
	}

	// Every catalogued feature must resolve back to the provider whose
	// list contains it.
	for _, f := range catalog.Features() {
		owner := catalog.ProviderOf(f.UID)
		found := false
		for _, of := range catalog.FeaturesOf(owner) {
			if of.UID == f.UID {
				found = true
			}
		}
		if !found {
			t.Errorf("feature %v not in its owner's list", f.UID)
		}
	}
}

func TestMessageRoundTrip(t *testing.T) {
	f := modeFeature("messaged")
	msg := NewMessage(f.UID, 7).WithArg("screen", 2).WithArg("label", "room 4")

	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if got.FeatureUID != f.UID || got.Command != 7 {
		t.Fatalf("decoded message = %+v", got)
	}

	var screen int
	if ok, err := got.Arg("screen", &screen); !ok || err != nil || screen != 2 {
		t.Errorf("Arg(screen) = %v %v %d", ok, err, screen)
	}
	var missing string
	if ok, _ := got.Arg("absent", &missing); ok {
		t.Error("Arg reported a missing argument present")
	}
}
