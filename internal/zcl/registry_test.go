package zcl

import (
	"log/slog"
	"os"
	"testing"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry(newTestLogger())
	def := ClusterDef{
		ID:   0x0202,
		Name: "Fan Control",
		Attributes: []AttributeDef{
			{ID: 0, Name: "FanMode", Type: TypeEnum8, Access: AccessRead | AccessWrite},
			{ID: 3, Name: "PercentCurrent", Type: TypeUint8, Access: AccessRead | AccessReport},
		},
	}
	r.Register(def)
	def.Attributes[0].Name = "mutated after register"

	got := r.Get(0x0202)
	if got == nil || got.Name != "Fan Control" || len(got.Attributes) != 2 {
		t.Fatalf("Get = %+v", got)
	}
	if got.Attributes[0].Name != "FanMode" {
		t.Errorf("registry shares the caller's slice: %q", got.Attributes[0].Name)
	}

	got.Attributes[1].Name = "mutated copy"
	if again := r.Get(0x0202); again.Attributes[1].Name != "PercentCurrent" {
		t.Errorf("Get leaked internal state: %q", again.Attributes[1].Name)
	}
}

func TestRegistryRedefine(t *testing.T) {
	r := NewRegistry(newTestLogger())
	r.Register(ClusterDef{ID: 6, Name: "old", Attributes: []AttributeDef{{ID: 0}, {ID: 1}}})
	r.Register(ClusterDef{ID: 6, Name: "On/Off", Attributes: []AttributeDef{{ID: 0, Name: "OnOff", Type: TypeBool}}})

	got := r.Get(6)
	if got.Name != "On/Off" || len(got.Attributes) != 1 {
		t.Errorf("redefined cluster = %+v", got)
	}
}

func TestRegistryAllSorted(t *testing.T) {
	r := NewRegistry(newTestLogger())
	for _, id := range []uint16{0x042A, 0x0006, 0x0202, 0x005B} {
		r.Register(ClusterDef{ID: id})
	}

	all := r.All()
	want := []uint16{0x0006, 0x005B, 0x0202, 0x042A}
	if len(all) != len(want) {
		t.Fatalf("got %d clusters, want %d", len(all), len(want))
	}
	for i, id := range want {
		if all[i].ID != id {
			t.Errorf("all[%d].ID = 0x%04X, want 0x%04X", i, all[i].ID, id)
		}
	}
}

func TestRegistryUnknown(t *testing.T) {
	r := NewRegistry(newTestLogger())
	if r.Get(0x1234) != nil {
		t.Error("expected nil cluster")
	}
}

func TestAttributeWritable(t *testing.T) {
	tests := []struct {
		access uint8
		want   bool
	}{
		{AccessRead, false},
		{AccessRead | AccessReport, false},
		{AccessRead | AccessWrite, true},
		{AccessWrite | AccessReport, true},
	}
	for _, tt := range tests {
		a := AttributeDef{Access: tt.access}
		if got := a.IsWritable(); got != tt.want {
			t.Errorf("IsWritable(access=%#x) = %v, want %v", tt.access, got, tt.want)
		}
	}
}
