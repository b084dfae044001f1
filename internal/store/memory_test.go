package store

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"purifier-go-home/internal/zcl"
	"purifier-go-home/internal/zcl/clusters"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	r := zcl.NewRegistry(newTestLogger())
	clusters.RegisterAll(r)
	s, err := NewMemoryStore(r, clusters.Layout(), newTestLogger())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	return s
}

var (
	fanMode        = Path{clusters.EndpointPurifier, clusters.FanControlID, clusters.AttrFanMode}
	percentSetting = Path{clusters.EndpointPurifier, clusters.FanControlID, clusters.AttrPercentSetting}
	percentCurrent = Path{clusters.EndpointPurifier, clusters.FanControlID, clusters.AttrPercentCurrent}
	airQuality     = Path{clusters.EndpointSensor, clusters.AirQualityID, clusters.AttrAirQuality}
)

func TestNewMemoryStoreDefaults(t *testing.T) {
	s := newTestStore(t)

	v, err := s.Get(fanMode)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != uint8(0) {
		t.Errorf("FanMode default = %v (%T), want uint8(0)", v, v)
	}
	if v, _ := s.Get(percentSetting); v != nil {
		t.Errorf("PercentSetting default = %v, want nil", v)
	}
}

func TestNewMemoryStoreUnknownCluster(t *testing.T) {
	r := zcl.NewRegistry(newTestLogger())
	if _, err := NewMemoryStore(r, map[uint8][]uint16{1: {0x0202}}, newTestLogger()); err == nil {
		t.Error("expected error for unregistered cluster")
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(Path{Endpoint: 9, Cluster: clusters.FanControlID})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	// AirQuality is hosted on the sensor endpoint only.
	_, err = s.Get(Path{clusters.EndpointPurifier, clusters.AirQualityID, clusters.AttrAirQuality})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateCallsHookAfterCommit(t *testing.T) {
	s := newTestStore(t)

	var hookValue any
	var committed any
	s.OnUpdate(func(p Path, v any) {
		hookValue = v
		committed, _ = s.Get(p)
	})

	if err := s.Update(percentSetting, float64(60)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if hookValue != uint8(60) {
		t.Errorf("hook value = %v (%T), want uint8(60)", hookValue, hookValue)
	}
	if committed != uint8(60) {
		t.Errorf("value seen by hook = %v, want 60", committed)
	}
}

func TestUpdateRejections(t *testing.T) {
	s := newTestStore(t)
	called := false
	s.OnUpdate(func(Path, any) { called = true })

	if err := s.Update(percentCurrent, 10); !errors.Is(err, ErrReadOnly) {
		t.Errorf("read-only: err = %v", err)
	}
	if err := s.Update(fanMode, "auto"); !errors.Is(err, zcl.ErrInvalidValue) {
		t.Errorf("bad value: err = %v", err)
	}
	if err := s.Update(fanMode, nil); !errors.Is(err, zcl.ErrNotNullable) {
		t.Errorf("null: err = %v", err)
	}
	if called {
		t.Error("hook called for rejected write")
	}
}

func TestReportSkipsHook(t *testing.T) {
	s := newTestStore(t)
	called := false
	s.OnUpdate(func(Path, any) { called = true })

	var changes []Change
	unsub := s.OnChange(func(c Change) { changes = append(changes, c) })

	if err := s.Report(airQuality, uint8(3)); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := s.Report(percentCurrent, 40); err != nil {
		t.Fatalf("Report read-only: %v", err)
	}
	if called {
		t.Error("Report invoked the write hook")
	}
	if len(changes) != 2 || changes[0].Origin != OriginReport || changes[0].Name != "AirQuality" {
		t.Errorf("changes = %+v", changes)
	}

	unsub()
	_ = s.Report(airQuality, uint8(4))
	if len(changes) != 2 {
		t.Errorf("listener called after unsubscribe")
	}
}

func TestListenerPanicRecovered(t *testing.T) {
	s := newTestStore(t)
	s.OnChange(func(Change) { panic("boom") })
	if err := s.Report(airQuality, uint8(1)); err != nil {
		t.Fatalf("Report: %v", err)
	}
}

func TestSnapshotOrdered(t *testing.T) {
	s := newTestStore(t)
	snap := s.Snapshot()
	if len(snap) == 0 {
		t.Fatal("empty snapshot")
	}
	for i := 1; i < len(snap); i++ {
		a, b := snap[i-1].Path, snap[i].Path
		if a.Endpoint > b.Endpoint || (a.Endpoint == b.Endpoint && a.Cluster > b.Cluster) {
			t.Fatalf("snapshot not ordered at %d: %v then %v", i, a, b)
		}
	}
	if snap[0].Endpoint != clusters.EndpointPurifier || snap[0].Cluster != clusters.OnOffID {
		t.Errorf("first entry = %+v", snap[0])
	}
}

func TestFactoryReset(t *testing.T) {
	s := newTestStore(t)
	_ = s.Report(fanMode, uint8(3))
	_ = s.Report(percentSetting, uint8(100))
	_ = s.Report(airQuality, uint8(2))

	var changes []Change
	s.OnChange(func(c Change) { changes = append(changes, c) })

	if err := s.FactoryReset(); err != nil {
		t.Fatalf("FactoryReset: %v", err)
	}
	if v, _ := s.Get(fanMode); v != uint8(0) {
		t.Errorf("FanMode = %v, want 0", v)
	}
	if v, _ := s.Get(percentSetting); v != nil {
		t.Errorf("PercentSetting = %v, want nil", v)
	}
	if len(changes) != 3 {
		t.Fatalf("got %d changes, want 3", len(changes))
	}
	for _, c := range changes {
		if c.Origin != OriginReset {
			t.Errorf("%s origin = %s", c.Path, c.Origin)
		}
	}
}
