package mission

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAvailable(t *testing.T) {
	tests := []struct {
		name string
		m    *Mission
		want bool
	}{
		{"nil mission", nil, false},
		{"empty default", Default(), false},
		{"id only", &Mission{ID: "m-1"}, true},
		{"base only", &Mission{Base: &Point{X: 1, Y: 2, RadiusM: 10}}, true},
		{"target only", &Mission{Target: &Point{X: 1, Y: 2, RadiusM: 10}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Available(); got != tt.want {
				t.Errorf("Available() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPatchApply(t *testing.T) {
	base := Default()
	base.ID = "m-1"
	base.Waypoints = []Waypoint{{X: 1, Y: 1, AltM: 50, SpeedMps: 10}}
	base.Target = &Point{X: 100, Y: 100, RadiusM: 15}

	t.Run("omitted fields retain prior value", func(t *testing.T) {
		p := &Patch{Base: &Point{X: 0, Y: 0, RadiusM: 20}}
		out := p.Apply(base)
		if out.Base == nil || out.Base.RadiusM != 20 {
			t.Fatalf("Apply() did not set base")
		}
		if out.Target == nil || out.Target.X != 100 {
			t.Errorf("Apply() dropped target, want retained")
		}
		if len(out.Waypoints) != 1 {
			t.Errorf("Apply() dropped waypoints, want retained")
		}
	})

	t.Run("waypoints replaced entirely when present", func(t *testing.T) {
		wps := []Waypoint{{X: 5, Y: 5, AltM: 60, SpeedMps: 12}, {X: 6, Y: 6, AltM: 60, SpeedMps: 12}}
		p := &Patch{Waypoints: &wps}
		out := p.Apply(base)
		if len(out.Waypoints) != 2 || out.Waypoints[0].X != 5 {
			t.Errorf("Apply() waypoints = %v, want full replacement", out.Waypoints)
		}
	})

	t.Run("does not mutate the original", func(t *testing.T) {
		p := &Patch{BatteryPolicy: &BatteryPolicy{RTBBelowPct: 10, ResumeAbovePct: 90}}
		_ = p.Apply(base)
		if base.BatteryPolicy.RTBBelowPct != DefaultRTBBelowPct {
			t.Errorf("Apply() mutated the source mission")
		}
	})
}

func TestValidateBatteryPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy BatteryPolicy
		hasErr bool
	}{
		{"valid", BatteryPolicy{RTBBelowPct: 25, ResumeAbovePct: 60}, false},
		{"rtb equals resume", BatteryPolicy{RTBBelowPct: 50, ResumeAbovePct: 50}, true},
		{"rtb above resume", BatteryPolicy{RTBBelowPct: 70, ResumeAbovePct: 60}, true},
		{"rtb negative", BatteryPolicy{RTBBelowPct: -1, ResumeAbovePct: 60}, true},
		{"resume above 100", BatteryPolicy{RTBBelowPct: 25, ResumeAbovePct: 101}, true},
		{"bounds inclusive", BatteryPolicy{RTBBelowPct: 0, ResumeAbovePct: 100}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatteryPolicy(tt.policy)
			if tt.hasErr && err == nil {
				t.Errorf("ValidateBatteryPolicy() = nil, want error")
			}
			if !tt.hasErr && err != nil {
				t.Errorf("ValidateBatteryPolicy() = %v, want nil", err)
			}
		})
	}
}

func TestValidatePaths(t *testing.T) {
	m := Default()
	m.StagingPoints = []StagingPoint{
		{X: 1, Y: 1, RadiusM: 10},
		{X: 2, Y: 2, RadiusM: 0},
	}

	err := m.Validate()
	if err == nil {
		t.Fatalf("Validate() = nil, want error for zero radius")
	}
	if err.Path != "staging_points[1].radius_m" {
		t.Errorf("Validate() path = %q, want %q", err.Path, "staging_points[1].radius_m")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission.json")
	store := NewFileStore(path)

	m := Default()
	m.ID = DeriveID(time.Now())
	m.CreatedTS = Timestamp(time.Now())
	m.UpdatedTS = m.CreatedTS
	m.Base = &Point{X: 0, Y: 0, RadiusM: 20}
	m.Target = &Point{X: 500, Y: 300, RadiusM: 15}
	m.StagingPoints = []StagingPoint{{X: 100, Y: 100, RadiusM: 25, HoldS: 5}}
	m.Waypoints = []Waypoint{{X: 50, Y: 50, AltM: 60, SpeedMps: 14}}

	if err := store.Save(m); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.ID != m.ID {
		t.Errorf("Load() id = %q, want %q", got.ID, m.ID)
	}
	if got.Target == nil || got.Target.X != 500 {
		t.Errorf("Load() target = %v, want x=500", got.Target)
	}
	if len(got.StagingPoints) != 1 || got.StagingPoints[0].HoldS != 5 {
		t.Errorf("Load() staging = %v, want one point with hold 5s", got.StagingPoints)
	}
	if got.UpdatedTS != m.UpdatedTS {
		t.Errorf("Load() updated_ts = %q, want %q", got.UpdatedTS, m.UpdatedTS)
	}
}

func TestFileStoreMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	m, err := store.Load()
	if err != nil {
		t.Fatalf("Load() on missing file: %v, want nil error", err)
	}
	if m != nil {
		t.Errorf("Load() on missing file = %v, want nil", m)
	}
}

func TestFileStoreBackfillsUpdatedTS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission.json")
	store := NewFileStore(path)

	m := Default()
	m.ID = "m-legacy"
	m.CreatedTS = "2025-01-02T03:04:05Z"
	m.UpdatedTS = ""
	if err := store.Save(m); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.UpdatedTS != "2025-01-02T03:04:05Z" {
		t.Errorf("Load() updated_ts = %q, want backfill from created_ts", got.UpdatedTS)
	}
	if got.BatteryPolicy.RTBBelowPct != DefaultRTBBelowPct {
		t.Errorf("Load() battery policy = %v, want defaults", got.BatteryPolicy)
	}
}
