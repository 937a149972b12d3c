/*
policy.go - Accrual policy: tier windows and point type seeding

PURPOSE:
  The policy maps activity facts onto point types. Attendance is tiered
  by arrival time; confessions and masses map to one fixed type each.
  The resolved configuration is injected at construction so a missing
  type fails at startup, not mid-request.

TIER MATCHING:
  Windows are compared at second precision against the arrival's time of
  day. Both bounds are inclusive. An arrival matching no window earns
  the default type, which by convention equals the lowest tier's value.
*/
package points

import (
	"context"
	"fmt"
	"time"

	"github.com/khedma/ministry-engine/core"
)

// =============================================================================
// POLICY CONFIGURATION
// =============================================================================

// TierWindow awards one point type to arrivals within [Start, End],
// expressed as "HH:MM" clock times.
type TierWindow struct {
	Start string
	End   string
	Type  core.ID
}

// PolicyConfig is the fully resolved accrual policy. All IDs reference
// existing point types; construction happens once at startup through
// EnsurePolicyTypes or directly in tests.
type PolicyConfig struct {
	AttendanceTiers   []TierWindow
	AttendanceDefault core.ID
	ConfessionType    core.ID
	MassType          core.ID
}

// AttendanceTypeFor selects the point type for an arrival time. Windows
// are checked in declaration order; the first inclusive match wins.
func (p *PolicyConfig) AttendanceTypeFor(arrival time.Time) (core.ID, error) {
	secs := secondOfDay(arrival)
	for _, w := range p.AttendanceTiers {
		start, err := parseClock(w.Start)
		if err != nil {
			return "", core.Configf("tier window start %q: %v", w.Start, err)
		}
		end, err := parseClock(w.End)
		if err != nil {
			return "", core.Configf("tier window end %q: %v", w.End, err)
		}
		if secs >= start && secs <= end {
			return w.Type, nil
		}
	}
	if p.AttendanceDefault.IsZero() {
		return "", core.Configf("no default attendance point type configured")
	}
	return p.AttendanceDefault, nil
}

// TypeFor maps a non-attendance activity source onto its fixed type.
func (p *PolicyConfig) TypeFor(src core.SourceType) (core.ID, error) {
	switch src {
	case core.SourceConfession:
		if p.ConfessionType.IsZero() {
			return "", core.Configf("confession point type not configured")
		}
		return p.ConfessionType, nil
	case core.SourceMass:
		if p.MassType.IsZero() {
			return "", core.Configf("mass point type not configured")
		}
		return p.MassType, nil
	default:
		return "", core.Configf("no fixed point type for source %q", src)
	}
}

func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time out of range")
	}
	return h*3600 + m*60, nil
}

// =============================================================================
// STARTUP SEEDING
// =============================================================================

// TierSpec declares one attendance tier by point type name.
type TierSpec struct {
	Start string
	End   string
	Type  string
}

// PolicySpec is the by-name policy the configuration layer supplies.
// Values seed point types that do not exist yet; existing types keep
// their stored values.
type PolicySpec struct {
	Types             map[string]PointType // name -> seed definition
	AttendanceTiers   []TierSpec
	AttendanceDefault string
	ConfessionType    string
	MassType          string
}

// EnsurePolicyTypes resolves a by-name policy into a PolicyConfig,
// creating any point types that are missing from the store.
func EnsurePolicyTypes(ctx context.Context, store Store, spec PolicySpec) (*PolicyConfig, error) {
	resolve := func(name string) (core.ID, error) {
		t, err := store.GetPointTypeByName(ctx, name)
		if err == nil {
			return t.ID, nil
		}
		if !core.IsNotFound(err) {
			return "", err
		}
		seed, ok := spec.Types[name]
		if !ok {
			return "", core.Configf("point type %q is not defined", name)
		}
		seed.Name = name
		if seed.ID.IsZero() {
			seed.ID = core.NewID()
		}
		if err := store.InsertPointType(ctx, &seed); err != nil {
			return "", err
		}
		return seed.ID, nil
	}

	cfg := &PolicyConfig{}
	var err error
	for _, tier := range spec.AttendanceTiers {
		var id core.ID
		if id, err = resolve(tier.Type); err != nil {
			return nil, err
		}
		cfg.AttendanceTiers = append(cfg.AttendanceTiers, TierWindow{Start: tier.Start, End: tier.End, Type: id})
	}
	if cfg.AttendanceDefault, err = resolve(spec.AttendanceDefault); err != nil {
		return nil, err
	}
	if cfg.ConfessionType, err = resolve(spec.ConfessionType); err != nil {
		return nil, err
	}
	if cfg.MassType, err = resolve(spec.MassType); err != nil {
		return nil, err
	}
	return cfg, nil
}
