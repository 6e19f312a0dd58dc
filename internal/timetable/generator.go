// Package timetable builds conflict-free class schedules from a read-only
// snapshot of programs, subjects, teachers, rooms and availability windows.
//
// Generation is a single deterministic forward pass: slots are enumerated
// from the weekly grid, each open (program, subject) demand is tried against
// every slot in priority order, and the result is re-verified before it is
// returned. Nothing here performs I/O.
package timetable

import "context"

// Generate runs enumeration, assignment and emission over snap. When ctx is
// cancelled mid-pass the partial report is returned together with a
// *CancelledError.
func Generate(ctx context.Context, snap *Snapshot) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	slots := Enumerate(snap)
	out, err := newEngine(snap, slots).run(ctx)
	if err != nil {
		return nil, err
	}
	report, err := emit(snap, out)
	if err != nil {
		return nil, err
	}
	if out.cancelled != nil {
		return report, &CancelledError{SlotsConsidered: out.slotsConsidered, Err: out.cancelled}
	}
	return report, nil
}

// Run loads a snapshot and generates in one call.
func Run(ctx context.Context, req Request, in Inputs, cfg Config) (*Snapshot, *Report, error) {
	snap, err := Load(req, in, cfg)
	if err != nil {
		return nil, nil, err
	}
	report, err := Generate(ctx, snap)
	return snap, report, err
}
