// Package state persists the bootstrap state record and journal. The record
// replaces the scattered marker and stamp files of classic entrypoint scripts
// with one JSON document behind a single accessor.
package state

import "time"

// Phase classifies how far this volume has been bootstrapped.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseInitialized   Phase = "initialized"
	PhaseReady         Phase = "ready"
)

// Roster kinds tracked in the record.
const (
	RosterInstructors = "instructors"
	RosterStudents    = "students"
)

// RosterStamp records the input file state at the last successful sync.
type RosterStamp struct {
	ModTime     time.Time `json:"mod_time"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Record is the persisted bootstrap state. InitializedAt plays the role of
// the initialization marker; Rosters replaces per-feature stamp files.
type Record struct {
	Phase          Phase                  `json:"phase"`
	RunID          string                 `json:"run_id,omitempty"`
	InitializedAt  *time.Time             `json:"initialized_at,omitempty"`
	ConfigSnapshot string                 `json:"config_snapshot,omitempty"`
	LastStateCode  *int                   `json:"last_state_code,omitempty"`
	BuildAll       bool                   `json:"build_all"`
	Rosters        map[string]RosterStamp `json:"rosters,omitempty"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// NewRecord returns a fresh, uninitialized record.
func NewRecord() *Record {
	return &Record{
		Phase:   PhaseUninitialized,
		Rosters: make(map[string]RosterStamp),
	}
}

// Initialized reports whether first-run setup already completed.
func (r *Record) Initialized() bool {
	return r.Phase != PhaseUninitialized
}

// MarkInitialized records first-run completion.
func (r *Record) MarkInitialized(configSnapshot string, now time.Time) {
	r.Phase = PhaseInitialized
	r.InitializedAt = &now
	r.ConfigSnapshot = configSnapshot
}

// MarkReady records a fully bootstrapped run.
func (r *Record) MarkReady() {
	r.Phase = PhaseReady
}

// SetStateCode records the observed database state code and whether the
// dispatch marked a full rebuild.
func (r *Record) SetStateCode(code int, buildAll bool) {
	r.LastStateCode = &code
	r.BuildAll = buildAll
}

// RosterFresh reports whether the roster input is unchanged since the last
// successful sync; a fresh roster is skipped.
func (r *Record) RosterFresh(kind string, modTime time.Time) bool {
	stamp, ok := r.Rosters[kind]
	if !ok {
		return false
	}
	return !modTime.After(stamp.ModTime)
}

// StampRoster records a successful roster sync.
func (r *Record) StampRoster(kind string, modTime, now time.Time) {
	if r.Rosters == nil {
		r.Rosters = make(map[string]RosterStamp)
	}
	r.Rosters[kind] = RosterStamp{ModTime: modTime, ProcessedAt: now}
}
