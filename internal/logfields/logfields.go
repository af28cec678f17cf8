package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPhase      = "phase"
	KeyRunID      = "run_id"
	KeyAttempt    = "attempt"
	KeyStateCode  = "state_code"
	KeyPack       = "pack"
	KeyProcess    = "process"
	KeyPID        = "pid"
	KeyPath       = "path"
	KeyCommand    = "command"
	KeyDurationMS = "duration_ms"
	KeyRosterKind = "roster_kind"
	KeyRow        = "row"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Phase(name string) slog.Attr     { return slog.String(KeyPhase, name) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func StateCode(c int) slog.Attr       { return slog.Int(KeyStateCode, c) }
func Pack(name string) slog.Attr      { return slog.String(KeyPack, name) }
func Process(name string) slog.Attr   { return slog.String(KeyProcess, name) }
func PID(pid int) slog.Attr           { return slog.Int(KeyPID, pid) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func RosterKind(k string) slog.Attr   { return slog.String(KeyRosterKind, k) }
func Row(n int) slog.Attr             { return slog.Int(KeyRow, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
