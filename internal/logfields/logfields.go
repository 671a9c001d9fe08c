package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID     = "build_id"
	KeyProjectID   = "project_id"
	KeyBuildStatus = "build_status"
	KeySource      = "source"
	KeyBranch      = "branch"
	KeyEnvironment = "environment"
	KeyJobID       = "job_id"
	KeyJobType     = "job_type"
	KeyTube        = "tube"
	KeyWorker      = "worker"
	KeyOutcome     = "outcome"
	KeyDurationMS  = "duration_ms"
	KeyPath        = "path"
	KeyInterval    = "interval"
	KeyCount       = "count"
	KeyKeep        = "keep"
	KeyRebuildOf   = "rebuild_of"
	KeyExitCode    = "exit_code"
	KeyOp          = "op"
	KeyAttempt     = "attempt"
	KeyBackend     = "backend"
	KeyAddr        = "addr"
	KeyStream      = "stream"
	KeyTimeToRun   = "ttr"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id int64) slog.Attr         { return slog.Int64(KeyBuildID, id) }
func ProjectID(id int64) slog.Attr       { return slog.Int64(KeyProjectID, id) }
func BuildStatus(s string) slog.Attr     { return slog.String(KeyBuildStatus, s) }
func Source(s string) slog.Attr          { return slog.String(KeySource, s) }
func Branch(b string) slog.Attr          { return slog.String(KeyBranch, b) }
func Environment(e string) slog.Attr     { return slog.String(KeyEnvironment, e) }
func JobID(id string) slog.Attr          { return slog.String(KeyJobID, id) }
func JobType(t string) slog.Attr         { return slog.String(KeyJobType, t) }
func Tube(name string) slog.Attr         { return slog.String(KeyTube, name) }
func Worker(id string) slog.Attr         { return slog.String(KeyWorker, id) }
func Outcome(o string) slog.Attr         { return slog.String(KeyOutcome, o) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Interval(d time.Duration) slog.Attr { return slog.Duration(KeyInterval, d) }
func Count(n int) slog.Attr              { return slog.Int(KeyCount, n) }
func Keep(n int) slog.Attr               { return slog.Int(KeyKeep, n) }
func RebuildOf(id int64) slog.Attr       { return slog.Int64(KeyRebuildOf, id) }
func ExitCode(code int) slog.Attr        { return slog.Int(KeyExitCode, code) }
func Op(op string) slog.Attr             { return slog.String(KeyOp, op) }
func Attempt(n int) slog.Attr            { return slog.Int(KeyAttempt, n) }
func Backend(name string) slog.Attr      { return slog.String(KeyBackend, name) }
func Addr(addr string) slog.Attr         { return slog.String(KeyAddr, addr) }
func Stream(name string) slog.Attr       { return slog.String(KeyStream, name) }
func TimeToRun(d time.Duration) slog.Attr { return slog.Duration(KeyTimeToRun, d) }
func DurationMS(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Nanoseconds())/1e6)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
