package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is the YYYYMMDD-HHMMSS layout used in artifact names and
// audit records.
const TimestampLayout = "20060102-150405"

// ArtifactExt is the extension of every backup artifact.
const ArtifactExt = ".dump"

// WorkflowStep names a state of the backup and restore state machines.
type WorkflowStep string

const (
	StepLock          WorkflowStep = "acquire lock"
	StepResolveVolume WorkflowStep = "resolve volume"
	StepStop          WorkflowStep = "stop instance"
	StepProvision     WorkflowStep = "provision helper"
	StepDump          WorkflowStep = "dump"
	StepPurge         WorkflowStep = "purge data directory"
	StepLoad          WorkflowStep = "load"
	StepFixOwnership  WorkflowStep = "fix ownership"
	StepAudit         WorkflowStep = "append audit record"
	StepTeardown      WorkflowStep = "teardown helper"
	StepRestart       WorkflowStep = "restart instance"
)

// BackupRequest asks for a dump of Instance into BackupDir.
// Confirmed must be true when the instance is running, since it will be stopped.
type BackupRequest struct {
	Instance  string
	BackupDir string
	Confirmed bool
}

// RestoreRequest asks for ArtifactPath to be loaded into Instance.
// Consuming it deletes the existing database directory; Confirmed must be true.
type RestoreRequest struct {
	Instance     string
	ArtifactPath string
	Confirmed    bool
}

// BackupResult is returned after a backup operation completes.
type BackupResult struct {
	Instance   string
	Artifact   string
	Path       string
	SizeBytes  int64
	WasRunning bool
	StartedAt  time.Time
	Duration   time.Duration
}

// RestoreResult is returned after a restore operation completes.
// Warnings collects non-fatal failures (ownership fix, audit append).
type RestoreResult struct {
	Instance     string
	ArtifactPath string
	WasRunning   bool
	StartedAt    time.Time
	Duration     time.Duration
	Warnings     []error
}

// ArtifactName returns {instance}_{YYYYMMDD-HHMMSS}.dump.
func ArtifactName(instance string, at time.Time) string {
	return fmt.Sprintf("%s_%s%s", instance, at.Format(TimestampLayout), ArtifactExt)
}

// DisambiguateArtifact inserts "-n" before the extension. n <= 0 returns name unchanged.
func DisambiguateArtifact(name string, n int) string {
	if n <= 0 {
		return name
	}
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ArtifactExt), n, ArtifactExt)
}

// ParseArtifactName extracts the instance and timestamp from an artifact file name.
func ParseArtifactName(name string) (string, time.Time, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, ArtifactExt) {
		return "", time.Time{}, false
	}
	stem := strings.TrimSuffix(base, ArtifactExt)
	idx := strings.LastIndex(stem, "_")
	if idx <= 0 {
		return "", time.Time{}, false
	}
	stamp := stem[idx+1:]
	if dash := strings.LastIndex(stamp, "-"); dash > len("20060102") {
		// strip a "-N" disambiguator
		stamp = stamp[:dash]
	}
	at, err := time.ParseInLocation(TimestampLayout, stamp, time.Local)
	if err != nil {
		return "", time.Time{}, false
	}
	return stem[:idx], at, true
}

// AuditRecord is the line appended to the in-volume log after a restore.
type AuditRecord struct {
	At           time.Time
	Instance     string
	ArtifactPath string
}

// String renders {YYYYMMDD-HHMMSS}:restore to {instance} from {artifact_path}.
func (r AuditRecord) String() string {
	return fmt.Sprintf("%s:restore to %s from %s", r.At.Format(TimestampLayout), r.Instance, r.ArtifactPath)
}
