package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/dbsnap/internal/domain"
)

type fakeBackend struct {
	instance  *domain.Instance
	volume    *domain.DataVolume
	inspectFn func() error

	backupReqs  []domain.BackupRequest
	restoreReqs []domain.RestoreRequest
	backupErr   error
	restoreErr  error

	sessions []*domain.Instance
	pruned   []string
}

func (f *fakeBackend) Backup(_ context.Context, req domain.BackupRequest) (*domain.BackupResult, error) {
	f.backupReqs = append(f.backupReqs, req)
	if f.backupErr != nil {
		return nil, f.backupErr
	}
	return &domain.BackupResult{
		Instance:  req.Instance,
		Artifact:  req.Instance + "_20240101-000000.dump",
		Path:      req.BackupDir + "/" + req.Instance + "_20240101-000000.dump",
		SizeBytes: 2048,
	}, nil
}

func (f *fakeBackend) Restore(_ context.Context, req domain.RestoreRequest) (*domain.RestoreResult, error) {
	f.restoreReqs = append(f.restoreReqs, req)
	if f.restoreErr != nil {
		return nil, f.restoreErr
	}
	return &domain.RestoreResult{
		Instance:     req.Instance,
		ArtifactPath: req.ArtifactPath,
		Warnings:     []error{domain.ErrAuditAppendFailed},
	}, nil
}

func (f *fakeBackend) Inspect(_ context.Context, _ string) (*domain.Instance, *domain.DataVolume, error) {
	if f.inspectFn != nil {
		if err := f.inspectFn(); err != nil {
			return nil, nil, err
		}
	}
	return f.instance, f.volume, nil
}

func (f *fakeBackend) ListSessions(_ context.Context) ([]*domain.Instance, error) {
	return f.sessions, nil
}

func (f *fakeBackend) PruneSessions(_ context.Context) ([]string, error) {
	return f.pruned, nil
}

type fakePrompter struct {
	interactive bool
	answer      bool
	prompts     []string
}

func (p *fakePrompter) Interactive() bool { return p.interactive }

func (p *fakePrompter) Confirm(message string) (bool, error) {
	p.prompts = append(p.prompts, message)
	return p.answer, nil
}

type harness struct {
	backend  *fakeBackend
	prompter *fakePrompter
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	built    int
	closed   int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	color.NoColor = true
	return &harness{
		backend: &fakeBackend{
			instance: &domain.Instance{ID: "abc123", Name: "db", Status: "running", Running: true},
			volume:   &domain.DataVolume{Instance: "db", Source: "/var/lib/docker/volumes/db/_data", Destination: "/data"},
		},
		prompter: &fakePrompter{interactive: true, answer: true},
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
	}
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	factory := func(_ context.Context, v *viper.Viper, _ io.Writer) (Backend, func(), error) {
		h.built++
		return h.backend, func() { h.closed++ }, nil
	}
	cmd := NewRootCmd(BuildInfo{Version: "1.2.3", Commit: "abcdef", Date: "2024-01-01"}, factory,
		WithPrompter(h.prompter), WithOutput(h.stdout, h.stderr))
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestBackupCmd_PromptsForRunningInstance(t *testing.T) {
	h := newHarness(t)

	err := h.run(t, "backup", "db", "/srv/backups")
	require.NoError(t, err)

	require.Len(t, h.prompter.prompts, 1)
	assert.Contains(t, h.prompter.prompts[0], "db is running")
	require.Len(t, h.backend.backupReqs, 1)
	assert.Equal(t, domain.BackupRequest{Instance: "db", BackupDir: "/srv/backups", Confirmed: true}, h.backend.backupReqs[0])
	assert.Contains(t, h.stdout.String(), "/srv/backups/db_20240101-000000.dump")
	assert.Contains(t, h.stdout.String(), "2.0 KiB")
	assert.Equal(t, 1, h.closed)
}

func TestBackupCmd_StoppedInstanceSkipsPrompt(t *testing.T) {
	h := newHarness(t)
	h.backend.instance.Running = false
	h.backend.instance.Status = "exited"

	require.NoError(t, h.run(t, "backup", "db", "/srv/backups"))

	assert.Empty(t, h.prompter.prompts)
	require.Len(t, h.backend.backupReqs, 1)
	assert.False(t, h.backend.backupReqs[0].Confirmed)
}

func TestBackupCmd_ForceSkipsPrompt(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "backup", "db", "/srv/backups", "-f"))

	assert.Empty(t, h.prompter.prompts)
	require.Len(t, h.backend.backupReqs, 1)
	assert.True(t, h.backend.backupReqs[0].Confirmed)
}

func TestBackupCmd_DeclinedPromptDoesNothing(t *testing.T) {
	h := newHarness(t)
	h.prompter.answer = false

	err := h.run(t, "backup", "db", "/srv/backups")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
	assert.Empty(t, h.backend.backupReqs)
}

func TestBackupCmd_NonInteractiveRequiresForce(t *testing.T) {
	h := newHarness(t)
	h.prompter.interactive = false

	err := h.run(t, "backup", "db", "/srv/backups")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
	assert.Contains(t, err.Error(), "-f")
	assert.Empty(t, h.prompter.prompts)
	assert.Empty(t, h.backend.backupReqs)
}

func TestBackupCmd_InspectFailureDefersToWorkflow(t *testing.T) {
	h := newHarness(t)
	h.backend.inspectFn = func() error { return domain.ErrInstanceNotFound }
	h.backend.backupErr = domain.ErrInstanceNotFound

	err := h.run(t, "backup", "ghost", "/srv/backups")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
	assert.Empty(t, h.prompter.prompts)
	require.Len(t, h.backend.backupReqs, 1)
}

func TestBackupCmd_RequiresTwoArgs(t *testing.T) {
	h := newHarness(t)

	err := h.run(t, "backup", "db")
	require.Error(t, err)
	assert.Zero(t, h.built)
}

func TestRestoreCmd_AlwaysPrompts(t *testing.T) {
	h := newHarness(t)
	h.backend.instance.Running = false

	require.NoError(t, h.run(t, "restore", "db", "/srv/backups/db.dump"))

	require.Len(t, h.prompter.prompts, 1)
	assert.Contains(t, h.prompter.prompts[0], "deletes the current database of db")
	require.Len(t, h.backend.restoreReqs, 1)
	assert.Equal(t, domain.RestoreRequest{Instance: "db", ArtifactPath: "/srv/backups/db.dump", Confirmed: true}, h.backend.restoreReqs[0])
	assert.Contains(t, h.stdout.String(), "Restored db from /srv/backups/db.dump")
	assert.Contains(t, h.stdout.String(), domain.ErrAuditAppendFailed.Error())
}

func TestRestoreCmd_DeclinedPromptNeverConnects(t *testing.T) {
	h := newHarness(t)
	h.prompter.answer = false

	err := h.run(t, "restore", "db", "/srv/backups/db.dump")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
	assert.Zero(t, h.built)
	assert.Empty(t, h.backend.restoreReqs)
}

func TestRestoreCmd_Force(t *testing.T) {
	h := newHarness(t)
	h.prompter.interactive = false

	require.NoError(t, h.run(t, "restore", "db", "/srv/backups/db.dump", "--force"))
	assert.Empty(t, h.prompter.prompts)
	require.Len(t, h.backend.restoreReqs, 1)
}

func TestRestoreCmd_PropagatesWorkflowError(t *testing.T) {
	h := newHarness(t)
	h.backend.restoreErr = &domain.StepError{Step: domain.StepLoad, Err: domain.ErrLoadFailed}

	err := h.run(t, "restore", "db", "/srv/backups/db.dump", "-f")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLoadFailed)
	step, ok := domain.FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, domain.StepLoad, step)
}

func TestInspectCmd(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "inspect", "db"))

	out := h.stdout.String()
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "/var/lib/docker/volumes/db/_data -> /data")
}

func TestSessionsCmd_List(t *testing.T) {
	h := newHarness(t)
	h.backend.sessions = []*domain.Instance{{
		Name:   "dbsnap-backup-db-1a2b3c4d",
		Status: "exited",
		Labels: map[string]string{
			domain.LabelInstance:  "db",
			domain.LabelOperation: "backup",
			domain.LabelCreated:   "2024-01-01T00:00:00Z",
		},
	}}

	require.NoError(t, h.run(t, "sessions"))

	out := h.stdout.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "dbsnap-backup-db-1a2b3c4d")
	assert.Contains(t, out, "backup")
	assert.Contains(t, out, "2024-01-01T00:00:00Z")
}

func TestSessionsCmd_Empty(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "sessions"))
	assert.Contains(t, h.stdout.String(), "No helper containers found")
}

func TestSessionsCmd_Prune(t *testing.T) {
	h := newHarness(t)
	h.backend.pruned = []string{"dbsnap-restore-db-00ff00ff"}

	require.NoError(t, h.run(t, "sessions", "--prune"))
	assert.Contains(t, h.stdout.String(), "Removed dbsnap-restore-db-00ff00ff")
}

func TestVersionCmd(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "version"))
	assert.Contains(t, h.stdout.String(), "dbsnap 1.2.3")
	assert.Contains(t, h.stdout.String(), "Commit: abcdef")

	h.stdout.Reset()
	require.NoError(t, h.run(t, "version", "--short"))
	assert.Equal(t, "1.2.3\n", h.stdout.String())
	assert.Zero(t, h.built)
}

func TestDebugFlagKeepsHelpers(t *testing.T) {
	h := newHarness(t)
	var seen *viper.Viper
	factory := func(_ context.Context, v *viper.Viper, _ io.Writer) (Backend, func(), error) {
		seen = v
		return h.backend, func() {}, nil
	}
	cmd := NewRootCmd(BuildInfo{}, factory, WithPrompter(h.prompter), WithOutput(h.stdout, h.stderr))
	cmd.SetArgs([]string{"--debug", "--docker-host", "tcp://10.0.0.5:2375", "inspect", "db"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	require.NotNil(t, seen)
	assert.True(t, seen.GetBool("helper.keep"))
	assert.Equal(t, "debug", seen.GetString("log.level"))
	assert.Equal(t, "tcp://10.0.0.5:2375", seen.GetString("docker.host"))
}

func TestFactoryErrorIsReturned(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("docker is not available")
	factory := func(_ context.Context, _ *viper.Viper, _ io.Writer) (Backend, func(), error) {
		return nil, nil, boom
	}
	cmd := NewRootCmd(BuildInfo{}, factory, WithPrompter(h.prompter), WithOutput(h.stdout, h.stderr))
	cmd.SetArgs([]string{"inspect", "db"})

	assert.ErrorIs(t, cmd.ExecuteContext(context.Background()), boom)
}

func TestPrintError_ShowsStepAndStderr(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	err := &domain.StepError{
		Step: domain.StepDump,
		Err: errors.Join(domain.ErrDumpFailed, &domain.CommandError{
			Step:     "dump",
			Command:  []string{"neo4j-admin", "dump"},
			ExitCode: 1,
			Stderr:   "database is in use\n",
		}),
	}

	printError(&buf, err)

	out := buf.String()
	assert.Contains(t, out, "dump")
	assert.Contains(t, out, "neo4j-admin dump")
	assert.Contains(t, out, "Exit code")
	assert.Contains(t, out, "database is in use")
}
