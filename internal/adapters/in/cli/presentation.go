package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/bnema/dbsnap/internal/domain"
)

var (
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	boldColor    = color.New(color.Bold)
	mutedColor   = color.New(color.Faint)
)

var cliWriteLine = func(w io.Writer, msg string) error {
	_, err := fmt.Fprintln(w, msg)
	return err
}

var cliWritef = func(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func cliRenderSuccess(msg string) string {
	return successColor.Sprint("✓ " + msg)
}

func cliRenderWarning(msg string) string {
	return warningColor.Sprint("! " + msg)
}

func cliRenderError(msg string) string {
	return errorColor.Sprint("✗ " + msg)
}

func cliRenderMuted(msg string) string {
	return mutedColor.Sprint(msg)
}

func cliRenderMeta(label, value string) string {
	return boldColor.Sprintf("%-12s", label) + " " + value
}

func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func formatDuration(d time.Duration) string {
	return d.Round(100 * time.Millisecond).String()
}

func printBackupResult(w io.Writer, r *domain.BackupResult) error {
	if err := cliWriteLine(w, cliRenderSuccess(fmt.Sprintf("Backup of %s written", r.Instance))); err != nil {
		return err
	}
	lines := []string{
		cliRenderMeta("Artifact", r.Path),
		cliRenderMeta("Size", formatSize(r.SizeBytes)),
		cliRenderMeta("Duration", formatDuration(r.Duration)),
	}
	if r.WasRunning {
		lines = append(lines, cliRenderMeta("Instance", "restarted"))
	}
	return cliWriteLine(w, strings.Join(lines, "\n"))
}

func printRestoreResult(w io.Writer, r *domain.RestoreResult) error {
	if err := cliWriteLine(w, cliRenderSuccess(fmt.Sprintf("Restored %s from %s", r.Instance, r.ArtifactPath))); err != nil {
		return err
	}
	if err := cliWriteLine(w, cliRenderMeta("Duration", formatDuration(r.Duration))); err != nil {
		return err
	}
	for _, warning := range r.Warnings {
		if err := cliWriteLine(w, cliRenderWarning(warning.Error())); err != nil {
			return err
		}
	}
	return nil
}

func printInstance(w io.Writer, inst *domain.Instance, vol *domain.DataVolume, volErr error) error {
	state := inst.Status
	if inst.Running {
		state = successColor.Sprint(state)
	}
	id := inst.ID
	if len(id) > 12 {
		id = id[:12]
	}

	lines := []string{
		cliRenderMeta("Name", inst.Name),
		cliRenderMeta("ID", id),
		cliRenderMeta("Image", inst.Image),
		cliRenderMeta("State", state),
	}
	switch {
	case vol != nil:
		lines = append(lines, cliRenderMeta("Data volume", fmt.Sprintf("%s -> %s", vol.Source, vol.Destination)))
	case volErr != nil:
		lines = append(lines, cliRenderMeta("Data volume", warningColor.Sprint(volErr.Error())))
	}
	return cliWriteLine(w, strings.Join(lines, "\n"))
}

// printError reports err with the failed workflow step and, for command
// failures, the captured stderr.
func printError(w io.Writer, err error) {
	_ = cliWriteLine(w, cliRenderError(err.Error()))

	if step, ok := domain.FailedStep(err); ok {
		_ = cliWriteLine(w, cliRenderMeta("Failed step", string(step)))
	}

	var cmdErr *domain.CommandError
	if errors.As(err, &cmdErr) {
		_ = cliWriteLine(w, cliRenderMeta("Command", strings.Join(cmdErr.Command, " ")))
		_ = cliWriteLine(w, cliRenderMeta("Exit code", fmt.Sprint(cmdErr.ExitCode)))
		if stderr := strings.TrimSpace(cmdErr.Stderr); stderr != "" {
			_ = cliWriteLine(w, cliRenderMeta("Stderr", ""))
			_ = cliWriteLine(w, cliRenderMuted(stderr))
		}
	}
}
