package backup

import (
	"path"

	"github.com/bnema/dbsnap/internal/domain"
)

// Every command is an argument vector; nothing user-supplied reaches a shell.

func (s *Service) dumpCommand(target string) domain.ExecCommand {
	return domain.ExecCommand{
		Step: string(domain.StepDump),
		Args: append(append([]string(nil), s.config.DumpCmd...),
			"--database="+s.config.Database,
			"--to="+target,
		),
	}
}

func (s *Service) loadCommand(source string) domain.ExecCommand {
	return domain.ExecCommand{
		Step: string(domain.StepLoad),
		Args: append(append([]string(nil), s.config.LoadCmd...),
			"--database="+s.config.Database,
			"--from="+source,
		),
	}
}

func (s *Service) purgeCommand() domain.ExecCommand {
	return domain.ExecCommand{
		Step: string(domain.StepPurge),
		Args: []string{"rm", "-rf", "--", s.config.DatabaseDir},
		User: rootUser,
	}
}

func removePartialCommand(target string) domain.ExecCommand {
	return domain.ExecCommand{
		Step: "remove partial artifact",
		Args: []string{"rm", "-f", "--", target},
		User: rootUser,
	}
}

func (s *Service) chownCommand() domain.ExecCommand {
	return domain.ExecCommand{
		Step: string(domain.StepFixOwnership),
		Args: []string{"chown", "-R", s.config.Owner, s.config.DatabaseDir},
		User: rootUser,
	}
}

// chmodCommand keeps the execute bit on directories only.
func (s *Service) chmodCommand() domain.ExecCommand {
	return domain.ExecCommand{
		Step: string(domain.StepFixOwnership),
		Args: []string{"chmod", "-R", "u=rwX,g=rX,o=rX", s.config.DatabaseDir},
		User: rootUser,
	}
}

// auditCommand appends line to the audit log. The line and path are passed
// as positional parameters, so the shell never interprets them.
func (s *Service) auditCommand(line string) domain.ExecCommand {
	return domain.ExecCommand{
		Step: string(domain.StepAudit),
		Args: []string{"sh", "-c", `printf '%s\n' "$1" >> "$2"`, "sh", line, s.config.AuditLogPath},
		User: rootUser,
	}
}

// inBackupDir is the in-helper path of an artifact.
func (s *Service) inBackupDir(artifact string) string {
	return path.Join(s.config.BackupPath, artifact)
}
