// Package logfields provides zap field constructors that are shared between
// packages to keep field names consistent in the log output.
package logfields

import "go.uber.org/zap"

func Event(val string) zap.Field {
	return zap.String("event", val)
}

func Stage(val string) zap.Field {
	return zap.String("stage", val)
}

func RunID(val string) zap.Field {
	return zap.String("run_id", val)
}

func Version(val string) zap.Field {
	return zap.String("version", val)
}

func Repository(val string) zap.Field {
	return zap.String("git.repository", val)
}

func RepositoryOwner(val string) zap.Field {
	return zap.String("github.repository_owner", val)
}

func JobID(val string) zap.Field {
	return zap.String("job_id", val)
}

func JobKind(val string) zap.Field {
	return zap.String("job_kind", val)
}

func JobStatus(val string) zap.Field {
	return zap.String("job_status", val)
}
