package logx

import (
	"context"

	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

type contextKey int

const projectKey contextKey = 0

// WithProject annotates the logger with the project name if present.
func WithProject(ctx context.Context, project schema.ProjectName) pslog.Logger {
	log := pslog.Ctx(ctx)
	if project != "" {
		if current, ok := ctx.Value(projectKey).(schema.ProjectName); ok && current == project {
			return log
		}
		log = log.With("project", string(project))
	}
	return log
}

// WithProjectFile annotates the logger with project and file.
func WithProjectFile(ctx context.Context, project schema.ProjectName, path schema.FilePath) pslog.Logger {
	return WithFile(WithProject(ctx, project), path)
}

// WithFile annotates a logger with a file path when set.
func WithFile(log pslog.Logger, path schema.FilePath) pslog.Logger {
	if !path.IsZero() {
		log = log.With("file", path.String())
	}
	return log
}

// ContextWithProject stores the project marker on the context for log de-duplication.
func ContextWithProject(ctx context.Context, project schema.ProjectName) context.Context {
	if ctx == nil || project == "" {
		return ctx
	}
	return context.WithValue(ctx, projectKey, project)
}

// ContextWithProjectLogger attaches the logger and project marker to the context.
func ContextWithProjectLogger(ctx context.Context, log pslog.Logger, project schema.ProjectName) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithProject(ctx, project)
}
