package workflow

import (
	"context"

	"github.com/simplesurance/forkpromoter/internal/githubclt"
)

//go:generate mockgen -source interfaces.go -destination mocks/mocks.go -package mocks

// ReleaseSource queries an upstream repository for its latest published
// version.
type ReleaseSource interface {
	LatestRelease(ctx context.Context, owner, repo string) (*githubclt.Release, error)
}

// VersionStore is the durable record of the last promoted version.
type VersionStore interface {
	Get(ctx context.Context, name string) (string, error)
	Put(ctx context.Context, name, value string) error
}
