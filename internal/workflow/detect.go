package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/githubclt"
	"github.com/simplesurance/forkpromoter/internal/logfields"
	"github.com/simplesurance/forkpromoter/internal/paramstore"
	"github.com/simplesurance/forkpromoter/internal/retry"
)

// VersionSentinel is used as the current version when the version store
// has no record yet. Nothing was promoted, any fetched version differs.
const VersionSentinel = "0.0.0"

// Detector decides if a new upstream version must be promoted.
// It is read-only, the version store is only updated by the Reporter after
// a confirmed success.
type Detector struct {
	releases     ReleaseSource
	store        VersionStore
	retryer      *retry.Retryer
	owner        string
	repo         string
	versionParam string
	logger       *zap.Logger
}

func NewDetector(releases ReleaseSource, store VersionStore, retryer *retry.Retryer, owner, repo, versionParam string) *Detector {
	return &Detector{
		releases:     releases,
		store:        store,
		retryer:      retryer,
		owner:        owner,
		repo:         repo,
		versionParam: versionParam,
		logger:       zap.L().Named("detector"),
	}
}

// Detect fetches the latest upstream version and compares it with the
// stored one.
// The comparison is a plain string inequality, there is no semantic
// version ordering and no downgrade protection.
func (d *Detector) Detect(ctx context.Context) (*DetectResult, error) {
	var release *githubclt.Release

	err := d.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		release, err = d.releases.LatestRelease(ctx, d.owner, d.repo)
		return err
	}, []zap.Field{
		logfields.RepositoryOwner(d.owner),
		logfields.Repository(d.repo),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching latest upstream release: %w", err)
	}

	currentVersion, err := d.store.Get(ctx, d.versionParam)
	if err != nil {
		if !errors.Is(err, paramstore.ErrNotFound) {
			return nil, fmt.Errorf("reading current version: %w", err)
		}

		d.logger.Info(
			"no version recorded yet, using sentinel",
			logfields.Event("detect_version_record_missing"),
			logfields.Version(VersionSentinel),
		)

		currentVersion = VersionSentinel
	}

	updateRequired := currentVersion != release.Version

	d.logger.Info(
		"detection finished",
		logfields.Event("detect_finished"),
		zap.String("current_version", currentVersion),
		zap.String("upstream_version", release.Version),
		zap.Bool("update_required", updateRequired),
	)

	result := &DetectResult{
		UpdateRequired:  updateRequired,
		CurrentVersion:  currentVersion,
		UpstreamVersion: release.Version,
		ReleaseURL:      release.URL,
		ReleaseNotes:    release.Notes,
	}

	if !release.PublishedAt.IsZero() {
		result.PublishedAt = release.PublishedAt.UTC().Format(time.RFC3339)
	}

	return result, nil
}
