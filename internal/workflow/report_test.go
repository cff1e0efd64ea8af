package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/forkpromoter/internal/promoerr"
	"github.com/simplesurance/forkpromoter/internal/workflow/mocks"
)

// recordingPublisher captures published notifications, the scheduler
// tests read it concurrently.
type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, subject, body string) error {
	if p.err != nil {
		return p.err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.subjects = append(p.subjects, subject)
	p.bodies = append(p.bodies, body)

	return nil
}

func (p *recordingPublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.subjects)
}

func newTestReporter(t *testing.T, publisher *recordingPublisher) (*Reporter, *mocks.MockVersionStore) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	store := mocks.NewMockVersionStore(mockctrl)

	reporter := NewReporter(store, publisher, testVersionParam, "")
	reporter.storeRetryInterval = time.Millisecond

	return reporter, store
}

func successRun() *Context {
	return &Context{
		RunID: "run-1",
		Detect: &DetectResult{
			UpdateRequired:  true,
			CurrentVersion:  "v1.2.2",
			UpstreamVersion: "v1.2.3",
		},
		Merge: &MergeResult{
			UpstreamVersion: "v1.2.3",
			BuildID:         "build-1",
		},
		Deploy: &DeployResult{
			UpstreamVersion: "v1.2.3",
			ExecutionID:     "exec-1",
			Status:          DeploySuccess,
		},
		Smoke: &SmokeResult{
			UpstreamVersion: "v1.2.3",
			ExecutionID:     "sm-1",
			Status:          "SUCCEEDED",
			Result:          "ok",
		},
	}
}

func TestReportSuccessRecordsVersionOnce(t *testing.T) {
	publisher := &recordingPublisher{}
	reporter, store := newTestReporter(t, publisher)

	store.EXPECT().
		Put(gomock.Any(), gomock.Eq(testVersionParam), gomock.Eq("v1.2.3")).
		Return(nil).
		Times(1)

	run := successRun()

	summary, err := reporter.Report(context.Background(), run, StatusSuccess)
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", summary.UpstreamVersion)
	assert.Equal(t, "sm-1", summary.SmokeExecution)
	assert.Equal(t, "build-1", summary.BuildID)
	assert.Equal(t, "exec-1", summary.DeployID)
	assert.Same(t, summary, run.Notification)

	require.Len(t, publisher.subjects, 1)
	assert.Equal(t, "Fork Promoter - SUCCESS", publisher.subjects[0])

	var published Summary
	require.NoError(t, json.Unmarshal([]byte(publisher.bodies[0]), &published))
	assert.Equal(t, StatusSuccess, published.Status)
	assert.Equal(t, "v1.2.3", published.UpstreamVersion)
}

func TestReportVersionPrefersDeployedOverDetected(t *testing.T) {
	publisher := &recordingPublisher{}
	reporter, store := newTestReporter(t, publisher)

	run := successRun()
	run.Detect.UpstreamVersion = "v9.9.9"

	store.EXPECT().
		Put(gomock.Any(), gomock.Any(), gomock.Eq("v1.2.3")).
		Return(nil)

	summary, err := reporter.Report(context.Background(), run, StatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", summary.UpstreamVersion)
}

func TestReportStoreFailureDoesNotBlockPublishing(t *testing.T) {
	publisher := &recordingPublisher{}
	reporter, store := newTestReporter(t, publisher)

	store.EXPECT().
		Put(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(assert.AnError).
		Times(storeWriteRetries + 1)

	_, err := reporter.Report(context.Background(), successRun(), StatusSuccess)
	require.NoError(t, err)

	require.Len(t, publisher.subjects, 1)
	assert.Equal(t, "Fork Promoter - SUCCESS", publisher.subjects[0])
}

func TestReportFailedCarriesStageAndDiagnostics(t *testing.T) {
	publisher := &recordingPublisher{}
	reporter, _ := newTestReporter(t, publisher)

	run := &Context{
		RunID:  "run-2",
		Detect: &DetectResult{UpdateRequired: true, UpstreamVersion: "v1.2.3"},
		Error: &StageError{
			Stage: StageDeploy,
			Err: &promoerr.JobFailedError{
				JobID:       "exec-1",
				Status:      "UPDATE_ROLLBACK_COMPLETE",
				Diagnostics: []string{"service task failed health check"},
			},
		},
	}

	summary, err := reporter.Report(context.Background(), run, StatusFailed)
	require.NoError(t, err)

	assert.Equal(t, StageDeploy, summary.Stage)
	assert.Empty(t, summary.UpstreamVersion)

	detail, ok := summary.Error.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "exec-1", detail["job_id"])
	assert.Equal(t, "UPDATE_ROLLBACK_COMPLETE", detail["status"])

	assert.Equal(t, "Fork Promoter - FAILED", publisher.subjects[0])
}

func TestReportSkippedCarriesCurrentVersion(t *testing.T) {
	publisher := &recordingPublisher{}
	reporter, _ := newTestReporter(t, publisher)

	run := &Context{
		RunID:  "run-3",
		Detect: &DetectResult{UpdateRequired: false, CurrentVersion: "v1.2.3", UpstreamVersion: "v1.2.3"},
	}

	summary, err := reporter.Report(context.Background(), run, StatusSkipped)
	require.NoError(t, err)

	assert.Equal(t, SkipReason, summary.Reason)
	assert.Equal(t, "v1.2.3", summary.CurrentVersion)
	assert.Equal(t, "Fork Promoter - SKIPPED", publisher.subjects[0])
}

func TestReportPublishFailurePropagates(t *testing.T) {
	publisher := &recordingPublisher{
		err: &promoerr.NotificationDeliveryError{Subject: "Fork Promoter - SKIPPED", Err: assert.AnError},
	}
	reporter, _ := newTestReporter(t, publisher)

	run := &Context{RunID: "run-4", Detect: &DetectResult{CurrentVersion: "v1.2.3"}}

	_, err := reporter.Report(context.Background(), run, StatusSkipped)

	var deliveryErr *promoerr.NotificationDeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Nil(t, run.Notification)
}
