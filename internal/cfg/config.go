package cfg

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
)

const (
	DefScheduleInterval = 6 * time.Hour
	DefWorkflowDeadline = 2 * time.Hour

	DefBuildPollInterval = 10 * time.Second
	DefBuildMaxWait      = 30 * time.Minute

	DefDeployPollInterval = 30 * time.Second
	DefDeployMaxWait      = 30 * time.Minute

	DefSmokeTestPollInterval = 15 * time.Second
	DefSmokeTestMaxWait      = 30 * time.Minute
)

type Config struct {
	HTTPListenAddr      string `toml:"http_server_listen_addr"`
	HTTPTriggerEndpoint string `toml:"http_trigger_endpoint"`

	LogFormat  string `toml:"log_format"`
	LogTimeKey string `toml:"log_time_key"`
	LogLevel   string `toml:"log_level"`

	StoreDBFile      string `toml:"store_db_file"`
	VersionParam     string `toml:"version_param"`
	GithubTokenParam string `toml:"github_token_param"`
	GithubAPIToken   string `toml:"github_api_token"`

	ScheduleInterval duration `toml:"schedule_interval"`
	WorkflowDeadline duration `toml:"workflow_deadline"`

	Upstream     Upstream     `toml:"upstream"`
	MergeBuild   MergeBuild   `toml:"merge_build"`
	Deploy       Deploy       `toml:"deploy"`
	SmokeTest    SmokeTest    `toml:"smoke_test"`
	Notification Notification `toml:"notification"`
}

type Upstream struct {
	Owner    string `toml:"owner"`
	Repo     string `toml:"repository"`
	ForkRepo string `toml:"fork_repository"`
}

type Backend struct {
	URL      string `toml:"url"`
	User     string `toml:"user"`
	Password string `toml:"password"`

	PollInterval duration `toml:"poll_interval"`
	MaxWait      duration `toml:"max_wait"`
}

type MergeBuild struct {
	Backend
	Project string `toml:"project"`
}

type Deploy struct {
	Backend
	StackName string `toml:"stack_name"`
}

type SmokeTest struct {
	Backend
	FixtureBucket string `toml:"fixture_bucket"`
	FixtureKey    string `toml:"fixture_key"`
	ResultQuery   string `toml:"result_query"`
}

type Notification struct {
	URL           string `toml:"url"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// duration makes time.Duration TOML-decodable from strings like "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Load(reader io.Reader) (*Config, error) {
	result := Config{
		HTTPTriggerEndpoint: "/trigger",
		LogFormat:           "logfmt",
		LogLevel:            "info",
		VersionParam:        "state/latest-version",
		GithubTokenParam:    "github/token",
		ScheduleInterval:    duration{DefScheduleInterval},
		WorkflowDeadline:    duration{DefWorkflowDeadline},
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.applyBackendDefaults()

	return &result, nil
}

func (r *Config) applyBackendDefaults() {
	applyDefaults(&r.MergeBuild.Backend, DefBuildPollInterval, DefBuildMaxWait)
	applyDefaults(&r.Deploy.Backend, DefDeployPollInterval, DefDeployMaxWait)
	applyDefaults(&r.SmokeTest.Backend, DefSmokeTestPollInterval, DefSmokeTestMaxWait)
}

func applyDefaults(b *Backend, pollInterval, maxWait time.Duration) {
	if b.PollInterval.Duration == 0 {
		b.PollInterval.Duration = pollInterval
	}

	if b.MaxWait.Duration == 0 {
		b.MaxWait.Duration = maxWait
	}
}

// Validate returns an error when required settings are missing or when a
// stage timeout is not strictly smaller than the workflow deadline.
// A stage timeout that is equal or bigger than the deadline would fire
// after the whole run was already terminated and never be reported.
func (r *Config) Validate() error {
	if r.Upstream.Owner == "" || r.Upstream.Repo == "" {
		return errors.New("upstream.owner and upstream.repository must be set")
	}

	if r.StoreDBFile == "" {
		return errors.New("store_db_file must be set")
	}

	if r.Notification.URL == "" {
		return errors.New("notification.url must be set")
	}

	if r.ScheduleInterval.Duration <= 0 {
		return errors.New("schedule_interval must be a positive duration")
	}

	if r.WorkflowDeadline.Duration <= 0 {
		return errors.New("workflow_deadline must be a positive duration")
	}

	for _, backend := range []struct {
		name string
		cfg  *Backend
	}{
		{name: "merge_build", cfg: &r.MergeBuild.Backend},
		{name: "deploy", cfg: &r.Deploy.Backend},
		{name: "smoke_test", cfg: &r.SmokeTest.Backend},
	} {
		if backend.cfg.URL == "" {
			return fmt.Errorf("%s.url must be set", backend.name)
		}

		if backend.cfg.MaxWait.Duration >= r.WorkflowDeadline.Duration {
			return fmt.Errorf(
				"%s.max_wait (%s) must be smaller than workflow_deadline (%s)",
				backend.name, backend.cfg.MaxWait.Duration, r.WorkflowDeadline.Duration,
			)
		}
	}

	return nil
}

func (r *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(r)
}
