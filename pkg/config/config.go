package config

import (
	"time"

	"github.com/stackpilot/stackpilot/pkg/types"
)

// Config is the single configuration value object for one invocation.
// It is constructed once at process start and passed by parameter to
// every component; components never read ambient process state.
type Config struct {
	// StackDir is the deployment directory holding the compose file and
	// generated configuration
	StackDir string `koanf:"stack_dir" validate:"required"`

	// ComposeFile is the compose definition, relative to StackDir
	ComposeFile string `koanf:"compose_file" validate:"required"`

	// ProjectName is the compose project name, also used as the volume
	// label prefix
	ProjectName string `koanf:"project_name" validate:"required"`

	// SecretsFile is the environment/secrets file consumed by the stack,
	// relative to StackDir
	SecretsFile string `koanf:"secrets_file" validate:"required"`

	Log         LogConfig         `koanf:"log"`
	Backup      BackupConfig      `koanf:"backup"`
	Rollout     RolloutConfig     `koanf:"rollout"`
	ObjectStore ObjectStoreConfig `koanf:"object_store"`
	HealthCheck HealthCheckConfig `koanf:"health_check"`

	// Services declares the managed units; restart order follows rank
	Services []types.ServiceDescriptor `koanf:"services" validate:"min=1,dive"`
}

// LogConfig controls log output
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

// BackupConfig controls the backup engine
type BackupConfig struct {
	// Root is the directory holding one compressed archive per run
	Root string `koanf:"root" validate:"required"`

	// RetentionDays is the age threshold for pruning; archives strictly
	// older are deleted after each successful backup
	RetentionDays int `koanf:"retention_days" validate:"min=1"`

	// DatabaseUser and DatabaseName parameterize the logical dump
	DatabaseUser string `koanf:"database_user" validate:"required"`
	DatabaseName string `koanf:"database_name" validate:"required"`
}

// RolloutConfig controls the rolling restart engine
type RolloutConfig struct {
	// PollInterval is the health poll cadence while waiting for a
	// recreated service
	PollInterval time.Duration `koanf:"poll_interval" validate:"min=100ms"`

	// SettleDelay is the pause after a service turns healthy before the
	// next one is touched
	SettleDelay time.Duration `koanf:"settle_delay"`

	// DefaultMaxWait bounds the total health wait for descriptors that
	// do not set their own RestartTimeout
	DefaultMaxWait time.Duration `koanf:"default_max_wait" validate:"min=1s"`
}

// ObjectStoreConfig describes the object store's admin surface
type ObjectStoreConfig struct {
	// Service is the compose service running the object store
	Service string `koanf:"service" validate:"required"`

	// Alias is the mc alias configured inside the service container
	Alias string `koanf:"alias" validate:"required"`

	// HealthURL is the readiness endpoint
	HealthURL string `koanf:"health_url" validate:"required,url"`

	// Buckets are created at install time and mirrored by backups
	Buckets []string `koanf:"buckets"`
}

// HealthCheckConfig controls the scheduled health-check command's
// auxiliary environment checks
type HealthCheckConfig struct {
	// DiskPath is the mount whose usage is checked
	DiskPath string `koanf:"disk_path" validate:"required"`

	// DiskLimitPercent fails the check when usage exceeds it
	DiskLimitPercent int `koanf:"disk_limit_percent" validate:"min=1,max=100"`

	// LogWindow is how far back the error-log scan looks
	LogWindow time.Duration `koanf:"log_window"`

	// ExpectedVolumes are the persistent volume names that must exist
	ExpectedVolumes []string `koanf:"expected_volumes"`
}

// Default returns the built-in configuration for the identity-provider
// stack. A stack file and STACKPILOT_ environment variables override it.
func Default() Config {
	return Config{
		StackDir:    "/opt/stackpilot",
		ComposeFile: "docker-compose.yaml",
		ProjectName: "idp",
		SecretsFile: ".env",
		Log: LogConfig{
			Level: "info",
		},
		Backup: BackupConfig{
			Root:          "/var/backups/stackpilot",
			RetentionDays: 30,
			DatabaseUser:  "idp",
			DatabaseName:  "idp",
		},
		Rollout: RolloutConfig{
			PollInterval:   2 * time.Second,
			SettleDelay:    3 * time.Second,
			DefaultMaxWait: 60 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Service:   "minio",
			Alias:     "local",
			HealthURL: "http://127.0.0.1:9000/minio/health/ready",
			Buckets:   []string{"idp-images", "idp-userexport"},
		},
		HealthCheck: HealthCheckConfig{
			DiskPath:         "/",
			DiskLimitPercent: 90,
			LogWindow:        time.Hour,
			ExpectedVolumes: []string{
				"idp_postgres_data",
				"idp_redis_data",
				"idp_minio_data",
			},
		},
		Services: []types.ServiceDescriptor{
			{
				Name: "postgres",
				Rank: 10,
				Check: types.HealthCheck{
					Strategy: types.CheckReadiness,
					Command:  []string{"pg_isready", "-U", "idp"},
				},
				ProbeTimeout:   5 * time.Second,
				RestartTimeout: 60 * time.Second,
			},
			{
				Name: "redis",
				Rank: 20,
				Check: types.HealthCheck{
					Strategy: types.CheckPing,
					Command:  []string{"redis-cli", "ping"},
				},
				ProbeTimeout:   3 * time.Second,
				RestartTimeout: 30 * time.Second,
			},
			{
				Name: "minio",
				Rank: 30,
				Check: types.HealthCheck{
					Strategy: types.CheckHTTP,
					URL:      "http://127.0.0.1:9000/minio/health/ready",
				},
				ProbeTimeout:   5 * time.Second,
				RestartTimeout: 60 * time.Second,
			},
			{
				Name: "idp-server",
				Rank: 40,
				Check: types.HealthCheck{
					Strategy: types.CheckHTTP,
					URL:      "http://127.0.0.1:3000/healthz",
				},
				ProbeTimeout:   5 * time.Second,
				RestartTimeout: 90 * time.Second,
			},
			{
				Name: "idp-portal",
				Rank: 50,
				Check: types.HealthCheck{
					Strategy: types.CheckHTTP,
					URL:      "http://127.0.0.1:3001/healthz",
				},
				ProbeTimeout:   5 * time.Second,
				RestartTimeout: 90 * time.Second,
			},
			{
				Name: "proxy",
				Rank: 60,
				Check: types.HealthCheck{
					Strategy: types.CheckHTTP,
					URL:      "http://127.0.0.1:8080/",
				},
				ProbeTimeout:   5 * time.Second,
				RestartTimeout: 30 * time.Second,
			},
		},
	}
}

// Service returns the descriptor for name, if declared
func (c *Config) Service(name string) (types.ServiceDescriptor, bool) {
	for _, svc := range c.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return types.ServiceDescriptor{}, false
}

// ServicesByRank returns the declared services in restart order
func (c *Config) ServicesByRank() []types.ServiceDescriptor {
	return types.SortByRank(c.Services)
}

// Retention returns the backup retention window as a duration
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}
