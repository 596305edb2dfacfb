package barterhub

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/barterhub/barterhub/barterhub/database"
	"github.com/barterhub/barterhub/barterhub/matching"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := DefaultConfig()
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the configuration used for every section a
// config.toml omits. Decoding overlays the file on top of these values.
func DefaultConfig() Config {
	return Config{
		Log:    LogConfig{Level: slog.LevelInfo},
		Engine: matching.DefaultConfig(),
		Model: ModelConfig{
			ArtifactPath: "model.gob",
			Epochs:       500,
			LearningRate: 0.1,
		},
		Feedback: FeedbackConfig{MinRetrainFeedback: 50},
		Scheduler: SchedulerConfig{
			RunInterval:    15 * time.Minute,
			ExpireInterval: time.Hour,
		},
	}
}

// Validate checks every section the runtime depends on. Zero intervals and
// zero training parameters are rejected here rather than surfacing later as
// a ticker panic or a degenerate model.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if c.Model.ArtifactPath == "" {
		return fmt.Errorf("config: model.artifact_path must not be empty")
	}
	if c.Model.Epochs < 1 {
		return fmt.Errorf("config: model.epochs %d must be at least 1", c.Model.Epochs)
	}
	if c.Model.LearningRate <= 0 {
		return fmt.Errorf("config: model.learning_rate %.3f must be positive", c.Model.LearningRate)
	}
	if c.Feedback.MinRetrainFeedback < 1 {
		return fmt.Errorf("config: feedback.min_retrain_feedback %d must be at least 1", c.Feedback.MinRetrainFeedback)
	}
	if c.Scheduler.RunInterval <= 0 {
		return fmt.Errorf("config: scheduler.run_interval %s must be positive", c.Scheduler.RunInterval)
	}
	if c.Scheduler.ExpireInterval <= 0 {
		return fmt.Errorf("config: scheduler.expire_interval %s must be positive", c.Scheduler.ExpireInterval)
	}
	return nil
}

type Config struct {
	Log       LogConfig         `toml:"log"`
	DB        database.DBConfig `toml:"db"`
	Engine    matching.Config   `toml:"engine"`
	Model     ModelConfig       `toml:"model"`
	Feedback  FeedbackConfig    `toml:"feedback"`
	Scheduler SchedulerConfig   `toml:"scheduler"`
	Legacy    LegacyConfig      `toml:"legacy"`
}

type LogConfig struct {
	Level slog.Level `toml:"level"`
}

type ModelConfig struct {
	ArtifactPath string  `toml:"artifact_path"`
	Epochs       int     `toml:"epochs"`
	LearningRate float64 `toml:"learning_rate"`
}

type FeedbackConfig struct {
	MinRetrainFeedback int `toml:"min_retrain_feedback"`
}

type SchedulerConfig struct {
	RunInterval    time.Duration `toml:"run_interval"`
	ExpireInterval time.Duration `toml:"expire_interval"`
}

type LegacyConfig struct {
	MongoURI string `toml:"mongo_uri"`
	Database string `toml:"database"`
}
