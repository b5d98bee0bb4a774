package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	Server     ServerConfig
	Valkey     ValkeyConfig
	MinIO      MinIOConfig
	Queues     QueueConfig
	Containers ContainerConfig
	Databricks DatabricksConfig
	Source     SourceS3Config
	Worker     WorkerConfig

	// StorageAccount is an informational tag passed to notebook jobs so they
	// can address the backing storage account directly.
	StorageAccount string

	// ChainFile optionally points at a YAML file documenting the pipeline
	// chain; when set, workers validate it against the resolved queue and
	// container names at startup.
	ChainFile string

	// ManagedHostingStorage mirrors the platform flag that controls whether
	// hosting metadata lives in platform-managed storage. Surfaced for the
	// deployment tooling; the pipeline itself never reads it after startup.
	ManagedHostingStorage bool
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// QueueConfig names the four stage-transition queues and the transport's
// redelivery policy. Queue names are part of the deployed configuration and
// never hardcoded in handler logic.
type QueueConfig struct {
	Extract   string
	Transform string
	Load      string
	Train     string

	MaxAttempts       int64
	VisibilityTimeout time.Duration
}

// ContainerConfig names the blob containers, one per artifact class.
type ContainerConfig struct {
	Landing     string
	Raw         string
	Datasets    string
	Models      string
	FinalOutput string
}

type DatabricksConfig struct {
	Host          string
	Token         string
	NotebookPath  string
	TrainingJobID int64
	RunTimeout    time.Duration
	PollInterval  time.Duration

	// Cluster sizing hints forwarded on run submission. MinWorkers and
	// MaxWorkers both zero means a single-node cluster.
	NodeType     string
	SparkVersion string
	MinWorkers   int
	MaxWorkers   int
}

// SourceS3Config points the Extract stage at an upstream S3-compatible
// bucket. When Bucket is empty, Extract reads from the landing container
// instead.
type SourceS3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

type WorkerConfig struct {
	ID string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SECS", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SECS", 60)) * time.Second,
		},
		Valkey: ValkeyConfig{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			DB:       getEnvInt("VALKEY_DB", 0),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "conveyor"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "conveyor123"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Queues: QueueConfig{
			Extract:           getEnv("EXTRACT_QUEUE", "extract-queue"),
			Transform:         getEnv("TRANSFORM_QUEUE", "transform-queue"),
			Load:              getEnv("LOAD_QUEUE", "load-queue"),
			Train:             getEnv("TRAIN_QUEUE", "train-queue"),
			MaxAttempts:       int64(getEnvInt("QUEUE_MAX_ATTEMPTS", 5)),
			VisibilityTimeout: time.Duration(getEnvInt("QUEUE_VISIBILITY_TIMEOUT_SECS", 300)) * time.Second,
		},
		Containers: ContainerConfig{
			Landing:     getEnv("LANDING_CONTAINER", "landing"),
			Raw:         getEnv("RAW_CONTAINER", "raw-data"),
			Datasets:    getEnv("DATASETS_CONTAINER", "datasets"),
			Models:      getEnv("MODELS_CONTAINER", "models"),
			FinalOutput: getEnv("FINAL_OUTPUT_CONTAINER", "final-output"),
		},
		Databricks: DatabricksConfig{
			Host:          getEnv("DATABRICKS_HOST", ""),
			Token:         getEnv("DATABRICKS_TOKEN", ""),
			NotebookPath:  getEnv("DATABRICKS_NOTEBOOK_PATH", ""),
			TrainingJobID: int64(getEnvInt("DATABRICKS_TRAINING_JOB_ID", 0)),
			RunTimeout:    time.Duration(getEnvInt("DATABRICKS_RUN_TIMEOUT_SECS", 1800)) * time.Second,
			PollInterval:  time.Duration(getEnvInt("DATABRICKS_POLL_INTERVAL_SECS", 30)) * time.Second,
			NodeType:      getEnv("DATABRICKS_NODE_TYPE", "Standard_F4s_v2"),
			SparkVersion:  getEnv("DATABRICKS_SPARK_VERSION", "13.3.x-scala2.12"),
			MinWorkers:    getEnvInt("DATABRICKS_MIN_WORKERS", 0),
			MaxWorkers:    getEnvInt("DATABRICKS_MAX_WORKERS", 0),
		},
		Source: SourceS3Config{
			Bucket:   getEnv("SOURCE_S3_BUCKET", ""),
			Region:   getEnv("SOURCE_S3_REGION", ""),
			Endpoint: getEnv("SOURCE_S3_ENDPOINT", ""),
			Prefix:   getEnv("SOURCE_S3_PREFIX", ""),
		},
		Worker: WorkerConfig{
			ID: getEnv("WORKER_ID", defaultWorkerID()),
		},
		StorageAccount:        getEnv("STORAGE_ACCOUNT", ""),
		ChainFile:             getEnv("PIPELINE_CHAIN_FILE", ""),
		ManagedHostingStorage: getEnvBool("MANAGED_HOSTING_STORAGE", true),
	}

	if cfg.Queues.MaxAttempts < 1 {
		return nil, fmt.Errorf("QUEUE_MAX_ATTEMPTS must be at least 1, got %d", cfg.Queues.MaxAttempts)
	}

	return cfg, nil
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
