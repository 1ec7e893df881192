package config

// Config is the top-level YAML structure.
type Config struct {
	Version   string        `yaml:"version"`
	Server    ServerConf    `yaml:"server"`
	Log       LogConf       `yaml:"log"`
	Engine    EngineConf    `yaml:"engine"`
	Artifacts ArtifactsConf `yaml:"artifacts"`
	Geo       GeoConf       `yaml:"geo"`
	Features  FeaturesConf  `yaml:"features"`
	Training  TrainingConf  `yaml:"training"`
}

// ServerConf holds HTTP listener settings.
type ServerConf struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	IdleTimeoutSec  int    `yaml:"idle_timeout_sec"`
	MaxBatchSize    int    `yaml:"max_batch_size"`
}

// LogConf selects the slog handler.
type LogConf struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queue_depth"`
	TimeoutMs  int `yaml:"timeout_ms"`
}

// ArtifactsConf says where the model artifacts live.
type ArtifactsConf struct {
	Backend      string `yaml:"backend"` // local, s3
	Dir          string `yaml:"dir"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// GeoConf configures country resolution. Every source is optional; with none
// configured, transactions without a country encode as Unknown.
type GeoConf struct {
	IPRangesCSV   string `yaml:"ip_ranges_csv"`
	MaxMindDB     string `yaml:"maxmind_db"`
	RedisAddr     string `yaml:"redis_addr"`
	CacheTTLHours int    `yaml:"cache_ttl_hours"`
}

// FeaturesConf configures the feature builder.
type FeaturesConf struct {
	UnseenCategory string `yaml:"unseen_category"` // fail, unknown
}

// TrainingConf drives cmd/train.
type TrainingConf struct {
	FraudCSV     string  `yaml:"fraud_csv"`
	TestFraction float64 `yaml:"test_fraction"`
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	L2           float64 `yaml:"l2"`
	BatchSize    int     `yaml:"batch_size"`
	Seed         uint64  `yaml:"seed"`
	Workers      int     `yaml:"workers"`
	ClassWeight  string  `yaml:"class_weight"` // balanced, none
}
