package config

const (
	defaultInputDir  = "./input"
	defaultOutputDir = "./output"
	defaultTempDir   = "./temp"

	defaultAPIListen = ":8188"

	defaultEmbeddingProvider = "clipd"
	defaultEmbeddingTarget   = "http://localhost:8187"

	defaultIndexThreads   = 8
	defaultIndexBatchSize = 64

	defaultSessionCapacity = 10
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Dirs: DirsConfig{
			Input:  defaultInputDir,
			Output: defaultOutputDir,
			Temp:   defaultTempDir,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Embedding: EmbeddingConfig{
			Provider: defaultEmbeddingProvider,
			Target:   defaultEmbeddingTarget,
		},
		Index: IndexConfig{
			Accelerated: true,
			Threads:     defaultIndexThreads,
			BatchSize:   defaultIndexBatchSize,
		},
		Session: SessionConfig{
			Capacity: defaultSessionCapacity,
		},
		Watcher: WatcherConfig{
			Enabled: false,
		},
	}
}
