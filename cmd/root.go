package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "resume-fit"
)

type Config struct {
	Engine    *EngineConfig    `mapstructure:"engine"`
	Embedding *EmbeddingConfig `mapstructure:"embedding"`
	Cache     *CacheConfig     `mapstructure:"cache"`
	Keywords  *KeywordsConfig  `mapstructure:"keywords"`
	AI        *AIConfig        `mapstructure:"ai"`
	Store     *StoreConfig     `mapstructure:"store"`
	Worker    *WorkerConfig    `mapstructure:"worker"`
}

type EngineConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxChars     int           `mapstructure:"max-chars"`
	ChunkWords   int           `mapstructure:"chunk-words"`
	ChunkOverlap int           `mapstructure:"chunk-overlap"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	CacheDir   string `mapstructure:"cache-dir"`
	Workers    int    `mapstructure:"workers"`
	BaseURL    string `mapstructure:"base-url"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type CacheConfig struct {
	Size  int           `mapstructure:"size"`
	TTL   time.Duration `mapstructure:"ttl"`
	Redis *RedisConfig  `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	PasswordFile string        `mapstructure:"password-file"`
	DB           int           `mapstructure:"db"`
	TTL          time.Duration `mapstructure:"ttl"`
	Prefix       string        `mapstructure:"prefix"`
}

type KeywordsConfig struct {
	Linguistic bool                `mapstructure:"linguistic"`
	Synonyms   map[string][]string `mapstructure:"synonyms"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type StoreConfig struct {
	Driver  string `mapstructure:"driver"`
	Path    string `mapstructure:"path"`
	DSNFile string `mapstructure:"dsn-file"`
}

type WorkerConfig struct {
	RabbitMQURLFile string    `mapstructure:"rabbitmq-url-file"`
	Queue           string    `mapstructure:"queue"`
	Exchange        string    `mapstructure:"exchange"`
	Concurrency     int       `mapstructure:"concurrency"`
	Prefetch        int       `mapstructure:"prefetch"`
	MetricsAddr     string    `mapstructure:"metrics-addr"`
	S3              *S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	AccessKeyFile string `mapstructure:"access-key-file"`
	SecretKeyFile string `mapstructure:"secret-key-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-fit scores how well a resume matches a job description",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// Environment variables holding secret file paths.
var envBindings = map[string]string{
	"embedding.api-key-file":    "EMBEDDING_API_KEY_FILE",
	"ai.gemini.api-key-file":    "GEMINI_API_KEY_FILE",
	"store.dsn-file":            "DB_URL_FILE",
	"cache.redis.password-file": "REDIS_PASSWORD_FILE",
	"worker.rabbitmq-url-file":  "RABBITMQ_URL_FILE",
	"worker.s3.access-key-file": "S3_ACCESS_KEY_FILE",
	"worker.s3.secret-key-file": "S3_SECRET_KEY_FILE",
}

func init() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-fit.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("engine.timeout", "60s")
	viper.SetDefault("engine.max-chars", 2000)
	viper.SetDefault("engine.chunk-words", 512)
	viper.SetDefault("engine.chunk-overlap", 50)
	viper.SetDefault("embedding.provider", "fastembed")
	viper.SetDefault("embedding.workers", 4)
	viper.SetDefault("cache.size", 1024)
	viper.SetDefault("keywords.linguistic", true)
	viper.SetDefault("store.driver", "file")
	viper.SetDefault("store.path", "analyses.json")
	viper.SetDefault("worker.concurrency", 3)
}

func initConfig() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless given explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
