package config

import (
	"time"

	"github.com/spf13/viper"
)

// Clearing policies for endpoints that drop the credential on failure.
const (
	ClearOnAnyFailure  = "any"
	ClearOnAuthFailure = "auth"
)

type Config struct {
	// App mode & server
	Mode       string
	ServerAddr string
	LogLevel   string

	// Backend API
	APIBaseURL string
	APITimeout time.Duration

	// Credential cookie
	CookieName       string
	CookieSecure     bool
	CredentialPolicy string
	LoginRateLimit   float64
	ShutdownTimeout  time.Duration

	// Session cache
	SessionBackend string
	SessionTTL     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	ActivityEnabled bool

	// Kafka
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaPartition int
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration

	// Cassandra
	CassandraHost     string
	CassandraKeyspace string
	CassandraUsername string
	CassandraPassword string
	CassandraTimeout  time.Duration
	CassandraDC       string
	MigrationsPath    string
}

var cfg *Config

// Init loads the config using Viper and returns it
func Init() *Config {
	viper.SetDefault("MODE", "server")
	viper.SetDefault("SERVER_ADDR", ":3000")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("API_BASE_URL", "http://localhost:8000")
	viper.SetDefault("API_TIMEOUT", "10s")

	viper.SetDefault("COOKIE_NAME", "access-token")
	viper.SetDefault("COOKIE_SECURE", false)
	viper.SetDefault("CREDENTIAL_CLEAR_POLICY", ClearOnAnyFailure)
	viper.SetDefault("LOGIN_RATE_LIMIT", 20)
	viper.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	viper.SetDefault("SESSION_BACKEND", "memory")
	viper.SetDefault("SESSION_TTL", "30m")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("ACTIVITY_ENABLED", false)
	viper.SetDefault("KAFKA_BROKER", "localhost:29092")
	viper.SetDefault("KAFKA_TOPIC", "twotty-activity")
	viper.SetDefault("KAFKA_GROUP_ID", "activity-worker")
	viper.SetDefault("KAFKA_PARTITION", 0)
	viper.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	viper.SetDefault("CASSANDRA_HOST", "localhost")
	viper.SetDefault("CASSANDRA_KEYSPACE", "twotty")
	viper.SetDefault("CASSANDRA_TIMEOUT", "10s")
	viper.SetDefault("MIGRATIONS_PATH", "./migrations/cassandra")
	// Optional: Cassandra username/password/DC and Redis password can be empty

	// Load env variables
	viper.AutomaticEnv()

	// Optional config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	_ = viper.ReadInConfig() // ignore error if no file

	cfg = &Config{
		Mode:              viper.GetString("MODE"),
		ServerAddr:        viper.GetString("SERVER_ADDR"),
		LogLevel:          viper.GetString("LOG_LEVEL"),
		APIBaseURL:        viper.GetString("API_BASE_URL"),
		APITimeout:        parseDuration(viper.GetString("API_TIMEOUT"), 10*time.Second),
		CookieName:        viper.GetString("COOKIE_NAME"),
		CookieSecure:      viper.GetBool("COOKIE_SECURE"),
		CredentialPolicy:  parsePolicy(viper.GetString("CREDENTIAL_CLEAR_POLICY")),
		LoginRateLimit:    viper.GetFloat64("LOGIN_RATE_LIMIT"),
		ShutdownTimeout:   parseDuration(viper.GetString("SHUTDOWN_TIMEOUT"), 10*time.Second),
		SessionBackend:    viper.GetString("SESSION_BACKEND"),
		SessionTTL:        parseDuration(viper.GetString("SESSION_TTL"), 30*time.Minute),
		RedisAddr:         viper.GetString("REDIS_ADDR"),
		RedisPassword:     viper.GetString("REDIS_PASSWORD"),
		RedisDB:           viper.GetInt("REDIS_DB"),
		ActivityEnabled:   viper.GetBool("ACTIVITY_ENABLED"),
		KafkaBroker:       viper.GetString("KAFKA_BROKER"),
		KafkaTopic:        viper.GetString("KAFKA_TOPIC"),
		KafkaGroupID:      viper.GetString("KAFKA_GROUP_ID"),
		KafkaPartition:    viper.GetInt("KAFKA_PARTITION"),
		KafkaReadTO:       parseDuration(viper.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:      parseDuration(viper.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		CassandraHost:     viper.GetString("CASSANDRA_HOST"),
		CassandraKeyspace: viper.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername: viper.GetString("CASSANDRA_USERNAME"),
		CassandraPassword: viper.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:  parseDuration(viper.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:       viper.GetString("CASSANDRA_DC"),
		MigrationsPath:    viper.GetString("MIGRATIONS_PATH"),
	}

	return cfg
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// parsePolicy falls back to the "any" policy for unknown values.
func parsePolicy(s string) string {
	if s == ClearOnAuthFailure {
		return ClearOnAuthFailure
	}
	return ClearOnAnyFailure
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}
