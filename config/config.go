package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Load initializes the configuration with viper and installs the global logger
func Load() {
	envErr := godotenv.Load()

	SetDefaults()

	viper.AutomaticEnv()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	configErr := viper.ReadInConfig()

	// the log level may itself come from the config file
	InitLogging(viper.GetString("log.level"), viper.GetBool("log.development"))
	log := zap.S().Named("config")

	if envErr != nil {
		log.Info("No .env file found or error loading it. Using default values and environment variables.")
	}

	if configErr != nil {
		if _, ok := configErr.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Error reading config file: %v", configErr)
		}
		log.Info("Config file not found, using default values and environment variables")
	} else {
		log.Infow("Using config file", "path", viper.ConfigFileUsed())
	}

	if missing := MissingRequired(); len(missing) > 0 {
		log.Fatalf("Required configuration variables not set: %s", strings.Join(missing, ", "))
	}
}

// SetDefaults registers every default value
func SetDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("db.path", "./data/beacon.db")
	// seconds, the batch trigger lifts it for its own response
	viper.SetDefault("server.write_timeout", 30)

	viper.SetDefault("discord.api_url", "https://discord.com/api/v10")
	viper.SetDefault("discord.token_url", "https://discord.com/api/v10/oauth2/token")
	viper.SetDefault("discord.requests_per_second", 5)

	// seconds between scheduled batch runs, 0 disables the scheduler
	viper.SetDefault("refresh.interval", 300)
	viper.SetDefault("refresh.concurrency", 1)
	viper.SetDefault("refresh.batch_timeout", 0)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
}

// required settings
var requiredVars = []string{"discord.client_id", "discord.client_secret", "api.password"}

// MissingRequired lists required settings that are not set
func MissingRequired() []string {
	missing := []string{}
	for _, v := range requiredVars {
		if !viper.IsSet(v) || viper.GetString(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// Refresh holds the batch refresh job settings
type Refresh struct {
	Interval     time.Duration
	Concurrency  int
	BatchTimeout time.Duration
}

// RefreshSettings reads the batch refresh settings
func RefreshSettings() Refresh {
	concurrency := viper.GetInt("refresh.concurrency")
	if concurrency < 1 {
		concurrency = 1
	}
	return Refresh{
		Interval:     time.Duration(viper.GetInt("refresh.interval")) * time.Second,
		Concurrency:  concurrency,
		BatchTimeout: time.Duration(viper.GetInt("refresh.batch_timeout")) * time.Second,
	}
}

// WriteTimeout is the response write timeout of every route but the batch trigger
func WriteTimeout() time.Duration {
	return time.Duration(viper.GetInt("server.write_timeout")) * time.Second
}
