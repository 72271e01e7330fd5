package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Brownie44l1/birdid/internal/confidence"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "BIRDID"

type Config struct {
	Environment string                `mapstructure:"environment" validate:"required,oneof=development production test"`
	Server      ServerConfig          `mapstructure:"server"`
	Model       ModelConfig           `mapstructure:"model"`
	Confidence  confidence.Thresholds `mapstructure:"confidence"`
	Dataset     DatasetConfig         `mapstructure:"dataset"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes" validate:"gt=0"`
	MaxUploadPixels int64  `mapstructure:"max_upload_pixels" validate:"gt=0"`
}

type ModelConfig struct {
	Dir         string `mapstructure:"dir" validate:"required"`
	Name        string `mapstructure:"name" validate:"required"`
	OnnxLibrary string `mapstructure:"onnx_library"`
}

type DatasetConfig struct {
	Root             string  `mapstructure:"root" validate:"required"`
	ValidationSplit  float64 `mapstructure:"validation_split" validate:"gt=0,lt=1"`
	Seed             int64   `mapstructure:"seed"`
	MinTrain         int     `mapstructure:"min_train" validate:"gte=0"`
	RecommendedTrain int     `mapstructure:"recommended_train" validate:"gtefield=MinTrain"`
	MinTest          int     `mapstructure:"min_test" validate:"gte=0"`
}

var validate = validator.New()

// SetDefaults registers every key on v so that environment variables bind
// even when no config file is present.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.max_upload_pixels", 40_000_000)

	v.SetDefault("model.dir", "models")
	v.SetDefault("model.name", "bird_classifier")
	v.SetDefault("model.onnx_library", "")

	th := confidence.Default()
	v.SetDefault("confidence.high", th.High)
	v.SetDefault("confidence.medium", th.Medium)

	v.SetDefault("dataset.root", "data")
	v.SetDefault("dataset.validation_split", 0.2)
	v.SetDefault("dataset.seed", 42)
	v.SetDefault("dataset.min_train", 20)
	v.SetDefault("dataset.recommended_train", 50)
	v.SetDefault("dataset.min_test", 10)
}

// Load layers defaults, an optional .env file, an optional YAML config file
// and BIRDID_* environment variables, in increasing precedence.
func Load(v *viper.Viper, configFile, envFile string) (*Config, error) {
	SetDefaults(v)

	explicitEnv := envFile != ""
	if !explicitEnv {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else if explicitEnv || !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat env file: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`, `-`, `_`))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName("birdid")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
