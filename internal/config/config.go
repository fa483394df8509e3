// Package config assembles the service configuration from, in increasing
// priority: built-in defaults, a JSON file, environment variables (a .env
// file is honoured) and command line flags.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/patric-chuzhbe/blogsbook/internal/auth"
)

// Config holds every tunable of the service.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	GRPCAddr            string        `env:"GRPC_ADDRESS" validate:"omitempty,hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" validate:"loglevel"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" validate:"omitempty,filepath"`
	DatabaseDSN         string        `env:"DATABASE_DSN"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" validate:"gt=0"`
	SecretPolicy        string        `env:"SECRET_POLICY" validate:"secretpolicy"`
	AccessTokenBytes    int           `env:"ACCESS_TOKEN_BYTES" validate:"gte=64"`
	BearerTokenTTL      time.Duration `env:"BEARER_TOKEN_TTL" validate:"gte=0"`
	TrustedSubnet       string        `env:"TRUSTED_SUBNET" validate:"omitempty,cidr"`
	SweepInterval       time.Duration `env:"SWEEP_INTERVAL" validate:"gt=0"`
	SweepQueueCapacity  int           `env:"SWEEP_QUEUE_CAPACITY" validate:"gt=0"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" validate:"gt=0"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" validate:"gt=0"`
	ConfigFile          string        `env:"CONFIG"`
}

var defaultConfig = Config{
	RunAddr:             ":3000",
	LogLevel:            "info",
	DBConnectionTimeout: 10 * time.Second,
	SecretPolicy:        auth.PolicyAccessToken,
	AccessTokenBytes:    auth.DefaultAccessTokenBytes,
	SweepInterval:       5 * time.Second,
	SweepQueueCapacity:  1024,
	HTTPReadTimeout:     15 * time.Second,
	HTTPWriteTimeout:    15 * time.Second,
}

// Duration decodes JSON strings such as "10s" into a time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed

	return nil
}

type fileConfig struct {
	RunAddr             string   `json:"server_address"`
	GRPCAddr            string   `json:"grpc_address"`
	LogLevel            string   `json:"log_level"`
	DBFileName          string   `json:"file_storage_path"`
	DatabaseDSN         string   `json:"database_dsn"`
	DBConnectionTimeout Duration `json:"db_connection_timeout"`
	SecretPolicy        string   `json:"secret_policy"`
	AccessTokenBytes    int      `json:"access_token_bytes"`
	BearerTokenTTL      Duration `json:"bearer_token_ttl"`
	TrustedSubnet       string   `json:"trusted_subnet"`
	SweepInterval       Duration `json:"sweep_interval"`
	SweepQueueCapacity  int      `json:"sweep_queue_capacity"`
	HTTPReadTimeout     Duration `json:"http_read_timeout"`
	HTTPWriteTimeout    Duration `json:"http_write_timeout"`
}

func (f *fileConfig) toConfig() Config {
	return Config{
		RunAddr:             f.RunAddr,
		GRPCAddr:            f.GRPCAddr,
		LogLevel:            f.LogLevel,
		DBFileName:          f.DBFileName,
		DatabaseDSN:         f.DatabaseDSN,
		DBConnectionTimeout: f.DBConnectionTimeout.Duration,
		SecretPolicy:        f.SecretPolicy,
		AccessTokenBytes:    f.AccessTokenBytes,
		BearerTokenTTL:      f.BearerTokenTTL.Duration,
		TrustedSubnet:       f.TrustedSubnet,
		SweepInterval:       f.SweepInterval.Duration,
		SweepQueueCapacity:  f.SweepQueueCapacity,
		HTTPReadTimeout:     f.HTTPReadTimeout.Duration,
		HTTPWriteTimeout:    f.HTTPWriteTimeout.Duration,
	}
}

// applyDefaults copies every non-zero field of source into target.
func applyDefaults(target *Config, source Config) {
	if source.RunAddr != "" {
		target.RunAddr = source.RunAddr
	}
	if source.GRPCAddr != "" {
		target.GRPCAddr = source.GRPCAddr
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.DBFileName != "" {
		target.DBFileName = source.DBFileName
	}
	if source.DatabaseDSN != "" {
		target.DatabaseDSN = source.DatabaseDSN
	}
	if source.DBConnectionTimeout != 0 {
		target.DBConnectionTimeout = source.DBConnectionTimeout
	}
	if source.SecretPolicy != "" {
		target.SecretPolicy = source.SecretPolicy
	}
	if source.AccessTokenBytes != 0 {
		target.AccessTokenBytes = source.AccessTokenBytes
	}
	if source.BearerTokenTTL != 0 {
		target.BearerTokenTTL = source.BearerTokenTTL
	}
	if source.TrustedSubnet != "" {
		target.TrustedSubnet = source.TrustedSubnet
	}
	if source.SweepInterval != 0 {
		target.SweepInterval = source.SweepInterval
	}
	if source.SweepQueueCapacity != 0 {
		target.SweepQueueCapacity = source.SweepQueueCapacity
	}
	if source.HTTPReadTimeout != 0 {
		target.HTTPReadTimeout = source.HTTPReadTimeout
	}
	if source.HTTPWriteTimeout != 0 {
		target.HTTPWriteTimeout = source.HTTPWriteTimeout
	}
	if source.ConfigFile != "" {
		target.ConfigFile = source.ConfigFile
	}
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[fieldLevel.Field().String()]
}

func validateSecretPolicy(fieldLevel validator.FieldLevel) bool {
	switch fieldLevel.Field().String() {
	case auth.PolicyPassword, auth.PolicyAccessToken:
		return true
	}

	return false
}

func (c *Config) validate() error {
	validate := validator.New()

	if err := validate.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}
	if err := validate.RegisterValidation("filepath", validateFilePath); err != nil {
		return err
	}
	if err := validate.RegisterValidation("secretpolicy", validateSecretPolicy); err != nil {
		return err
	}

	return validate.Struct(c)
}

func loadJSONFile(fileName string) (Config, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return Config{}, fmt.Errorf("in internal/config/config.go/loadJSONFile(): error while `os.ReadFile()` calling: %w", err)
	}
	var fromFile fileConfig
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return Config{}, fmt.Errorf("in internal/config/config.go/loadJSONFile(): error while `json.Unmarshal()` calling: %w", err)
	}

	return fromFile.toConfig(), nil
}

// InitOption tunes New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
	args                []string
}

// WithDisableFlagsParsing makes New ignore the command line.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// WithArgs makes New parse args instead of os.Args[1:].
func WithArgs(args []string) InitOption {
	return func(options *initOptions) {
		options.args = args
	}
}

func parseFlags(args []string) (Config, error) {
	var fromFlags Config
	flagSet := flag.NewFlagSet("blogsbook", flag.ContinueOnError)
	flagSet.StringVar(&fromFlags.RunAddr, "a", "", "address and port to run the HTTP server")
	flagSet.StringVar(&fromFlags.GRPCAddr, "g", "", "address and port to run the gRPC server, empty disables it")
	flagSet.StringVar(&fromFlags.LogLevel, "l", "", "logger level")
	flagSet.StringVar(&fromFlags.DBFileName, "f", "", "JSON file name with database")
	flagSet.StringVar(&fromFlags.DatabaseDSN, "d", "", "a string with the database connection details")
	flagSet.StringVar(&fromFlags.SecretPolicy, "p", "", "bearer token secret policy: password or access-token")
	flagSet.DurationVar(&fromFlags.BearerTokenTTL, "ttl", 0, "bearer token lifetime, 0 for no expiry")
	flagSet.StringVar(&fromFlags.TrustedSubnet, "t", "", "CIDR allowed to call the administrative endpoints")
	flagSet.StringVar(&fromFlags.ConfigFile, "c", "", "JSON configuration file")
	if err := flagSet.Parse(args); err != nil {
		return Config{}, err
	}

	return fromFlags, nil
}

// New builds and validates the configuration.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}
	if options.args == nil && len(os.Args) > 1 {
		options.args = os.Args[1:]
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	var fromFlags Config
	if !options.disableFlagsParsing {
		var err error
		fromFlags, err = parseFlags(options.args)
		if err != nil {
			return nil, err
		}
	}

	var fromEnv Config
	if err := env.Parse(&fromEnv); err != nil {
		return nil, err
	}

	values := Config{}
	applyDefaults(&values, defaultConfig)

	configFile := fromEnv.ConfigFile
	if fromFlags.ConfigFile != "" {
		configFile = fromFlags.ConfigFile
	}
	if configFile != "" {
		fromFile, err := loadJSONFile(configFile)
		if err != nil {
			return nil, err
		}
		applyDefaults(&values, fromFile)
	}

	applyDefaults(&values, fromEnv)
	applyDefaults(&values, fromFlags)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return &values, nil
}
