package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Database Database
	Forms    Forms
	Auth     Auth
	Export   Export
	Tracing  Tracing
	LogLevel string
}

type Server struct {
	Port        string
	GinMode     string
	CORSOrigins []string
}

type Database struct {
	Driver   string
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type Forms struct {
	BaseURL string
	Timeout time.Duration
}

type Auth struct {
	JWTSecret string `json:"-"`
}

type Tracing struct {
	Endpoint    string
	ServiceName string
}

type Export struct {
	S3Bucket string
	S3Region string
	S3Prefix string
}

// DefaultCORSOrigins are the local frontend dev servers.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8003")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_URL", "resp.db")
	viper.SetDefault("DATABASE_PORT", "5432")
	viper.SetDefault("FORMS_API", "http://forms-service:8000")
	viper.SetDefault("FORMS_TIMEOUT", "5s")
	viper.SetDefault("EXPORT_S3_PREFIX", "exports/")
	viper.SetDefault("OTEL_SERVICE_NAME", "responses-service")

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Server.GinMode = strings.ToLower(viper.GetString("GIN_MODE"))
	switch config.Server.GinMode {
	case "debug", "release", "test":
	default:
		log.Warn().Str("gin_mode", config.Server.GinMode).Msg("Unknown GIN_MODE, using debug")
		config.Server.GinMode = "debug"
	}
	config.Server.CORSOrigins = ParseOrigins(viper.GetString("CORS_ORIGINS"))
	config.LogLevel = viper.GetString("LOG_LEVEL")

	config.Database.Driver = strings.ToLower(viper.GetString("DATABASE_DRIVER"))
	config.Database.URL = viper.GetString("DATABASE_URL")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Forms.BaseURL = strings.TrimRight(viper.GetString("FORMS_API"), "/")
	config.Forms.Timeout = viper.GetDuration("FORMS_TIMEOUT")
	if config.Forms.Timeout <= 0 {
		config.Forms.Timeout = 5 * time.Second
	}

	config.Auth.JWTSecret = viper.GetString("JWT_SECRET")

	config.Export.S3Bucket = viper.GetString("EXPORT_S3_BUCKET")
	config.Export.S3Region = viper.GetString("EXPORT_S3_REGION")
	if config.Export.S3Region == "" {
		config.Export.S3Region = viper.GetString("AWS_REGION")
	}
	config.Export.S3Prefix = viper.GetString("EXPORT_S3_PREFIX")

	config.Tracing.Endpoint = viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")
	config.Tracing.ServiceName = viper.GetString("OTEL_SERVICE_NAME")

	log.Info().
		Str("port", config.Server.Port).
		Str("db_driver", config.Database.Driver).
		Str("forms_api", config.Forms.BaseURL).
		Strs("cors_origins", config.Server.CORSOrigins).
		Bool("jwt_verification", config.Auth.JWTSecret != "").
		Str("export_bucket", config.Export.S3Bucket).
		Msg("Config loaded")
	return &config, nil
}

// ParseOrigins splits a comma separated origin list. An empty list or "*"
// falls back to DefaultCORSOrigins.
func ParseOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		return append([]string(nil), DefaultCORSOrigins...)
	}
	return origins
}
