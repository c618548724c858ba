package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AuthRateLimit             float64 // requests per second per client
		AuthRateBurst             int
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	PendingConfig struct {
		SessionTTL        time.Duration
		MaxSessions       int
		CommitConcurrency int
	}

	TutorConfig struct {
		Provider  string // echo | bedrock
		Region    string
		ModelID   string
		MaxTokens int
	}

	RemindersConfig struct {
		Schedule string // cron spec
		Window   time.Duration
	}

	Config struct {
		AppName                   string
		Build                     string
		Env                       string
		Debug                     bool
		TestMode                  bool
		WorkDir                   string
		SecretKey                 string
		FrontendBaseURL           string
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration

		Server    ServerConfig
		Database  DatabaseConfig
		Pending   PendingConfig
		Tutor     TutorConfig
		Reminders RemindersConfig

		defaultFromEmail string
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
}

// NewConfig loads the configuration of the current ENV: DEV (local; default), TEST, QA, PROD.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "OpenStud")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "h4!x8-w9)k2#qz&dm3$t+vb5=op7(jc*e6@yu1^rfs%ln0g")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.authRateLimit", 1.0)
	v.SetDefault("server.authRateBurst", 5)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "openstud")
	v.SetDefault("database.user", "openstud")
	v.SetDefault("database.password", "openstud")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("pending.sessionTTL", 4*time.Hour)
	v.SetDefault("pending.maxSessions", 10000)
	v.SetDefault("pending.commitConcurrency", 4)

	v.SetDefault("tutor.provider", "echo")
	v.SetDefault("tutor.region", "us-east-1")
	v.SetDefault("tutor.modelID", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("tutor.maxTokens", 1024)

	v.SetDefault("reminders.schedule", "0 7 * * *")
	v.SetDefault("reminders.window", 48*time.Hour)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:                   v.GetString("appName"),
		Build:                     v.GetString("build"),
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		WorkDir:                   workDir,
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			AuthRateLimit:             v.GetFloat64("server.authRateLimit"),
			AuthRateBurst:             v.GetInt("server.authRateBurst"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Pending: PendingConfig{
			SessionTTL:        v.GetDuration("pending.sessionTTL"),
			MaxSessions:       v.GetInt("pending.maxSessions"),
			CommitConcurrency: v.GetInt("pending.commitConcurrency"),
		},
		Tutor: TutorConfig{
			Provider:  v.GetString("tutor.provider"),
			Region:    v.GetString("tutor.region"),
			ModelID:   v.GetString("tutor.modelID"),
			MaxTokens: v.GetInt("tutor.maxTokens"),
		},
		Reminders: RemindersConfig{
			Schedule: v.GetString("reminders.schedule"),
			Window:   v.GetDuration("reminders.window"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns a Config suitable for unit tests; nothing is read from the environment.
func NewTestConfig() *Config {
	return &Config{
		AppName:                   "OpenStud",
		Build:                     "test",
		Env:                       "TEST",
		TestMode:                  true,
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: ServerConfig{
			Host:                      ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			AuthRateLimit:             100,
			AuthRateBurst:             100,
		},
		Pending: PendingConfig{
			SessionTTL:        time.Hour,
			MaxSessions:       100,
			CommitConcurrency: 2,
		},
		Tutor:            TutorConfig{Provider: "echo", MaxTokens: 256},
		Reminders:        RemindersConfig{Schedule: "0 7 * * *", Window: 48 * time.Hour},
		defaultFromEmail: "noreply@localhost",
	}
}
