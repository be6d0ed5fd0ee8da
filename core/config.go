package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName  string
		Build    string
		Env      string // DEV (local; default), TEST, QA, PROD
		Debug    bool
		TestMode bool
		WorkDir  string

		RollbarToken string

		Server   ServerConfig
		Database DatabaseConfig
		Auth     AuthConfig
		Redis    RedisConfig
		Mail     MailConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	AuthConfig struct {
		Issuer     string
		AccessKey  string
		RefreshKey string

		AccessTokenTTL          time.Duration // login
		RefreshedAccessTokenTTL time.Duration // token refresh
		RefreshTokenTTL         time.Duration

		MaxLoginAttempts   int
		LoginAttemptWindow time.Duration
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int
	}

	MailConfig struct {
		DefaultFromEmail string
		SendgridApiKey   string
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c MailConfig) DefaultFrom() mail.Address {
	addr, err := mail.ParseAddress(c.DefaultFromEmail)
	if err != nil {
		return mail.Address{Address: c.DefaultFromEmail}
	}
	return *addr
}

// NewConfig reads the configuration from the environment, falling back to defaults.
// Values in `config/.env.<env>` are loaded first, if the file exists.
func NewConfig() *Config {
	v := viper.New()

	v.SetDefault("appName", "Academia")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("rollbarToken", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverReadTimeout", 5*time.Second)
	v.SetDefault("serverWriteTimeout", 10*time.Second)
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("serverDisableReqLogs", false)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "academia")
	v.SetDefault("dbUser", "academia")
	v.SetDefault("dbPassword", "academia")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("authIssuer", "Academia")
	v.SetDefault("authAccessKey", "hc8#2m!x0v@q9u$wa6)d=k1(pz^r4jtb")
	v.SetDefault("authRefreshKey", "r!7bq0w&j3c*uyk2=h9)s$e5(gmx^na8")
	v.SetDefault("authAccessTokenTTL", 2*time.Hour)
	v.SetDefault("authRefreshedAccessTokenTTL", 15*time.Minute)
	v.SetDefault("authRefreshTokenTTL", 7*24*time.Hour)
	v.SetDefault("authMaxLoginAttempts", 5)
	v.SetDefault("authLoginAttemptWindow", 15*time.Minute)

	v.SetDefault("redisAddress", "")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)

	v.SetDefault("defaultFromEmail", "Academia <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		WorkDir:      wd,
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			Address:         v.GetString("serverAddress"),
			DebugHost:       v.GetString("serverDebugHost"),
			ReadTimeout:     v.GetDuration("serverReadTimeout"),
			WriteTimeout:    v.GetDuration("serverWriteTimeout"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
			DisableReqLogs:  v.GetBool("serverDisableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Auth: AuthConfig{
			Issuer:                  v.GetString("authIssuer"),
			AccessKey:               v.GetString("authAccessKey"),
			RefreshKey:              v.GetString("authRefreshKey"),
			AccessTokenTTL:          v.GetDuration("authAccessTokenTTL"),
			RefreshedAccessTokenTTL: v.GetDuration("authRefreshedAccessTokenTTL"),
			RefreshTokenTTL:         v.GetDuration("authRefreshTokenTTL"),
			MaxLoginAttempts:        v.GetInt("authMaxLoginAttempts"),
			LoginAttemptWindow:      v.GetDuration("authLoginAttemptWindow"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redisAddress"),
			Password: v.GetString("redisPassword"),
			DB:       v.GetInt("redisDB"),
		},
		Mail: MailConfig{
			DefaultFromEmail: v.GetString("defaultFromEmail"),
			SendgridApiKey:   v.GetString("sendgridApiKey"),
		},
	}

	if err := conf.validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	return conf
}

func (c *Config) validate() error {
	if c.Auth.AccessKey == "" || c.Auth.RefreshKey == "" {
		return fmt.Errorf("auth keys must be set")
	}
	if c.Auth.AccessKey == c.Auth.RefreshKey {
		return fmt.Errorf("access and refresh keys must differ")
	}
	return nil
}
