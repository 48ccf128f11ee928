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
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugAddress              string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
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
		Debug         bool
	}

	ReportConfig struct {
		CacheTTL time.Duration
	}

	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridApiKey   string
		RedisAddress     string
		RedisPassword    string
		Server           ServerConfig
		Database         DatabaseConfig
		Report           ReportConfig
	}
)

func (dc DatabaseConfig) Address() string {
	return dc.Host + ":" + dc.Port
}

// NewConfig loads the configuration of the current environment.
// Values are read from the environment (prefixed by the env name, e.g. DEV_DATABASE_HOST),
// optionally seeded by `config/.env.<env>`.
func NewConfig() *Config {
	conf := viper.New()
	setDefaults(conf)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return build(conf, env)
}

func setDefaults(conf *viper.Viper) {
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("appName", "Alama")
	conf.SetDefault("build", "develop")
	conf.SetDefault("secretKey", "k2f9-q)vbn$+41=as&yrt7(d!p)#*m1(#zu4x^$kqew8vnt")
	conf.SetDefault("frontendBaseURL", "http://localhost:8080")
	conf.SetDefault("defaultFromEmail", "Alama <noreply@localhost>")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("redis.address", "")
	conf.SetDefault("redis.password", "")

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugAddress", ":4000")
	conf.SetDefault("server.readTimeout", 5*time.Second)
	conf.SetDefault("server.writeTimeout", 5*time.Second)
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("server.disableReqLogs", false)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "alama")
	conf.SetDefault("database.user", "alama")
	conf.SetDefault("database.password", "alama")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "postgres")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("database.debug", false)

	conf.SetDefault("report.cacheTTL", 10*time.Minute)
}

func build(conf *viper.Viper, env string) *Config {
	fromEmail, err := mail.ParseAddress(conf.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatal(fmt.Errorf("config.defaultFromEmail: %v", err))
	}

	return &Config{
		AppName:          conf.GetString("appName"),
		Env:              env,
		Build:            conf.GetString("build"),
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		SecretKey:        conf.GetString("secretKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: *fromEmail,
		RollbarToken:     conf.GetString("rollbarToken"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		RedisAddress:     conf.GetString("redis.address"),
		RedisPassword:    conf.GetString("redis.password"),
		Server: ServerConfig{
			Host:                      conf.GetString("server.host"),
			Address:                   conf.GetString("server.address"),
			DebugAddress:              conf.GetString("server.debugAddress"),
			ReadTimeout:               conf.GetDuration("server.readTimeout"),
			WriteTimeout:              conf.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:            conf.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
			Debug:         conf.GetBool("database.debug"),
		},
		Report: ReportConfig{
			CacheTTL: conf.GetDuration("report.cacheTTL"),
		},
	}
}
