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
		Address                   string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	FeesConfig struct {
		Currency string
		// MaxAttempts bounds compare-and-set retries when a charge changes under a payment line.
		MaxAttempts      int
		RemindersEnabled bool
		RemindersSpec    string // cron
	}

	ResultsConfig struct {
		MaxReportedErrors int
		MaxUploadSize     int64 // bytes
	}

	GradingConfig struct {
		DefaultAcademicYear string
	}

	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		DefaultFromEmail mail.Address
		FrontendBaseURL  string
		RollbarToken     string
		SendgridAPIKey   string

		Server   ServerConfig
		Database DatabaseConfig
		Fees     FeesConfig
		Results  ResultsConfig
		Grading  GradingConfig
	}
)

func (dbConf DatabaseConfig) Address() string {
	return net.JoinHostPort(dbConf.Host, strconv.Itoa(dbConf.Port))
}

// NewConfig loads the configuration of the current environment.
// ENV selects the environment: DEV (local; default), TEST, QA, PROD.
// Values are read from `<ENV>_<KEY>` environment variables, optionally seeded from `config/.env.<env>`.
func NewConfig() *Config {
	conf := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", env == "DEV" || env == "TEST")
	conf.SetDefault("testMode", env == "TEST")
	conf.SetDefault("appName", "Shule")
	conf.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("defaultFromName", "Shule")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("frontendBaseURL", "http://localhost:8080")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridAPIKey", "")

	conf.SetDefault("serverHost", "localhost")
	conf.SetDefault("serverAddress", ":8000")
	conf.SetDefault("serverDebugHost", ":4000")
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("serverReadTimeout", 5*time.Second)
	conf.SetDefault("serverWriteTimeout", 10*time.Second)
	conf.SetDefault("serverShutdownTimeout", 10*time.Second)

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", 5432)
	conf.SetDefault("dbName", "shule")
	conf.SetDefault("dbUser", "shule")
	conf.SetDefault("dbPassword", "shule")
	conf.SetDefault("dbAdminUser", "postgres")
	conf.SetDefault("dbAdminPassword", "postgres")
	conf.SetDefault("dbDisableTLS", true)

	conf.SetDefault("feesCurrency", "USD")
	conf.SetDefault("feesMaxAttempts", 3)
	conf.SetDefault("feesRemindersEnabled", false)
	conf.SetDefault("feesRemindersSpec", "0 7 * * *")

	conf.SetDefault("resultsMaxReportedErrors", 10)
	conf.SetDefault("resultsMaxUploadSize", 5<<20)

	conf.SetDefault("gradingDefaultAcademicYear", "")

	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	conf.AutomaticEnv()

	return &Config{
		Env:       env,
		Build:     conf.GetString("build"),
		Debug:     conf.GetBool("debug"),
		TestMode:  conf.GetBool("testMode"),
		AppName:   conf.GetString("appName"),
		SecretKey: conf.GetString("secretKey"),
		DefaultFromEmail: mail.Address{
			Name:    conf.GetString("defaultFromName"),
			Address: conf.GetString("defaultFromEmail"),
		},
		FrontendBaseURL: conf.GetString("frontendBaseURL"),
		RollbarToken:    conf.GetString("rollbarToken"),
		SendgridAPIKey:  conf.GetString("sendgridAPIKey"),
		Server: ServerConfig{
			Host:                      conf.GetString("serverHost"),
			Address:                   conf.GetString("serverAddress"),
			DebugHost:                 conf.GetString("serverDebugHost"),
			JWTExpirationDelta:        conf.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwtRefreshExpirationDelta"),
			ReadTimeout:               conf.GetDuration("serverReadTimeout"),
			WriteTimeout:              conf.GetDuration("serverWriteTimeout"),
			ShutdownTimeout:           conf.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetInt("dbPort"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
		},
		Fees: FeesConfig{
			Currency:         conf.GetString("feesCurrency"),
			MaxAttempts:      conf.GetInt("feesMaxAttempts"),
			RemindersEnabled: conf.GetBool("feesRemindersEnabled"),
			RemindersSpec:    conf.GetString("feesRemindersSpec"),
		},
		Results: ResultsConfig{
			MaxReportedErrors: conf.GetInt("resultsMaxReportedErrors"),
			MaxUploadSize:     conf.GetInt64("resultsMaxUploadSize"),
		},
		Grading: GradingConfig{
			DefaultAcademicYear: conf.GetString("gradingDefaultAcademicYear"),
		},
	}
}

// NewTestConfig returns the configuration used by tests.
func NewTestConfig() *Config {
	if err := os.Setenv("ENV", "TEST"); err != nil {
		log.Fatalf("config.os.Setenv(ENV): %v", err)
	}
	return NewConfig()
}
