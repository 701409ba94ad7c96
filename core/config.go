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
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// identity codecs
const (
	CodecXOR  = "xor"
	CodecAEAD = "aead"
)

// database engines
const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory" // non-persistent, for local runs and tests
)

// cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// email backends
const (
	EmailConsole  = "console"
	EmailSendgrid = "sendgrid"
)

var (
	errEmptyPassPhrase = errors.New("identity.passPhrase must not be empty")
	errUnknownCodec    = errors.New("identity.codec must be one of: xor, aead")
	errUnknownCache    = errors.New("cache.backend must be one of: memory, redis")
	errUnknownEngine   = errors.New("database.engine must be one of: postgres, memory")
	errUnknownEmail    = errors.New("email.backend must be one of: console, sendgrid")
	errNoSendgridKey   = errors.New("email.sendgridApiKey is required by the sendgrid backend")
)

type (
	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		FrontendBaseURL string
		RollbarToken    string

		Identity IdentityConfig
		Server   ServerConfig
		Database DatabaseConfig
		Cache    CacheConfig
		Email    EmailConfig
	}

	IdentityConfig struct {
		PassPhrase string
		Codec      string
		TTL        time.Duration
		Secure     bool
	}

	ServerConfig struct {
		Host            string
		Addr            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
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

	CacheConfig struct {
		Backend string
		TTL     time.Duration
		Redis   RedisConfig
	}

	EmailConfig struct {
		Backend        string
		SendgridApiKey string
		FromName       string
		FromAddress    string
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

func (conf *Config) DefaultFromEmail() mail.Address {
	name := conf.Email.FromName
	if name == "" {
		name = conf.AppName
	}
	return mail.Address{Name: name, Address: conf.Email.FromAddress}
}

// Validate fails on settings the app cannot start with.
func (conf *Config) Validate() error {
	if conf.Identity.PassPhrase == "" {
		return errEmptyPassPhrase
	}
	switch conf.Identity.Codec {
	case CodecXOR, CodecAEAD:
	default:
		return errUnknownCodec
	}
	switch conf.Cache.Backend {
	case CacheMemory, CacheRedis:
	default:
		return errUnknownCache
	}
	switch conf.Database.Engine {
	case EnginePostgres, EngineMemory:
	default:
		return errUnknownEngine
	}
	switch conf.Email.Backend {
	case EmailConsole:
	case EmailSendgrid:
		if conf.Email.SendgridApiKey == "" {
			return errNoSendgridKey
		}
	default:
		return errUnknownEmail
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Elimu")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("identity.passPhrase", "")
	v.SetDefault("identity.codec", CodecXOR)
	v.SetDefault("identity.ttl", time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", EnginePostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "elimu")
	v.SetDefault("database.user", "elimu")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.ttl", time.Minute)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("email.backend", EmailConsole)
	v.SetDefault("email.sendgridApiKey", "")
	v.SetDefault("email.fromName", "")
	v.SetDefault("email.fromAddress", "no-reply@elimu.local")
}

// NewConfig loads the app configuration: defaults, then config/.env.<env> if it exists, then the environment.
// Env vars are prefixed by the env name and use "_" in place of ".", e.g. PROD_IDENTITY_PASSPHRASE.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

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
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		Identity: IdentityConfig{
			PassPhrase: v.GetString("identity.passPhrase"),
			Codec:      strings.ToLower(v.GetString("identity.codec")),
			TTL:        v.GetDuration("identity.ttl"),
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Addr:            v.GetString("server.addr"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Cache: CacheConfig{
			Backend: strings.ToLower(v.GetString("cache.backend")),
			TTL:     v.GetDuration("cache.ttl"),
			Redis: RedisConfig{
				Addr:     v.GetString("cache.redis.addr"),
				Password: v.GetString("cache.redis.password"),
				DB:       v.GetInt("cache.redis.db"),
			},
		},
		Email: EmailConfig{
			Backend:        strings.ToLower(v.GetString("email.backend")),
			SendgridApiKey: v.GetString("email.sendgridApiKey"),
			FromName:       v.GetString("email.fromName"),
			FromAddress:    v.GetString("email.fromAddress"),
		},
	}
	// cookies are only sent over https outside of local dev
	conf.Identity.Secure = !conf.Debug
	return conf
}
