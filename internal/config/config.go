package config // package config loads application configuration from environment variables

import (
	"os"
	"strconv"
	"time"

	"github.com/labstack/gommon/log"
)

// Identity backends.
const (
	IdentityMemory = "memory"
	IdentityMySQL  = "mysql"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	JWTSecret       string        // secret used to sign session tokens
	SessionTTLMin   int           // session token time-to-live in minutes
	BcryptCost      int           // bcrypt cost for secret hashing
	SessionCookie   string        // cookie carrying the session token
	LoginPath       string        // where the gate sends unauthenticated requests
	IdentityBackend string        // "memory" or "mysql"
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	NoticeTTL       time.Duration // how long a transient notice stays visible
	Timezone        string        // zone used for calendar-day arithmetic

	// first admin created at startup when the admins collection is empty
	BootstrapName   string
	BootstrapEmail  string
	BootstrapSecret string
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The DB_* variables
// are only required when the identity backend is MySQL.
func Load() Config {
	c := Config{
		Env:             envStr("APP_ENV", "dev"),
		Port:            must("APP_PORT"),
		JWTSecret:       must("JWT_SECRET"),
		SessionTTLMin:   envInt("SESSION_TTL_MIN", 60*12),
		BcryptCost:      mustInt("BCRYPT_COST"),
		SessionCookie:   envStr("SESSION_COOKIE", "authToken"),
		LoginPath:       envStr("LOGIN_PATH", "/login"),
		IdentityBackend: envStr("IDENTITY_BACKEND", IdentityMemory),
		NoticeTTL:       envDur("NOTICE_TTL", 3*time.Second),
		Timezone:        envStr("APP_TZ", "America/Sao_Paulo"),
		BootstrapName:   envStr("BOOTSTRAP_ADMIN_NAME", "Administrador"),
		BootstrapEmail:  envStr("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapSecret: envStr("BOOTSTRAP_ADMIN_SECRET", ""),
	}
	if c.IdentityBackend == IdentityMySQL {
		c.DBUser = must("DB_USER")
		c.DBPass = os.Getenv("DB_PASS") // empty allowed
		c.DBHost = must("DB_HOST")
		c.DBPort = must("DB_PORT")
		c.DBName = must("DB_NAME")
	}
	return c
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Warnf("unknown APP_TZ %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
