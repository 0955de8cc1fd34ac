package config // package config loads application configuration from environment variables

import (
    "errors"   // errors distinguishes a missing .env file from a broken one
    "io/fs"    // fs.ErrNotExist is returned by godotenv for a missing file
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strings"  // strings normalises the storage driver name

    "github.com/joho/godotenv" // godotenv reads KEY=VALUE pairs from .env files
)

// Storage drivers accepted in STORAGE_DRIVER.
const (
    StorageMySQL  = "mysql"
    StorageMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    Storage        string // reservation store: "mysql" or "memory"
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing
    RabbitMQURL    string // AMQP URL; empty disables event publishing
}

// LoadDotEnv loads the given files (".env" when none is given) into the
// process environment.  Variables already set win over the file.  A missing
// file is not an error.
func LoadDotEnv(files ...string) error {
    if len(files) == 0 {
        files = []string{".env"}
    }
    for _, f := range files {
        if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
            return err
        }
    }
    return nil
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The DB_* variables
// are only required when the MySQL store is selected.
func Load() Config {
    cfg := Config{
        Env:            must("APP_ENV"),                                          // environment (dev/test/prod)
        Port:           envStr("APP_PORT", "8080"),                               // port to bind the HTTP server
        Storage:        strings.ToLower(envStr("STORAGE_DRIVER", StorageMySQL)),  // reservation store
        JWTSecret:      must("JWT_SECRET"),                                       // secret used for signing JWTs
        AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),                       // TTL for access tokens in minutes
        RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),                      // TTL for refresh tokens in days
        BcryptCost:     envInt("BCRYPT_COST", 12),                                // bcrypt cost factor
        RabbitMQURL:    os.Getenv("RABBITMQ_URL"),                                // broker address
    }
    switch cfg.Storage {
    case StorageMySQL:
        cfg.DBUser = must("DB_USER")        // database user
        cfg.DBPass = os.Getenv("DB_PASS")   // database password (empty allowed)
        cfg.DBHost = must("DB_HOST")        // database host
        cfg.DBPort = must("DB_PORT")        // database port
        cfg.DBName = must("DB_NAME")        // database name
    case StorageMemory:
    default:
        log.Fatalf("invalid STORAGE_DRIVER %q: want %q or %q", cfg.Storage, StorageMySQL, StorageMemory)
    }
    return cfg
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
