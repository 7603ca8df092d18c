package config

import (
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load modes for the SQLite tables.
const (
	LoadReplace = "replace"
	LoadAppend  = "append"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	MongoURI           string
	MongoDatabase      string
	ListingsCollection string
	ReviewsCollection  string

	StagingDir string
	SQLitePath string
	ExcelPath  string
	SampleDir  string
	SampleRows int
	LogsDir    string
	LoadMode   string

	RulesPath   string
	PricePolicy string

	PostgresDSN    string
	PushgatewayURL string
	Debug          bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		MongoURI:           getEnv("MONGODB_URI", "mongodb://localhost:27017/"),
		MongoDatabase:      getEnv("MONGODB_DATABASE", "bi_mx"),
		ListingsCollection: getEnv("LISTINGS_COLLECTION", "listings"),
		ReviewsCollection:  getEnv("REVIEWS_COLLECTION", "reviews"),

		StagingDir: getEnv("STAGING_DIR", "./data/staging"),
		SQLitePath: getEnv("SQLITE_PATH", "./data/airbnb_etl.db"),
		ExcelPath:  getEnv("EXCEL_PATH", "./data/airbnb_clean_data.xlsx"),
		SampleDir:  getEnv("SAMPLE_DIR", "./data/samples"),
		SampleRows: getEnvInt("SAMPLE_ROWS", 100),
		LogsDir:    getEnv("LOGS_DIR", "./logs"),
		LoadMode:   normaliseLoadMode(getEnv("LOAD_MODE", LoadReplace)),

		RulesPath:   getEnv("RULES_PATH", ""),
		PricePolicy: strings.ToLower(getEnv("PRICE_POLICY", "")),

		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		PushgatewayURL: getEnv("PUSHGATEWAY_URL", ""),
		Debug:          getEnvBool("DEBUG", false),
	}
}

// StagingPath returns the handoff file for a stage's output table.
// kind is "raw" or "clean".
func (c *Config) StagingPath(kind, table string) string {
	return filepath.Join(c.StagingDir, kind+"_"+table+".jsonl")
}

// SamplePath returns the sample CSV path for a cleaned table.
func (c *Config) SamplePath(table string) string {
	return filepath.Join(c.SampleDir, table+"_clean_sample.csv")
}

// MongoSource returns the Mongo URI with any password masked, for display.
// A URI that does not parse is reduced to its scheme.
func (c *Config) MongoSource() string {
	u, err := url.Parse(c.MongoURI)
	if err != nil {
		if scheme, _, ok := strings.Cut(c.MongoURI, "://"); ok {
			return scheme + "://***"
		}
		return "***"
	}
	return u.Redacted()
}

func normaliseLoadMode(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), LoadAppend) {
		return LoadAppend
	}
	return LoadReplace
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
