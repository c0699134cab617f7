package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4280"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Strukturierte Extraktion (GROBID)
	GrobidURL     string        `envconfig:"GROBID_URL" default:"http://localhost:8070"`
	GrobidEnabled bool          `envconfig:"GROBID_ENABLED" default:"true"`
	GrobidTimeout time.Duration `envconfig:"GROBID_TIMEOUT" default:"60s"`

	// Anreicherung über CrossRef
	CrossRefBaseURL string  `envconfig:"CROSSREF_BASE_URL" default:"https://api.crossref.org/works"`
	CrossRefMailto  string  `envconfig:"CROSSREF_MAILTO"`
	CrossRefRate    float64 `envconfig:"CROSSREF_RATE" default:"5"`
	CrossRefRetries int     `envconfig:"CROSSREF_RETRIES" default:"3"`

	// S3-Ablage für Rohdaten
	S3Key      string `envconfig:"S3_KEY" required:"true"`
	S3Secret   string `envconfig:"S3_SECRET" required:"true"`
	S3Endpoint string `envconfig:"S3_ENDPOINT" required:"true"`
	S3Region   string `envconfig:"S3_REGION" required:"true"`
	S3Bucket   string `envconfig:"S3_BUCKET" required:"true"`

	// Queue und Worker-Pool
	WorkerCount       int           `envconfig:"WORKER_COUNT" default:"4"`
	VisibilityTimeout time.Duration `envconfig:"VISIBILITY_TIMEOUT" default:"15m"`
	MaxReceiveCount   int           `envconfig:"MAX_RECEIVE_COUNT" default:"3"`
	JobTimeout        time.Duration `envconfig:"JOB_TIMEOUT" default:"15m"`
	PollInterval      time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	JobRetention      time.Duration `envconfig:"JOB_RETENTION" default:"168h"`
	MaintenanceCron   string        `envconfig:"MAINTENANCE_CRON" default:"*/15 * * * *"`

	// Gewichte des Quality-Gates, Summe muss 1.0 ergeben.
	QualityWeightTitle   float64 `envconfig:"QUALITY_WEIGHT_TITLE" default:"0.3"`
	QualityWeightAuthors float64 `envconfig:"QUALITY_WEIGHT_AUTHORS" default:"0.2"`
	QualityWeightYear    float64 `envconfig:"QUALITY_WEIGHT_YEAR" default:"0.2"`
	QualityWeightDOI     float64 `envconfig:"QUALITY_WEIGHT_DOI" default:"0.3"`
	QualityThreshold     float64 `envconfig:"QUALITY_THRESHOLD" default:"0.7"`
	QualityMinTitleLen   int     `envconfig:"QUALITY_MIN_TITLE_LEN" default:"10"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
