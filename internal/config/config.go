package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"buyerportal/internal/financing"
	"buyerportal/internal/logger"
	"buyerportal/internal/ocr"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	// OCR Configuration
	OCRProvider    string
	OCRSpaceAPIKey string
	OCRSpaceURL    string
	OCRLanguage    string
	OCREngine      int
	OCRTimeout     time.Duration

	// Google Cloud Configuration
	GoogleCredentialsJSON      string
	GoogleCredentialsFile      string
	GoogleCloudProject         string
	DocumentAILocation         string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Google Sheets Configuration
	GoogleSheetURL   string
	GoogleSheetRange string
	PayoutSheetRange string

	// Counterparty reported on every extracted invoice
	SupplierName string

	// Pricing Configuration
	PricingModel      string
	FeeRatePerPeriod  decimal.Decimal
	FeeRatePerDay     decimal.Decimal
	ExtensionMinDays  int
	ExtensionMaxDays  int
	ExtensionStepDays int

	// Storage Configuration
	StoreDriver   string
	DatabaseURL   string
	FileStoreDir  string
	PublicBaseURL string

	// HTTP Server Configuration
	ServerAddr        string
	ServerBodyLimitMB int
	CORSAllowOrigins  string

	// Batch Configuration
	BatchWorkers int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	config := &Config{
		OCRProvider:                strings.ToLower(getEnv("OCR_PROVIDER", ocr.ProviderOCRSpace)),
		OCRSpaceAPIKey:             getEnv("OCR_SPACE_API_KEY", ""),
		OCRSpaceURL:                getEnv("OCR_SPACE_URL", ocr.DefaultOCRSpaceURL),
		OCRLanguage:                getEnv("OCR_LANGUAGE", "swe"),
		GoogleCredentialsJSON:      getEnv("GOOGLE_CREDENTIALS", ""),
		GoogleCredentialsFile:      getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		DocumentAILocation:         getEnv("DOCUMENT_AI_LOCATION", "eu"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetRange:           getEnv("GOOGLE_SHEET_RANGE", "Fakturor"),
		PayoutSheetRange:           getEnv("PAYOUT_SHEET_RANGE", "Utbetalningar!A2:C"),
		SupplierName:               getEnv("SUPPLIER_NAME", "Telavox AB"),
		PricingModel:               strings.ToLower(getEnv("PRICING_MODEL", string(financing.ModelPerPeriod))),
		StoreDriver:                strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		FileStoreDir:               getEnv("FILE_STORE_DIR", "uploads"),
		PublicBaseURL:              getEnv("PUBLIC_BASE_URL", "http://localhost:8080/files"),
		ServerAddr:                 getEnv("SERVER_ADDR", ":8080"),
		CORSAllowOrigins:           getEnv("CORS_ALLOW_ORIGINS", "*"),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stdout"),
	}

	var err error
	config.OCREngine, err = getEnvInt("OCR_ENGINE", 2)
	collect(err)
	config.OCRTimeout, err = getEnvDuration("OCR_TIMEOUT", ocr.DefaultTimeout)
	collect(err)
	config.ServerBodyLimitMB, err = getEnvInt("SERVER_BODY_LIMIT_MB", 25)
	collect(err)
	config.BatchWorkers, err = getEnvInt("BATCH_WORKERS", 12)
	collect(err)

	defaults := financing.DefaultConfig(financing.Model(config.PricingModel))
	config.FeeRatePerPeriod, err = getEnvDecimal("FEE_RATE_PER_PERIOD", defaults.RatePerPeriod)
	collect(err)
	config.FeeRatePerDay, err = getEnvDecimal("FEE_RATE_PER_DAY", defaults.RatePerDay)
	collect(err)
	config.ExtensionMinDays, err = getEnvInt("EXTENSION_MIN_DAYS", defaults.MinDays)
	collect(err)
	config.ExtensionMaxDays, err = getEnvInt("EXTENSION_MAX_DAYS", defaults.MaxDays)
	collect(err)
	config.ExtensionStepDays, err = getEnvInt("EXTENSION_STEP_DAYS", defaults.StepDays)
	collect(err)

	collect(config.validate())

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OCRProvider {
	case ocr.ProviderOCRSpace, ocr.ProviderVision, ocr.ProviderDocumentAI:
	default:
		return fmt.Errorf("OCR_PROVIDER must be one of %s, %s, %s", ocr.ProviderOCRSpace, ocr.ProviderVision, ocr.ProviderDocumentAI)
	}
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %s or %s", StoreDriverPostgres, StoreDriverMemory)
	}
	if c.OCRTimeout <= 0 {
		return fmt.Errorf("OCR_TIMEOUT must be positive")
	}
	if c.BatchWorkers <= 0 {
		return fmt.Errorf("BATCH_WORKERS must be positive")
	}
	if err := c.GetPricingConfig().Validate(); err != nil {
		return err
	}
	return nil
}

// RequireDatabase checks the settings needed by the postgres store.
func (c *Config) RequireDatabase() error {
	if c.StoreDriver == StoreDriverPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
	}
	return nil
}

// RequireSheet checks the settings needed by Google Sheets commands.
func (c *Config) RequireSheet() error {
	if c.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// GetPricingConfig returns the active FortusFlex pricing.
func (c *Config) GetPricingConfig() financing.Config {
	return financing.Config{
		Model:         financing.Model(c.PricingModel),
		RatePerPeriod: c.FeeRatePerPeriod,
		RatePerDay:    c.FeeRatePerDay,
		MinDays:       c.ExtensionMinDays,
		MaxDays:       c.ExtensionMaxDays,
		StepDays:      c.ExtensionStepDays,
	}
}

// GetGoogleCredentials returns the credentials shared by all Google clients.
func (c *Config) GetGoogleCredentials() ocr.GoogleCredentials {
	return ocr.GoogleCredentials{
		JSON: c.GoogleCredentialsJSON,
		File: c.GoogleCredentialsFile,
	}
}

// GetOCRSpaceConfig returns the OCR.space provider configuration.
func (c *Config) GetOCRSpaceConfig() ocr.OCRSpaceConfig {
	return ocr.OCRSpaceConfig{
		APIKey:   c.OCRSpaceAPIKey,
		URL:      c.OCRSpaceURL,
		Language: c.OCRLanguage,
		Engine:   c.OCREngine,
		Timeout:  c.OCRTimeout,
	}
}

// GetDocumentAIConfig returns the Document AI provider configuration.
func (c *Config) GetDocumentAIConfig() ocr.DocumentAIConfig {
	return ocr.DocumentAIConfig{
		ProjectID:        c.GoogleCloudProject,
		Location:         c.DocumentAILocation,
		ProcessorID:      c.DocumentAIProcessorID,
		ProcessorVersion: c.DocumentAIProcessorVersion,
		Credentials:      c.GetGoogleCredentials(),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %q", key, value)
	}
	return n, nil
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("120").
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %q", key, value)
	}
	return d, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal: %q", key, value)
	}
	return d, nil
}
