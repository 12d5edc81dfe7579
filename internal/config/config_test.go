package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buyerportal/internal/financing"
	"buyerportal/internal/ocr"
)

var configKeys = []string{
	"OCR_PROVIDER", "OCR_SPACE_API_KEY", "OCR_SPACE_URL", "OCR_LANGUAGE", "OCR_ENGINE", "OCR_TIMEOUT",
	"GOOGLE_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS", "GOOGLE_CLOUD_PROJECT",
	"DOCUMENT_AI_LOCATION", "DOCUMENT_AI_PROCESSOR_ID", "DOCUMENT_AI_PROCESSOR_VERSION",
	"GOOGLE_SHEET_URL", "GOOGLE_SHEET_RANGE", "PAYOUT_SHEET_RANGE", "SUPPLIER_NAME",
	"PRICING_MODEL", "FEE_RATE_PER_PERIOD", "FEE_RATE_PER_DAY",
	"EXTENSION_MIN_DAYS", "EXTENSION_MAX_DAYS", "EXTENSION_STEP_DAYS",
	"STORE_DRIVER", "DATABASE_URL", "FILE_STORE_DIR", "PUBLIC_BASE_URL",
	"SERVER_ADDR", "SERVER_BODY_LIMIT_MB", "CORS_ALLOW_ORIGINS", "BATCH_WORKERS",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_TIME_FORMAT", "LOG_OUTPUT",
}

// clearEnv makes every key fall back to its default for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ocr.ProviderOCRSpace, cfg.OCRProvider)
	assert.Equal(t, ocr.DefaultTimeout, cfg.OCRTimeout)
	assert.Equal(t, 2, cfg.OCREngine)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 12, cfg.BatchWorkers)
	assert.Equal(t, "Utbetalningar!A2:C", cfg.PayoutSheetRange)

	pricing := cfg.GetPricingConfig()
	assert.Equal(t, financing.ModelPerPeriod, pricing.Model)
	assert.Equal(t, "0.015", pricing.Rate().String())
	assert.Equal(t, []int{15, 30, 45, 60, 75, 90}, pricing.ExtensionOptions())

	assert.Error(t, cfg.RequireDatabase(), "postgres needs DATABASE_URL")
	assert.Error(t, cfg.RequireSheet())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCR_PROVIDER", "Vision")
	t.Setenv("OCR_TIMEOUT", "90s")
	t.Setenv("PRICING_MODEL", "per_day")
	t.Setenv("FEE_RATE_PER_DAY", "0.001")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("BATCH_WORKERS", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ocr.ProviderVision, cfg.OCRProvider)
	assert.Equal(t, 90*time.Second, cfg.OCRTimeout)
	assert.Equal(t, 4, cfg.BatchWorkers)
	assert.NoError(t, cfg.RequireDatabase())

	pricing := cfg.GetPricingConfig()
	assert.Equal(t, financing.ModelPerDay, pricing.Model)
	assert.Equal(t, "0.001", pricing.Rate().String())
	assert.Equal(t, 30, pricing.MinDays, "per_day defaults apply")
	assert.Equal(t, 10, pricing.StepDays)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"provider", "OCR_PROVIDER", "tesseract", "OCR_PROVIDER"},
		{"driver", "STORE_DRIVER", "sqlite", "STORE_DRIVER"},
		{"timeout", "OCR_TIMEOUT", "soon", "OCR_TIMEOUT"},
		{"workers", "BATCH_WORKERS", "0", "BATCH_WORKERS"},
		{"model", "PRICING_MODEL", "flat", "pricing model"},
		{"rate", "FEE_RATE_PER_PERIOD", "1,5%", "FEE_RATE_PER_PERIOD"},
		{"range", "EXTENSION_MAX_DAYS", "5", "extension range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "120")
	d, err := getEnvDuration("TEST_DURATION", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	t.Setenv("TEST_DURATION", "")
	d, err = getEnvDuration("TEST_DURATION", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}
