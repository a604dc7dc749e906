package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
orion:
  base_url: https://orion.test
  token: from-file
payment:
  merchant_phone: "987654321"
cart:
  store: memory
`

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return v
}

func TestLoadAppliesDefaultsAndSecrets(t *testing.T) {
	t.Setenv("LAB_ORION_TOKEN", "from-env")
	t.Setenv("LAB_JWT_SECRET", "jwt")
	t.Setenv("LAB_SERVER_PORT", "9090")

	cfg, err := load(newViper(t, sample), (*Config).Validate)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Orion.Token, "environment secrets win over the file")
	assert.Equal(t, "jwt", cfg.Auth.JWTSecret)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Orion.Timeout)
	assert.Equal(t, []string{"Doctors", "Companies"}, cfg.Pricing.ReferentialRefs)
	assert.Equal(t, 20, cfg.Pricing.MigrationBatch)
	assert.Equal(t, "template", cfg.Email.Driver)
}

func TestValidateRequiresSecrets(t *testing.T) {
	t.Setenv("LAB_ORION_TOKEN", "")
	t.Setenv("LAB_JWT_SECRET", "")

	_, err := load(newViper(t, `cart: {store: redis}`), (*Config).Validate)
	require.Error(t, err)
	for _, key := range []string{"orion.base_url", "LAB_JWT_SECRET", "payment.merchant_phone", "redis.url"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestToolConfigSkipsServerSecrets(t *testing.T) {
	t.Setenv("LAB_JWT_SECRET", "")

	cfg, err := load(newViper(t, `database: {name: lab}`), (*Config).ValidatePricing)
	require.NoError(t, err)
	assert.Equal(t, "lab", cfg.Database.Name)
}

func TestValidatePricing(t *testing.T) {
	cfg, err := load(newViper(t, `database: {name: lab}`), (*Config).ValidatePricing)
	require.NoError(t, err)

	cfg.Pricing.ReferentialFactor = 1.5
	assert.Error(t, cfg.ValidatePricing())

	cfg.Pricing.ReferentialFactor = 0.8
	cfg.Pricing.MigrationBatch = 0
	assert.Error(t, cfg.ValidatePricing())
}

func TestValidateEmailDriver(t *testing.T) {
	t.Setenv("LAB_JWT_SECRET", "jwt")

	_, err := load(newViper(t, sample+"email: {driver: pigeon}\n"), (*Config).Validate)
	assert.EqualError(t, err, `unsupported email driver "pigeon"`)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", db.DSN())
}
