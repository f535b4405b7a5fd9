package cli

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/dealcore/internal/model"
)

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DEALCORE_STORE_DRIVER", "redis")
	t.Setenv("DEALCORE_RERANK_TOP_N", "5")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DEALCORE_LLM_PROVIDER", "openai")

	initConfig()
	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Rerank.TopN)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)

	// untouched defaults survive the round trip through viper
	def := model.DefaultConfig()
	assert.Equal(t, 4*time.Hour, cfg.Freshness.CategoryThresholds["electronics"])
	assert.Equal(t, def.TurnTimeout, cfg.TurnTimeout)
	assert.Equal(t, def.Rerank.Weights, cfg.Rerank.Weights)
}

func TestRedact(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "sk-secret"
	cfg.Store.Redis.Password = "hunter2"

	redact(cfg)
	assert.Equal(t, "********", cfg.LLM.APIKey)
	assert.Equal(t, "********", cfg.Store.Redis.Password)
	assert.Empty(t, cfg.Search.APIKey)
}
