package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libris-io/libris/internal/config"
)

func Test_Load_DefaultsWithoutFileOrEnv(t *testing.T) {
	// act
	cfg, err := config.Load("")

	// assert
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int32(8), cfg.Postgres.MaxConns)
	assert.Equal(t, 5, cfg.Policy.BorrowLimit)
	assert.Equal(t, time.Minute, cfg.Worker.ExpirySweepInterval)
}

func Test_Load_YAMLFileOverridesDefaults(t *testing.T) {
	// arrange
	path := filepath.Join(t.TempDir(), "libris.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
policy:
  borrowLimit: 3
  lateFeePerDay: 0.5
`), 0o600))

	// act
	cfg, err := config.Load(path)

	// assert
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Policy.BorrowLimit)
	assert.InDelta(t, 0.5, cfg.Policy.LateFeePerDay, 0.0001)
	assert.Equal(t, ":8080", config.Default().Server.Addr, "defaults stay untouched")
}

func Test_Load_EnvOverridesFile(t *testing.T) {
	// arrange
	path := filepath.Join(t.TempDir(), "libris.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600))
	t.Setenv("LIBRIS_ADDR", ":7070")
	t.Setenv("LIBRIS_POLICY_BORROW_LIMIT", "2")

	// act
	cfg, err := config.Load(path)

	// assert
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Policy.BorrowLimit)
}

func Test_Load_RejectsMissingExplicitFile(t *testing.T) {
	// act
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))

	// assert
	assert.Error(t, err)
}

func Test_Load_RejectsInvalidPolicy(t *testing.T) {
	// arrange
	t.Setenv("LIBRIS_POLICY_BORROW_LIMIT", "0")

	// act
	_, err := config.Load("")

	// assert
	assert.ErrorContains(t, err, "borrow limit")
}

func Test_LendingPolicy_ConvertsDaysToDurations(t *testing.T) {
	// arrange
	cfg := config.Default()
	cfg.Policy.LoanPeriodDays = 7
	cfg.Policy.ReservationTTLDays = 2

	// act
	policy := cfg.LendingPolicy()

	// assert
	assert.Equal(t, 7*24*time.Hour, policy.LoanPeriod)
	assert.Equal(t, 2*24*time.Hour, policy.ReservationTTL)
	assert.Equal(t, cfg.Policy.BorrowLimit, policy.BorrowLimit)
}
