package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type limits struct {
	Rate   float64       `yaml:"rate" validate:"gt=0"`
	Burst  int           `koanf:"burst" validate:"min=1"`
	Mode   string        `yaml:"mode,omitempty" validate:"omitempty,oneof=fast slow"`
	Period time.Duration `validate:"gt=0"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(limits{Rate: 1, Burst: 1, Period: time.Second}))

	err := ValidateStruct(&limits{Mode: "warp"})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "rate: must be greater than 0")
	assert.Contains(t, msg, "burst: must be at least 1")
	assert.Contains(t, msg, `mode: must be one of [fast slow], got "warp"`)
	assert.Contains(t, msg, "Period: must be greater than 0")
}
