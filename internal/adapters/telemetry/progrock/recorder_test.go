package progrock_test

import (
	"testing"

	"featlock/internal/adapters/telemetry/progrock"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	recorder := progrock.New()
	assert.NotNil(t, recorder)
}
