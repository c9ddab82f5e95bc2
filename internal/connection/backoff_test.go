package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffFor(t *testing.T) {
	assert.Equal(t, 2*time.Second, BackoffFor(1))
	assert.Equal(t, 5*time.Second, BackoffFor(2))
	assert.Equal(t, 60*time.Second, BackoffFor(6))
	assert.Equal(t, 60*time.Second, BackoffFor(99), "attempts past the table hold at the last value")
	assert.Equal(t, 2*time.Second, BackoffFor(0), "non-positive attempts clamp to the first entry")
}

func TestRestart515Delay(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := Restart515Delay()
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 5*time.Second)
	}
}
