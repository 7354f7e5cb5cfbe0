package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ader1990/adpreplic/internal/model"
)

func TestNowIsStrictlyMonotonic(t *testing.T) {
	c := New("dc-a")

	prev := c.Now()
	for i := 0; i < 1000; i++ {
		ts := c.Now()
		assert.True(t, ts.After(prev), "timestamp %d not after its predecessor", i)
		prev = ts
	}
}

func TestNowCarriesDCIdentity(t *testing.T) {
	c := New("dc-a")
	assert.Equal(t, model.DCID("dc-a"), c.Now().DC)
}

func TestObserveAdvancesClock(t *testing.T) {
	c := New("dc-a")

	remote := model.Timestamp{WallNanos: c.Now().WallNanos + int64(1e12), Counter: 7, DC: "dc-b"}
	c.Observe(remote)

	ts := c.Now()
	assert.True(t, ts.After(remote))
}

func TestObserveIgnoresOldTimestamps(t *testing.T) {
	c := New("dc-a")

	local := c.Now()
	c.Observe(model.Timestamp{WallNanos: 1, Counter: 0, DC: "dc-b"})

	assert.True(t, c.Now().After(local))
}
