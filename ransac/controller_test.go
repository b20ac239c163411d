package ransac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestController_Required(t *testing.T) {
	tests := []struct {
		name      string
		inliers   int
		total     int
		m         int
		minTrials int
		maxTrials int
		want      int
	}{
		{"no agreement keeps full budget", 0, 100, 2, 1, 1000, 1000},
		{"all inliers stops at once", 10, 10, 2, 1, 1000, 1},
		{"all inliers ignores min trials", 10, 10, 2, 50, 1000, 1},
		{"80 percent pairs", 80, 100, 2, 1, 1000, 5},
		{"half inliers quadruples", 50, 100, 4, 1, 1000, 72},
		{"clamped to min trials", 80, 100, 2, 20, 1000, 20},
		{"clamped to max trials", 10, 100, 3, 1, 50, 50},
		{"ratio power underflows", 1, 1000000, 80, 1, 300, 300},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewController(0.99, tc.minTrials, tc.maxTrials, tc.m, tc.total)
			c.Update(tc.inliers)
			assert.Equal(t, tc.want, c.Required())
		})
	}
}

func TestController_UpdateKeepsBest(t *testing.T) {
	c := NewController(0.99, 1, 100, 2, 10)
	c.Update(6)
	c.Update(3)
	assert.InDelta(t, 0.6, c.BestRatio(), 1e-12)
	c.Update(9)
	assert.InDelta(t, 0.9, c.BestRatio(), 1e-12)
}

func TestController_Done(t *testing.T) {
	c := NewController(0.99, 1, 10, 2, 100)
	assert.False(t, c.Done(), "no trials yet")

	c.Update(80)
	for i := 0; i < 4; i++ {
		c.Record()
		assert.False(t, c.Done(), "trial %d", i)
	}
	c.Record()
	assert.True(t, c.Done())
	assert.Equal(t, 5, c.Trials())
}

func TestController_DoneAtMaxTrials(t *testing.T) {
	c := NewController(0.99, 1, 3, 2, 100)
	for i := 0; i < 3; i++ {
		c.Record()
	}
	assert.True(t, c.Done())
}

func TestController_ShrinksAsRatioImproves(t *testing.T) {
	c := NewController(0.99, 1, 100000, 3, 100)
	c.Update(20)
	low := c.Required()
	c.Update(60)
	high := c.Required()
	assert.Greater(t, low, high)
}
