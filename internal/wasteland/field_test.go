package wasteland

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDangerBounds(t *testing.T) {
	f := NewField(42)
	for d := 0.0; d <= 500; d += 7 {
		danger := f.Danger(d)
		assert.GreaterOrEqual(t, danger, 0.25, "distance %v", d)
		assert.LessOrEqual(t, danger, 1.0, "distance %v", d)
	}
}

func TestFieldIsDeterministicPerSeed(t *testing.T) {
	a := NewField(42)
	b := NewField(42)
	c := NewField(43)

	same, different := 0, 0
	for d := 1.0; d <= 200; d += 3 {
		assert.Equal(t, a.Danger(d), b.Danger(d))
		assert.Equal(t, a.Yield(d), b.Yield(d))
		if a.Danger(d) == c.Danger(d) {
			same++
		} else {
			different++
		}
	}
	assert.Greater(t, different, same, "seeds must shape distinct fields")
}
