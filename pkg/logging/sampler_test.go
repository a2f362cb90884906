package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorSampler(t *testing.T) {
	sampler := NewErrorSampler(10)

	logged := 0
	for i := 1; i <= 25; i++ {
		if sampler.ShouldLog("prices:NABIL") {
			logged++
		}
	}
	// 1st, 10th and 20th
	assert.Equal(t, 3, logged)
	assert.Equal(t, 25, sampler.Count("prices:NABIL"))

	assert.Equal(t, 22, sampler.Flush("prices:NABIL"))
	assert.Equal(t, 0, sampler.Count("prices:NABIL"))
	assert.True(t, sampler.ShouldLog("prices:NABIL"), "a flushed key starts over")
}

func TestErrorSampler_KeysAreIndependent(t *testing.T) {
	sampler := NewErrorSampler(0)

	for i := 0; i < 5; i++ {
		assert.Equal(t, i == 0, sampler.ShouldLog("a"), fmt.Sprintf("occurrence %d", i+1))
	}
	assert.True(t, sampler.ShouldLog("b"))
	assert.Equal(t, 0, sampler.Flush("missing"))
}

func TestErrorSampler_Concurrent(t *testing.T) {
	sampler := NewErrorSampler(10)
	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func() {
			for i := 0; i < 100; i++ {
				sampler.ShouldLog("shared")
			}
			done <- struct{}{}
		}()
	}
	for g := 0; g < 4; g++ {
		<-done
	}
	assert.Equal(t, 400, sampler.Count("shared"))
}
