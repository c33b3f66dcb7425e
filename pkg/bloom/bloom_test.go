package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddedKeysAlwaysTestPositive(t *testing.T) {
	f := New(1000, 0.01)
	keys := make([][]byte, 0, 1000)
	for i := 0; i < 1000; i++ {
		k := []byte(fmt.Sprintf("key-%d", i))
		keys = append(keys, k)
		f.Add(k)
	}
	for _, k := range keys {
		assert.True(t, f.Test(k))
	}
}

func TestFalsePositiveRateIsReasonable(t *testing.T) {
	f := New(1000, 0.01)
	for i := 0; i < 1000; i++ {
		f.Add([]byte(fmt.Sprintf("present-%d", i)))
	}

	falsePositives := 0
	trials := 10000
	for i := 0; i < trials; i++ {
		if f.Test([]byte(fmt.Sprintf("absent-%d", i))) {
			falsePositives++
		}
	}
	// Generous bound: configured at 1% but double-hashing approximation
	// and small n can drift; this just guards against gross regressions.
	assert.Less(t, float64(falsePositives)/float64(trials), 0.1)
}

func TestBytesRoundTrip(t *testing.T) {
	f := New(100, 0.01)
	f.Add([]byte("hello"))
	f.Add([]byte("world"))

	restored := FromBytes(f.Bytes())
	assert.True(t, restored.Test([]byte("hello")))
	assert.True(t, restored.Test([]byte("world")))
}
