package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeUnwindsInReverse(t *testing.T) {
	var order []string
	s := &scope{}
	s.add(func() { order = append(order, "instance") })
	s.add(func() { order = append(order, "device") })
	s.add(func() { order = append(order, "pipeline") })
	assert.Equal(t, 3, s.len())

	s.unwind()
	assert.Equal(t, []string{"pipeline", "device", "instance"}, order)
	assert.Zero(t, s.len())

	s.unwind()
	assert.Len(t, order, 3, "second unwind runs nothing")
}

func TestScopeReusableAfterUnwind(t *testing.T) {
	calls := 0
	s := &scope{}
	s.unwind()
	s.add(func() { calls++ })
	s.unwind()
	assert.Equal(t, 1, calls)
}
