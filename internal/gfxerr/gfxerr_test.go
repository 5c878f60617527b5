package gfxerr

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/core1_0"
)

func TestWrapMarksKind(t *testing.T) {
	cause := errors.New("vkCreateGraphicsPipelines")
	err := Wrap(cause, ErrPipelineCreation, "createGraphicsPipeline")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPipelineCreation))
	assert.False(t, errors.Is(err, ErrChainCreation))
	assert.Contains(t, err.Error(), "createGraphicsPipeline")
	assert.Contains(t, err.Error(), "vkCreateGraphicsPipelines")
	assert.Equal(t, ErrPipelineCreation, KindOf(err))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, ErrSubmit, "submit"))
	assert.NoError(t, Wrapf(nil, ErrSubmit, "submit %d", 1))
	assert.NoError(t, Result(core1_0.VKSuccess, nil, ErrSubmit, "submit"))
}

func TestResultOutOfMemory(t *testing.T) {
	cause := errors.New("allocate")

	err := Result(core1_0.VKErrorOutOfDeviceMemory, cause, ErrResourceCreation, "createBuffer")
	assert.True(t, errors.Is(err, ErrResourceCreation))
	assert.True(t, errors.Is(err, ErrOutOfMemory))
	assert.Equal(t, ErrOutOfMemory, KindOf(err))

	err = Result(core1_0.VKErrorUnknown, cause, ErrResourceCreation, "createBuffer")
	assert.False(t, errors.Is(err, ErrOutOfMemory))
	assert.Equal(t, ErrResourceCreation, KindOf(err))
}

func TestNew(t *testing.T) {
	err := New(ErrMissingLayer, "layer %s not available", "VK_LAYER_KHRONOS_validation")
	assert.True(t, errors.Is(err, ErrMissingLayer))
	assert.Equal(t, "layer VK_LAYER_KHRONOS_validation not available", err.Error())
}

func TestKindOfForeignError(t *testing.T) {
	assert.Nil(t, KindOf(nil))
	assert.Nil(t, KindOf(errors.New("something else")))
}
