package typeid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShapeID(t *testing.T) {
	a := NewShapeID()
	b := NewShapeID()

	assert.True(t, strings.HasPrefix(a, PrefixShape+"_"))
	assert.NotEqual(t, a, b)
	require.NoError(t, Validate(a, PrefixShape))
}

func TestValidateWrongPrefix(t *testing.T) {
	err := Validate(NewCanvasID(), PrefixShape)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected prefix")

	assert.Error(t, Validate("not-an-id", PrefixShape))
}
