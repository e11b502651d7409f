package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, c, d := Info()
	assert.Equal(t, "gridsplit "+v+" (commit: "+c+", built: "+d+")", String())
}
