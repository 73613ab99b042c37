package version_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macropower/cablecat/pkg/version"
)

func TestString(t *testing.T) {
	t.Parallel()

	s := version.String()
	assert.Contains(t, s, version.GetVersion())
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
	assert.NotEmpty(t, version.Revision)
}
