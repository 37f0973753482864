package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Get()
	assert.Equal(t, "1.0.0", info.ManifestSchema)
	assert.Contains(t, info.String(), "curate dev")

	info.Version = "v0.3.0"
	info.CommitHash = "0123456789abcdef"
	assert.Contains(t, info.String(), "curate v0.3.0 (commit 0123456789abcdef")
	assert.Equal(t, "0123456", info.Short())

	info.CommitHash = "dev"
	assert.Equal(t, "dev", info.Short())
}
