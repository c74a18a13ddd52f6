package xdpprog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadMissingObjectFileFails(t *testing.T) {
	_, err := Load("/nonexistent/xdp_redirect.o", "lo")
	assert.Error(t, err)
}
