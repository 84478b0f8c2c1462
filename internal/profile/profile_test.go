package profile

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacxDev/spritemosaic/pkg/types"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"h264", "mpeg4"}, GetSupportedProfiles())

	p, err := Get("h264")
	require.NoError(t, err)
	assert.Equal(t, "libx264", p.GetVideoCodec())
	assert.Equal(t, "mp4", p.GetOutputFormat())

	_, err = Get("prores")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestOutputArgs(t *testing.T) {
	p, err := Get("mpeg4")
	require.NoError(t, err)

	args := OutputArgs(p)
	assert.Equal(t, "mpeg4", args["c:v"])
	assert.Equal(t, "yuv420p", args["pix_fmt"])
	assert.Equal(t, "mp4v", args["tag:v"])
	assert.Equal(t, "mp4", args["f"])

	// Each call returns an independent map
	args["c:v"] = "changed"
	assert.Equal(t, "mpeg4", OutputArgs(p)["c:v"])
}
