package offload

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/xrcore/dataformat"
)

// testFrame builds a w x h frame whose bottom row is red and every other row
// blue, stored bottom row first.
func testFrame(w, h int) *dataformat.TexturePose {
	img := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			if y == 0 {
				img[i] = 0xff
			} else {
				img[i+2] = 0xff
			}
		}
	}
	return &dataformat.TexturePose{
		OffloadDuration:  12 * time.Millisecond,
		Image:            img,
		Width:            w,
		Height:           h,
		PoseTime:         1500 * time.Microsecond,
		Position:         dataformat.Vec3{X: 0.5, Y: -1.25, Z: 2},
		LatestQuaternion: dataformat.Identity(),
		RenderQuaternion: dataformat.Quat{W: 0.707107, X: 0, Y: 0.707107, Z: 0},
	}
}

func TestFrameImage_FlipsVertically(t *testing.T) {
	img, err := frameImage(testFrame(4, 3))
	require.NoError(t, err)

	r, _, b, a := img.At(0, 2).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0), b)
	assert.Equal(t, uint32(0xffff), a)

	r, _, b, _ = img.At(3, 0).RGBA()
	assert.Equal(t, uint32(0), r)
	assert.Equal(t, uint32(0xffff), b)
}

func TestFrameImage_WrongSize(t *testing.T) {
	tp := testFrame(4, 3)
	tp.Image = tp.Image[:10]
	_, err := frameImage(tp)
	assert.Error(t, err)
}

func TestEncodeFrame(t *testing.T) {
	data, err := encodeFrame(testFrame(8, 4), 1)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())

	data, err = encodeFrame(testFrame(8, 4), 0.5)
	require.NoError(t, err)
	img, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
}

func TestPoseText(t *testing.T) {
	want := "strTime: 1500000\n" +
		"pos: 0.5 -1.25 2 \n" +
		"latest_pose_orientation: 1 0 0 0\n" +
		"render_pose_orientation: 0.707107 0 0.707107 0"
	assert.Equal(t, want, poseText(testFrame(1, 1)))
}

func TestComputeStats(t *testing.T) {
	tests := []struct {
		name string
		ms   []int64
		want Stats
	}{
		{"empty", nil, Stats{}},
		{"single", []int64{7}, Stats{Mean: 7, Max: 7, Min: 7, Count: 1}},
		{"several", []int64{2, 4, 4, 4, 5, 5, 7, 9}, Stats{Mean: 5, Max: 9, Min: 2, Stdev: 2.138089935299395, Count: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeStats(tt.ms)
			assert.Equal(t, tt.want.Count, got.Count)
			assert.Equal(t, tt.want.Max, got.Max)
			assert.Equal(t, tt.want.Min, got.Min)
			assert.InDelta(t, tt.want.Mean, got.Mean, 1e-9)
			assert.InDelta(t, tt.want.Stdev, got.Stdev, 1e-9)
		})
	}
}

func TestMetadataText(t *testing.T) {
	want := "mean: 20\n" +
		"max: 30\n" +
		"min: 10\n" +
		"stdev: 10\n" +
		"total number: 3\n" +
		"raw time: \n" +
		"10 30 20 \n\n\n" +
		"ordered time: \n" +
		"30 20 10 "
	assert.Equal(t, want, metadataText([]int64{10, 30, 20}))
}
