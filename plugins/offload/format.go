package offload

import (
	"bytes"
	"cmp"
	"fmt"
	"image"
	"image/png"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/nfnt/resize"

	"github.com/leeforge/xrcore/dataformat"
)

// frameImage converts a bottom-up RGB8 frame into a top-down image.
func frameImage(tp *dataformat.TexturePose) (*image.RGBA, error) {
	w, h := tp.Size()
	stride := w * 3
	if len(tp.Image) != stride*h {
		return nil, fmt.Errorf("frame is %d bytes, want %dx%dx3", len(tp.Image), w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := tp.Image[(h-1-y)*stride : (h-y)*stride]
		dst := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return img, nil
}

// encodeFrame renders tp as PNG, downscaled by scale when scale < 1.
func encodeFrame(tp *dataformat.TexturePose, scale float64) ([]byte, error) {
	img, err := frameImage(tp)
	if err != nil {
		return nil, err
	}

	var out image.Image = img
	if scale > 0 && scale < 1 {
		w := uint(math.Max(1, math.Round(float64(img.Bounds().Dx())*scale)))
		out = resize.Resize(w, 0, img, resize.Bilinear)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// poseText renders the pose sidecar written next to each frame.
func poseText(tp *dataformat.TexturePose) string {
	var b strings.Builder
	fmt.Fprintf(&b, "strTime: %d\n", tp.PoseTime.Nanoseconds())

	b.WriteString("pos: ")
	for _, v := range []float64{tp.Position.X, tp.Position.Y, tp.Position.Z} {
		b.WriteString(formatFloat(v))
		b.WriteByte(' ')
	}
	b.WriteByte('\n')

	q := tp.LatestQuaternion
	fmt.Fprintf(&b, "latest_pose_orientation: %s %s %s %s\n",
		formatFloat(q.W), formatFloat(q.X), formatFloat(q.Y), formatFloat(q.Z))
	q = tp.RenderQuaternion
	fmt.Fprintf(&b, "render_pose_orientation: %s %s %s %s",
		formatFloat(q.W), formatFloat(q.X), formatFloat(q.Y), formatFloat(q.Z))
	return b.String()
}

// Stats summarises per-frame offload durations in milliseconds.
type Stats struct {
	Mean  float64
	Max   int64
	Min   int64
	Stdev float64 // sample standard deviation, 0 below two samples
	Count int
}

func computeStats(ms []int64) Stats {
	s := Stats{Count: len(ms)}
	if len(ms) == 0 {
		return s
	}

	var sum float64
	s.Max, s.Min = ms[0], ms[0]
	for _, v := range ms {
		sum += float64(v)
		s.Max = max(s.Max, v)
		s.Min = min(s.Min, v)
	}
	s.Mean = sum / float64(len(ms))

	if len(ms) > 1 {
		var accum float64
		for _, v := range ms {
			d := float64(v) - s.Mean
			accum += d * d
		}
		s.Stdev = math.Sqrt(accum / float64(len(ms)-1))
	}
	return s
}

// metadataText renders metadata.out.
func metadataText(ms []int64) string {
	s := computeStats(ms)

	var b strings.Builder
	fmt.Fprintf(&b, "mean: %s\n", formatFloat(s.Mean))
	fmt.Fprintf(&b, "max: %d\n", s.Max)
	fmt.Fprintf(&b, "min: %d\n", s.Min)
	fmt.Fprintf(&b, "stdev: %s\n", formatFloat(s.Stdev))
	fmt.Fprintf(&b, "total number: %d\n", s.Count)

	b.WriteString("raw time: \n")
	for _, v := range ms {
		fmt.Fprintf(&b, "%d ", v)
	}
	b.WriteString("\n\n\n")

	ordered := slices.Clone(ms)
	slices.SortFunc(ordered, func(a, b int64) int { return cmp.Compare(b, a) })
	b.WriteString("ordered time: \n")
	for _, v := range ordered {
		fmt.Fprintf(&b, "%d ", v)
	}
	return b.String()
}
