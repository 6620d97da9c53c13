package harness

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/MrMartyK/source1.5/internal/config"
	"github.com/MrMartyK/source1.5/internal/fsutil"
)

// Comparator scores a freshly captured screenshot against the golden
// reference for the same map/position, bootstrapping missing goldens.
type Comparator struct {
	cfg *config.Config
	log *slog.Logger
}

// NewComparator creates a comparator bound to one run configuration.
func NewComparator(cfg *config.Config, logger *slog.Logger) *Comparator {
	return &Comparator{cfg: cfg, log: logger}
}

// Compare evaluates the candidate screenshot for pos. When no golden
// exists yet, the candidate becomes the golden and the position passes:
// first observation is ground truth.
func (c *Comparator) Compare(pos config.CameraPosition) (Outcome, error) {
	name := fmt.Sprintf("%s_%s.tga", c.cfg.MapName, pos.Name)
	candidatePath := filepath.Join(c.cfg.ScreenshotDir, name)
	goldenPath := filepath.Join(c.cfg.GoldenDir, name)

	if !fsutil.Exists(goldenPath) {
		c.log.Warn("golden screenshot missing, seeding from candidate",
			"position", pos.Name,
			"golden", goldenPath,
		)
		if err := fsutil.CopyFile(candidatePath, goldenPath); err != nil {
			return Outcome{}, fmt.Errorf("seed golden %s: %w", goldenPath, err)
		}
		return Outcome{
			MapName:    c.cfg.MapName,
			Position:   pos.Name,
			Similarity: 1.0,
			MSE:        0.0,
			Passed:     true,
			Threshold:  config.DefaultThreshold,
		}, nil
	}

	candidate, err := loadImage(candidatePath)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s: %v", ErrImageLoad, candidatePath, err)
	}
	golden, err := loadImage(goldenPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s: %v", ErrImageLoad, goldenPath, err)
	}

	ssim := similarity(candidate, golden)
	mse := meanSquaredError(candidate, golden)
	if math.IsInf(mse, 1) {
		c.log.Warn("image dimensions don't match",
			"position", pos.Name,
			"candidate", candidate.Bounds(),
			"golden", golden.Bounds(),
		)
	}

	threshold := pos.SimilarityThreshold()
	return Outcome{
		MapName:    c.cfg.MapName,
		Position:   pos.Name,
		Similarity: ssim,
		MSE:        mse,
		Passed:     ssim >= threshold,
		Threshold:  threshold,
	}, nil
}

// loadImage decodes a screenshot. TGA carries no magic bytes, so it is
// dispatched on extension; everything else goes through the registered
// stdlib and x/image decoders.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".tga") {
		return tga.Decode(f)
	}
	img, _, err := image.Decode(f)
	return img, err
}

// similarity is a deliberately cheap structural-similarity proxy: the
// correlation coefficient of the two luminance fields, clamped to [0,1].
// Accepted golden baselines were scored with exactly this metric; changing
// it invalidates them, so any replacement must be an explicit versioned
// migration, not a drop-in.
func similarity(a, b image.Image) float64 {
	lumA := luminance(a)
	lumB := luminance(b)

	// Differently sized captures still get a score: correlate over the
	// shared top-left region. The MSE sentinel flags the mismatch.
	if len(lumA) != len(lumB) {
		w := min(a.Bounds().Dx(), b.Bounds().Dx())
		h := min(a.Bounds().Dy(), b.Bounds().Dy())
		lumA = cropLuminance(a, w, h)
		lumB = cropLuminance(b, w, h)
		if len(lumA) == 0 {
			return 0.0
		}
	}

	meanA := mean(lumA)
	meanB := mean(lumB)
	stdA := stddev(lumA, meanA)
	stdB := stddev(lumB, meanB)

	if stdA == 0 || stdB == 0 {
		if equalFields(lumA, lumB) {
			return 1.0
		}
		return 0.0
	}

	var cov float64
	for i := range lumA {
		cov += (lumA[i] - meanA) * (lumB[i] - meanB)
	}
	cov /= float64(len(lumA))

	return clamp01(cov / (stdA * stdB))
}

// meanSquaredError is the mean squared per-channel, per-pixel difference.
// It is informational only: a shape mismatch yields +Inf but never flips
// the pass/fail decision, which is driven solely by similarity.
func meanSquaredError(a, b image.Image) float64 {
	if !a.Bounds().Size().Eq(b.Bounds().Size()) || channelCount(a) != channelCount(b) {
		return math.Inf(1)
	}

	n := channelCount(a)
	boundsA := a.Bounds()
	boundsB := b.Bounds()

	var sum float64
	var count int
	for y := 0; y < boundsA.Dy(); y++ {
		for x := 0; x < boundsA.Dx(); x++ {
			ca := pixelChannels(a, boundsA.Min.X+x, boundsA.Min.Y+y)
			cb := pixelChannels(b, boundsB.Min.X+x, boundsB.Min.Y+y)
			for i := 0; i < n; i++ {
				d := ca[i] - cb[i]
				sum += d * d
			}
			count += n
		}
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

// luminance flattens an image to ITU-R 601 grey levels in row-major order.
func luminance(img image.Image) []float64 {
	bounds := img.Bounds()
	out := make([]float64, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out = append(out, luma(img, x, y))
		}
	}
	return out
}

func cropLuminance(img image.Image, w, h int) []float64 {
	bounds := img.Bounds()
	out := make([]float64, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out = append(out, luma(img, bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return out
}

func luma(img image.Image, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	// RGBA returns 16-bit channels; scale down to the 8-bit range the
	// engine writes.
	return (0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8))
}

// channelCount mirrors how the decoded pixel data is shaped, so that a
// grayscale golden compared against a color candidate is reported as a
// shape mismatch rather than silently averaged together.
func channelCount(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.YCbCr, *image.CMYK:
		return 3
	default:
		return 4
	}
}

func pixelChannels(img image.Image, x, y int) [4]float64 {
	r, g, b, a := img.At(x, y).RGBA()
	return [4]float64{
		float64(r >> 8),
		float64(g >> 8),
		float64(b >> 8),
		float64(a >> 8),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func equalFields(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
