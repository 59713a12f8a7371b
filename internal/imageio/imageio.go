// Package imageio resolves image references (local paths or s3:// URLs),
// decodes them and derives the content identity used for caching.
package imageio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"segd/internal/common/fsutil"
)

var (
	// ErrInvalidPath is returned for empty, missing or unreadable image references.
	ErrInvalidPath = errors.New("invalid image path")
	// ErrDecode is returned when the bytes are not an image in a supported format.
	ErrDecode = errors.New("cannot decode image")
)

// Source is a resolved image reference.
type Source struct {
	// Ref is the reference as given by the caller.
	Ref     string
	Size    int64
	ModTime time.Time
	ETag    string

	open func(ctx context.Context) (io.ReadCloser, error)
}

// Identity describes the image content well enough to key caches: the
// reference plus size and modification time, or the object ETag for S3.
func (s Source) Identity() string {
	if s.ETag != "" {
		return s.Ref + "|" + s.ETag
	}
	return s.Ref + "|" + strconv.FormatInt(s.Size, 10) + "|" + strconv.FormatInt(s.ModTime.UnixNano(), 10)
}

// Loader resolves and reads images.
type Loader struct {
	s3  *s3Store
	log zerolog.Logger
}

// LoaderConfig configures a Loader. S3 may be nil, in which case s3://
// references are rejected.
type LoaderConfig struct {
	S3     ObjectAPI
	Logger *zerolog.Logger
}

// NewLoader returns a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	l := &Loader{log: zerolog.Nop()}
	if cfg.Logger != nil {
		l.log = *cfg.Logger
	}
	if cfg.S3 != nil {
		l.s3 = newS3Store(cfg.S3, l.log)
	}
	return l
}

// Resolve checks that ref points to a readable image and returns its Source.
func (l *Loader) Resolve(ctx context.Context, ref string) (Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Source{}, ErrInvalidPath
	}
	if strings.HasPrefix(ref, "s3://") {
		if l.s3 == nil {
			return Source{}, fmt.Errorf("%w: s3 is not configured", ErrInvalidPath)
		}
		return l.s3.resolve(ctx, ref)
	}
	p, err := fsutil.ExpandHome(ref)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return Source{}, ErrInvalidPath
	}
	return Source{
		Ref:     ref,
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		open: func(context.Context) (io.ReadCloser, error) {
			f, err := os.Open(p)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
			}
			return f, nil
		},
	}, nil
}

// Load reads and decodes src into an opaque RGB image.
func (l *Loader) Load(ctx context.Context, src Source) (*image.RGBA, error) {
	if src.open == nil {
		return nil, ErrInvalidPath
	}
	rc, err := src.open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, _, err := Decode(rc)
	if err != nil {
		return nil, err
	}
	l.log.Debug().Str("image", src.Ref).Int("width", img.Rect.Dx()).Int("height", img.Rect.Dy()).Msg("image loaded")
	return img, nil
}

// Open resolves and loads ref in one step.
func (l *Loader) Open(ctx context.Context, ref string) (Source, *image.RGBA, error) {
	src, err := l.Resolve(ctx, ref)
	if err != nil {
		return Source{}, nil, err
	}
	img, err := l.Load(ctx, src)
	if err != nil {
		return Source{}, nil, err
	}
	return src, img, nil
}

// Decode decodes any registered format and converts the result to RGB.
func Decode(r io.Reader) (*image.RGBA, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return ToRGB(img), format, nil
}

// ToRGB copies img into an origin-based RGBA with every pixel opaque. Colour
// channels keep their straight (non-premultiplied) values.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src := img.(type) {
	case *image.RGBA:
		if opaque(src) {
			draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
			return dst
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			out := dst.Pix[y*dst.Stride:]
			for x := 0; x < b.Dx(); x++ {
				copy(out[x*4:x*4+3], row[x*4:x*4+3])
				out[x*4+3] = 0xff
			}
		}
		return dst
	case *image.NRGBA64:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := src.NRGBA64At(b.Min.X+x, b.Min.Y+y)
				dst.SetRGBA(x, y, color.RGBA{R: uint8(c.R >> 8), G: uint8(c.G >> 8), B: uint8(c.B >> 8), A: 0xff})
			}
		}
		return dst
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

func opaque(img *image.RGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 3; i < len(row); i += 4 {
			if row[i] != 0xff {
				return false
			}
		}
	}
	return true
}
