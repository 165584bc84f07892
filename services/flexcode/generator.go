// Package flexcode derives short-lived point-of-sale codes from one-time
// keys and renders them into scannable barcode images.
package flexcode

import (
	"encoding/base32"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/pdf417"
	"github.com/boombuler/barcode/qr"
	lru "github.com/hashicorp/golang-lru/v2"

	"flexa/internal/totp"
	"flexa/models"
)

var (
	ErrKeyExpired    = errors.New("flexcode: one-time key is expired")
	ErrBadSecret     = errors.New("flexcode: secret is not valid base32")
	ErrNoSymbologies = errors.New("flexcode: no symbologies requested")
)

const (
	// timeStep is the TOTP rotation period; codes change every 30s.
	timeStep = 30

	// DefaultCacheSize bounds the rendered-image cache. Codes rotate every
	// time step, so even a busy wallet cycles through few distinct codes.
	DefaultCacheSize = 128

	pdf417SecurityLevel = 2
)

// Options selects what Generate renders.
type Options struct {
	Symbologies []models.Symbology
	// Scale multiplies the barcode's intrinsic pixel size. Values below 1
	// are treated as 1.
	Scale int
	// UseCache returns previously rendered images for an identical code
	// string instead of re-rendering.
	UseCache bool
}

// Generator derives codes and renders barcode images for them.
type Generator struct {
	log   *slog.Logger
	now   func() time.Time
	cache *lru.Cache[string, map[models.Symbology]image.Image]
}

// NewGenerator creates a generator with a bounded image cache.
func NewGenerator() (*Generator, error) {
	cache, err := lru.New[string, map[models.Symbology]image.Image](DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}
	return &Generator{
		log:   slog.Default().With("component", "flexcode"),
		now:   time.Now,
		cache: cache,
	}, nil
}

// Code derives the current code string for a key: the key's prefix plus a
// TOTP over its secret, using server-corrected time.
func (g *Generator) Code(key models.OneTimeKey) (string, error) {
	if key.IsExpired() {
		return "", ErrKeyExpired
	}

	secret, err := decodeSecret(key.Secret)
	if err != nil {
		return "", err
	}

	otp, err := totp.Generate(secret, key.Length, timeStep, totp.SHA1, g.effectiveSeconds(key))
	if err != nil {
		return "", fmt.Errorf("derive code: %w", err)
	}
	return key.Prefix + otp, nil
}

// effectiveSeconds corrects local time by the key's server offset,
// rounded to the nearest even second.
func (g *Generator) effectiveSeconds(key models.OneTimeKey) int64 {
	corrected := float64(g.now().Unix() - key.ServerTimeOffset)
	return int64(math.Round(corrected/2)) * 2
}

// Generate derives the key's current code and renders it in every
// requested symbology. A symbology that fails to render is logged and
// skipped; the others still succeed.
func (g *Generator) Generate(key models.OneTimeKey, opts Options) (map[models.Symbology]models.Flexcode, error) {
	if len(opts.Symbologies) == 0 {
		return nil, ErrNoSymbologies
	}

	code, err := g.Code(key)
	if err != nil {
		return nil, err
	}

	var cached map[models.Symbology]image.Image
	if opts.UseCache {
		if hit, ok := g.cache.Get(code); ok {
			cached = hit
		}
	}

	images := make(map[models.Symbology]image.Image, len(opts.Symbologies))
	out := make(map[models.Symbology]models.Flexcode, len(opts.Symbologies))
	for _, sym := range opts.Symbologies {
		img, ok := cached[sym]
		if !ok {
			img, err = render(code, sym, opts.Scale)
			if err != nil {
				g.log.Warn("render failed", "symbology", sym, "error", err)
				out[sym] = models.Flexcode{Code: code}
				continue
			}
		}
		images[sym] = img
		out[sym] = models.Flexcode{Code: code, Image: img}
	}

	if opts.UseCache && len(images) > 0 {
		g.cache.Add(code, images)
	}
	return out, nil
}

// GenerateAll renders codes for a set of keys, keyed by asset. Keys that
// fail (expired, undecodable secret) are logged and skipped rather than
// failing the batch.
func (g *Generator) GenerateAll(keys []models.OneTimeKey, opts Options) map[string]map[models.Symbology]models.Flexcode {
	out := make(map[string]map[models.Symbology]models.Flexcode, len(keys))
	for _, key := range keys {
		codes, err := g.Generate(key, opts)
		if err != nil {
			g.log.Warn("skipping key", "key", key.ID, "asset", key.Asset, "error", err)
			continue
		}
		out[key.Asset] = codes
	}
	return out
}

func decodeSecret(s string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimRight(s, "="))
	secret, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSecret, err)
	}
	return secret, nil
}

func render(code string, sym models.Symbology, scale int) (image.Image, error) {
	if scale < 1 {
		scale = 1
	}

	var bc barcode.Barcode
	var err error
	switch sym {
	case models.SymbologyQR:
		bc, err = qr.Encode(code, qr.M, qr.Auto)
	case models.SymbologyPDF417:
		bc, err = pdf417.Encode(code, pdf417SecurityLevel)
	case models.SymbologyCode128:
		bc, err = code128.Encode(code)
	default:
		return nil, fmt.Errorf("unsupported symbology %q", sym)
	}
	if err != nil {
		return nil, err
	}

	bounds := bc.Bounds()
	return barcode.Scale(bc, bounds.Dx()*scale, bounds.Dy()*scale)
}
