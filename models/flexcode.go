package models

import "image"

// Symbology selects the barcode format a flexcode is rendered into.
type Symbology string

const (
	SymbologyQR      Symbology = "qr"
	SymbologyPDF417  Symbology = "pdf417"
	SymbologyCode128 Symbology = "code128"
)

// Flexcode is a short-lived one-time code rendered for point-of-sale
// presentation. Regenerated every TOTP time step (about 30s); the image
// may be nil when rendering failed but the code itself is still usable.
type Flexcode struct {
	Code  string
	Image image.Image
}
