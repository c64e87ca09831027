package pkpass

import "strconv"

// BarcodeFormat identifies the symbology of a pass barcode.
type BarcodeFormat string

const (
	BarcodePDF417  BarcodeFormat = "PKBarcodeFormatPDF417"
	BarcodeQR      BarcodeFormat = "PKBarcodeFormatQR"
	BarcodeAztec   BarcodeFormat = "PKBarcodeFormatAztec"
	BarcodeCode128 BarcodeFormat = "PKBarcodeFormatCode128"
)

// Barcode is the machine readable payload displayed on a pass.
type Barcode struct {
	Format BarcodeFormat
	// Message is the payload encoded into the barcode.
	Message string
	// MessageEncoding is the text encoding used to render Message.
	MessageEncoding string
	// AltText is shown near the barcode for humans.
	AltText string
}

func (b Barcode) jsonMap() map[string]any {
	format := b.Format
	if format == "" {
		format = BarcodePDF417
	}
	encoding := b.MessageEncoding
	if encoding == "" {
		encoding = "iso-8859-1"
	}
	m := map[string]any{
		"format":          format,
		"message":         b.Message,
		"messageEncoding": encoding,
	}
	if b.AltText != "" {
		m["altText"] = b.AltText
	}
	return m
}

// Location is a place where the pass is relevant, for example a store.
type Location struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	// MaxDistance is the notification radius in meters. Zero means the
	// platform default.
	MaxDistance int
	// RelevantText is shown on the lock screen near the location.
	RelevantText string
}

// NewLocation builds a Location from textual coordinates. Location data is
// advisory, so unparsable numeric input degrades to 0.0 instead of failing.
func NewLocation(latitude, longitude, altitude string) Location {
	return Location{
		Latitude:  coordinate(latitude),
		Longitude: coordinate(longitude),
		Altitude:  coordinate(altitude),
	}
}

func coordinate(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0
	}
	return v
}

func (l Location) jsonMap() map[string]any {
	m := map[string]any{
		"latitude":  l.Latitude,
		"longitude": l.Longitude,
		"altitude":  l.Altitude,
	}
	if l.MaxDistance > 0 {
		m["maxDistance"] = l.MaxDistance
	}
	if l.RelevantText != "" {
		m["relevantText"] = l.RelevantText
	}
	return m
}

// Beacon is an iBeacon region where the pass is relevant.
type Beacon struct {
	ProximityUUID string
	Major         int
	Minor         int
	RelevantText  string
}

func (b Beacon) jsonMap() map[string]any {
	m := map[string]any{
		"proximityUUID": b.ProximityUUID,
		"major":         b.Major,
		"minor":         b.Minor,
	}
	if b.RelevantText != "" {
		m["relevantText"] = b.RelevantText
	}
	return m
}
