package pkpass

import (
	"encoding/json"
	"fmt"
	"io"
)

// FormatVersion is the only pass file format version the platform defines.
const FormatVersion = 1

// Template is everything needed to render a pass.json document: the
// standard top level keys, the style-specific field groups, and any
// attached asset files (images, localization bundles).
type Template struct {
	PassTypeID          string
	SerialNumber        string
	TeamID              string
	OrganizationName    string
	Description         string
	Information         Information
	Barcode             *Barcode
	Locations           []Location
	Beacons             []Beacon
	RelevantDate        string
	BackgroundColor     string
	ForegroundColor     string
	LabelColor          string
	LogoText            string
	SuppressStripShine  bool
	WebServiceURL       string
	AuthenticationToken string

	AssociatedStoreIdentifiers []int64
	AppLaunchURL               string
	UserInfo                   map[string]any
	ExpirationDate             string
	Voided                     bool

	files map[string][]byte
}

// AddFile attaches an auxiliary file to be packaged and listed in the
// manifest, for example icon.png or a .lproj localization entry.
func (t *Template) AddFile(name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if t.files == nil {
		t.files = map[string][]byte{}
	}
	t.files[name] = data
	return nil
}

// PassJSON serializes the template into the pass.json document. Optional
// keys are only present when set; map marshaling keeps the output
// byte-stable for identical input, which keeps manifests reproducible.
func (t *Template) PassJSON() ([]byte, error) {
	if t.Information == nil {
		return nil, fmt.Errorf("pass %s has no style information", t.SerialNumber)
	}

	m := map[string]any{
		"formatVersion":      FormatVersion,
		"passTypeIdentifier": t.PassTypeID,
		"serialNumber":       t.SerialNumber,
		"teamIdentifier":     t.TeamID,
		"organizationName":   t.OrganizationName,
		"description":        t.Description,
		"suppressStripShine": t.SuppressStripShine,
		t.Information.name(): t.Information.jsonMap(),
	}

	if t.Barcode != nil {
		m["barcode"] = t.Barcode.jsonMap()
	}
	if len(t.Locations) > 0 {
		locations := make([]map[string]any, 0, len(t.Locations))
		for _, l := range t.Locations {
			locations = append(locations, l.jsonMap())
		}
		m["locations"] = locations
	}
	if len(t.Beacons) > 0 {
		beacons := make([]map[string]any, 0, len(t.Beacons))
		for _, b := range t.Beacons {
			beacons = append(beacons, b.jsonMap())
		}
		m["beacons"] = beacons
	}
	if t.RelevantDate != "" {
		m["relevantDate"] = t.RelevantDate
	}
	if t.BackgroundColor != "" {
		m["backgroundColor"] = t.BackgroundColor
	}
	if t.ForegroundColor != "" {
		m["foregroundColor"] = t.ForegroundColor
	}
	if t.LabelColor != "" {
		m["labelColor"] = t.LabelColor
	}
	if t.LogoText != "" {
		m["logoText"] = t.LogoText
	}
	if len(t.AssociatedStoreIdentifiers) > 0 {
		m["associatedStoreIdentifiers"] = t.AssociatedStoreIdentifiers
	}
	if t.AppLaunchURL != "" {
		m["appLaunchURL"] = t.AppLaunchURL
	}
	if t.UserInfo != nil {
		m["userInfo"] = t.UserInfo
	}
	if t.ExpirationDate != "" {
		m["expirationDate"] = t.ExpirationDate
	}
	if t.Voided {
		m["voided"] = true
	}
	if t.WebServiceURL != "" {
		m["webServiceURL"] = t.WebServiceURL
		m["authenticationToken"] = t.AuthenticationToken
	}

	return json.Marshal(m)
}
