package pkpass

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Definition is the declarative JSON description of a pass's content. It is
// what operators store on a pass record and what walletctl reads from disk;
// Apply turns it into the style-specific part of a Template.
type Definition struct {
	Style       string `json:"style"`
	TransitType string `json:"transitType,omitempty"`

	HeaderFields    []FieldDef `json:"headerFields,omitempty"`
	PrimaryFields   []FieldDef `json:"primaryFields,omitempty"`
	SecondaryFields []FieldDef `json:"secondaryFields,omitempty"`
	BackFields      []FieldDef `json:"backFields,omitempty"`
	AuxiliaryFields []FieldDef `json:"auxiliaryFields,omitempty"`

	Barcode   *BarcodeDef   `json:"barcode,omitempty"`
	Locations []LocationDef `json:"locations,omitempty"`
	Beacons   []BeaconDef   `json:"beacons,omitempty"`

	RelevantDate               string         `json:"relevantDate,omitempty"`
	ExpirationDate             string         `json:"expirationDate,omitempty"`
	Voided                     bool           `json:"voided,omitempty"`
	SuppressStripShine         bool           `json:"suppressStripShine,omitempty"`
	WebServiceURL              string         `json:"webServiceURL,omitempty"`
	AppLaunchURL               string         `json:"appLaunchURL,omitempty"`
	AssociatedStoreIdentifiers []int64        `json:"associatedStoreIdentifiers,omitempty"`
	UserInfo                   map[string]any `json:"userInfo,omitempty"`
}

// FieldDef is one display field. The optional style attributes select the
// field variant: currencyCode wins over numberStyle, which wins over the
// date attributes.
type FieldDef struct {
	Key           string `json:"key"`
	Value         any    `json:"value"`
	Label         string `json:"label,omitempty"`
	ChangeMessage string `json:"changeMessage,omitempty"`
	TextAlignment string `json:"textAlignment,omitempty"`

	DateStyle  string `json:"dateStyle,omitempty"`
	TimeStyle  string `json:"timeStyle,omitempty"`
	IsRelative bool   `json:"isRelative,omitempty"`

	NumberStyle  string `json:"numberStyle,omitempty"`
	CurrencyCode string `json:"currencyCode,omitempty"`
}

type BarcodeDef struct {
	Format          string `json:"format,omitempty"`
	Message         string `json:"message"`
	MessageEncoding string `json:"messageEncoding,omitempty"`
	AltText         string `json:"altText,omitempty"`
}

// LocationDef accepts coordinates as JSON numbers or strings; bad numeric
// input degrades to 0.0 rather than failing the parse.
type LocationDef struct {
	Latitude     any    `json:"latitude"`
	Longitude    any    `json:"longitude"`
	Altitude     any    `json:"altitude,omitempty"`
	MaxDistance  int    `json:"maxDistance,omitempty"`
	RelevantText string `json:"relevantText,omitempty"`
}

type BeaconDef struct {
	ProximityUUID string `json:"proximityUUID"`
	Major         int    `json:"major"`
	Minor         int    `json:"minor"`
	RelevantText  string `json:"relevantText,omitempty"`
}

// ParseDefinition decodes and validates a definition document.
func ParseDefinition(data []byte) (*Definition, error) {
	var d Definition
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing pass definition: %w", err)
	}
	if _, err := d.information(); err != nil {
		return nil, err
	}
	if d.Barcode != nil && d.Barcode.Message == "" {
		return nil, fmt.Errorf("barcode message is required")
	}
	return &d, nil
}

// Apply fills in the content half of a Template: style information,
// barcode, relevance data and the optional top level keys.
func (d *Definition) Apply(t *Template) error {
	info, err := d.information()
	if err != nil {
		return err
	}
	t.Information = info

	if d.Barcode != nil {
		t.Barcode = &Barcode{
			Format:          BarcodeFormat(d.Barcode.Format),
			Message:         d.Barcode.Message,
			MessageEncoding: d.Barcode.MessageEncoding,
			AltText:         d.Barcode.AltText,
		}
	}
	for _, l := range d.Locations {
		t.Locations = append(t.Locations, Location{
			Latitude:     looseFloat(l.Latitude),
			Longitude:    looseFloat(l.Longitude),
			Altitude:     looseFloat(l.Altitude),
			MaxDistance:  l.MaxDistance,
			RelevantText: l.RelevantText,
		})
	}
	for _, b := range d.Beacons {
		t.Beacons = append(t.Beacons, Beacon{
			ProximityUUID: b.ProximityUUID,
			Major:         b.Major,
			Minor:         b.Minor,
			RelevantText:  b.RelevantText,
		})
	}

	t.RelevantDate = d.RelevantDate
	t.ExpirationDate = d.ExpirationDate
	t.Voided = d.Voided
	t.SuppressStripShine = d.SuppressStripShine
	t.WebServiceURL = d.WebServiceURL
	t.AppLaunchURL = d.AppLaunchURL
	t.AssociatedStoreIdentifiers = d.AssociatedStoreIdentifiers
	t.UserInfo = d.UserInfo
	return nil
}

func (d *Definition) information() (Information, error) {
	info := PassInformation{
		HeaderFields:    fielders(d.HeaderFields),
		PrimaryFields:   fielders(d.PrimaryFields),
		SecondaryFields: fielders(d.SecondaryFields),
		BackFields:      fielders(d.BackFields),
		AuxiliaryFields: fielders(d.AuxiliaryFields),
	}

	switch d.Style {
	case "boardingPass":
		return &BoardingPass{PassInformation: info, TransitType: TransitType(d.TransitType)}, nil
	case "coupon":
		return &Coupon{PassInformation: info}, nil
	case "eventTicket":
		return &EventTicket{PassInformation: info}, nil
	case "generic":
		return &Generic{PassInformation: info}, nil
	case "storeCard":
		return &StoreCard{PassInformation: info}, nil
	default:
		return nil, fmt.Errorf("unknown pass style %q", d.Style)
	}
}

func fielders(defs []FieldDef) []Fielder {
	out := make([]Fielder, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.fielder())
	}
	return out
}

func (f FieldDef) fielder() Fielder {
	base := Field{
		Key:           f.Key,
		Value:         f.Value,
		Label:         f.Label,
		ChangeMessage: f.ChangeMessage,
		TextAlignment: TextAlignment(f.TextAlignment),
	}
	switch {
	case f.CurrencyCode != "":
		return CurrencyField{Field: base, CurrencyCode: f.CurrencyCode}
	case f.NumberStyle != "":
		return NumberField{Field: base, NumberStyle: NumberStyle(f.NumberStyle)}
	case f.DateStyle != "" || f.TimeStyle != "" || f.IsRelative:
		return DateField{
			Field:      base,
			DateStyle:  DateStyle(f.DateStyle),
			TimeStyle:  DateStyle(f.TimeStyle),
			IsRelative: f.IsRelative,
		}
	default:
		return base
	}
}

func looseFloat(v any) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case string:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0.0
		}
		return f
	case json.Number:
		f, err := value.Float64()
		if err != nil {
			return 0.0
		}
		return f
	default:
		return 0.0
	}
}
