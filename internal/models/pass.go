package models

import (
	"encoding/json"
	"time"
)

// TimeFormat is the textual form of a pass update time. It is the format
// devices send in passesUpdatedSince queries and the format returned in the
// lastUpdated response field, so it must stay stable across releases.
const TimeFormat = "2006-01-02 15:04:05"

// Pass is a single wallet card, ticket or coupon. A pass is identified by
// the (pass_type_id, serial_number) pair; the authentication token is the
// shared secret a device presents on every web service call for this pass.
type Pass struct {
	Base
	PassTypeID          string    `json:"pass_type_id" gorm:"uniqueIndex:idx_passes_type_serial" example:"pass.com.example.loyalty"`
	SerialNumber        string    `json:"serial_number" gorm:"uniqueIndex:idx_passes_type_serial" example:"NX-8J23FM3"`
	AuthenticationToken string    `json:"authentication_token"`
	OrganizationName    string    `json:"organization_name" example:"Example Corp"`
	TeamID              string    `json:"team_id" example:"A93FJ38DL2"`
	Description         string    `json:"description"`
	LogoText            string    `json:"logo_text,omitempty"`
	BackgroundColor     string    `json:"background_color,omitempty" example:"rgb(33, 70, 135)"`
	ForegroundColor     string    `json:"foreground_color,omitempty"`
	LabelColor          string    `json:"label_color,omitempty"`
	// Definition is the declarative content of the pass (style, field
	// groups, barcode, relevance data) used to rebuild the archive.
	Definition json.RawMessage `json:"definition,omitempty" gorm:"type:bytes;serializer:json" swaggertype:"object"`
	// ArchivePath points at the last generated .pkpass blob. The blob is a
	// derived artifact and is overwritten on every content update.
	ArchivePath string `json:"-"`
	// Utime is the time of the last content-affecting update, truncated to
	// second resolution. It is the sole basis for change detection.
	Utime time.Time `json:"utime"`
}

// UpdatedAtText renders Utime in the wire format used by the web service.
func (p *Pass) UpdatedAtText() string {
	return p.Utime.UTC().Format(TimeFormat)
}

// SerialNumbers is the body returned to a device polling for changed
// passes. Field names are fixed by the wallet platform.
type SerialNumbers struct {
	LastUpdated   string   `json:"lastUpdated" example:"2024-01-15 10:30:00"`
	SerialNumbers []string `json:"serialNumbers"`
}

// AddPass is the information needed to create or replace a Pass.
type AddPass struct {
	PassTypeID          string          `json:"pass_type_id" example:"pass.com.example.loyalty"`
	SerialNumber        string          `json:"serial_number" example:"NX-8J23FM3"`
	AuthenticationToken string          `json:"authentication_token"`
	OrganizationName    string          `json:"organization_name" example:"Example Corp"`
	TeamID              string          `json:"team_id" example:"A93FJ38DL2"`
	Description         string          `json:"description"`
	LogoText            string          `json:"logo_text"`
	BackgroundColor     string          `json:"background_color"`
	ForegroundColor     string          `json:"foreground_color"`
	LabelColor          string          `json:"label_color"`
	Definition          json.RawMessage `json:"definition" swaggertype:"object"`
}
