// Package pkpass renders, signs and packages wallet pass archives.
//
// The file format is a flat zip containing pass.json, a manifest.json that
// maps every file name to its SHA-1 digest, and a detached PKCS#7 signature
// over the manifest bytes. Key names in pass.json follow the wallet
// platform's camelCase vocabulary.
package pkpass

// TextAlignment positions a field's value text.
type TextAlignment string

const (
	AlignLeft      TextAlignment = "PKTextAlignmentLeft"
	AlignCenter    TextAlignment = "PKTextAlignmentCenter"
	AlignRight     TextAlignment = "PKTextAlignmentRight"
	AlignJustified TextAlignment = "PKTextAlignmentJustified"
	AlignNatural   TextAlignment = "PKTextAlignmentNatural"
)

// DateStyle selects how a date or time component is displayed.
type DateStyle string

const (
	DateStyleNone   DateStyle = "PKDateStyleNone"
	DateStyleShort  DateStyle = "PKDateStyleShort"
	DateStyleMedium DateStyle = "PKDateStyleMedium"
	DateStyleLong   DateStyle = "PKDateStyleLong"
	DateStyleFull   DateStyle = "PKDateStyleFull"
)

// NumberStyle selects how a numeric value is displayed.
type NumberStyle string

const (
	NumberStyleDecimal    NumberStyle = "PKNumberStyleDecimal"
	NumberStylePercent    NumberStyle = "PKNumberStylePercent"
	NumberStyleScientific NumberStyle = "PKNumberStyleScientific"
	NumberStyleSpellOut   NumberStyle = "PKNumberStyleSpellOut"
)

// Fielder is a single display field entry in a pass.json field group.
type Fielder interface {
	jsonMap() map[string]any
}

// Field is a labeled key/value entry shown on the face or back of a pass.
// Key must be unique within its field group.
type Field struct {
	Key           string
	Value         any
	Label         string
	ChangeMessage string
	TextAlignment TextAlignment
}

func (f Field) jsonMap() map[string]any {
	m := map[string]any{
		"key":   f.Key,
		"value": f.Value,
	}
	if f.Label != "" {
		m["label"] = f.Label
	}
	if f.ChangeMessage != "" {
		m["changeMessage"] = f.ChangeMessage
	}
	alignment := f.TextAlignment
	if alignment == "" {
		alignment = AlignLeft
	}
	m["textAlignment"] = alignment
	return m
}

// DateField is a Field whose value is a date or timestamp.
type DateField struct {
	Field
	DateStyle  DateStyle
	TimeStyle  DateStyle
	IsRelative bool
}

func (f DateField) jsonMap() map[string]any {
	m := f.Field.jsonMap()
	dateStyle := f.DateStyle
	if dateStyle == "" {
		dateStyle = DateStyleShort
	}
	timeStyle := f.TimeStyle
	if timeStyle == "" {
		timeStyle = DateStyleShort
	}
	m["dateStyle"] = dateStyle
	m["timeStyle"] = timeStyle
	m["isRelative"] = f.IsRelative
	return m
}

// NumberField is a Field whose value is numeric.
type NumberField struct {
	Field
	NumberStyle NumberStyle
}

func (f NumberField) jsonMap() map[string]any {
	m := f.Field.jsonMap()
	style := f.NumberStyle
	if style == "" {
		style = NumberStyleDecimal
	}
	m["numberStyle"] = style
	return m
}

// CurrencyField is a Field displayed as an amount of money.
type CurrencyField struct {
	Field
	// CurrencyCode is an ISO 4217 code, for example "EUR".
	CurrencyCode string
}

func (f CurrencyField) jsonMap() map[string]any {
	m := f.Field.jsonMap()
	if f.CurrencyCode != "" {
		m["currencyCode"] = f.CurrencyCode
	}
	return m
}
