package pkpass

// TransitType is the mode of transport shown on a boarding pass.
type TransitType string

const (
	TransitAir     TransitType = "PKTransitTypeAir"
	TransitTrain   TransitType = "PKTransitTypeTrain"
	TransitBus     TransitType = "PKTransitTypeBus"
	TransitBoat    TransitType = "PKTransitTypeBoat"
	TransitGeneric TransitType = "PKTransitTypeGeneric"
)

// Information is the style-specific body of a pass. Each pass style keeps
// its own top level key in pass.json.
type Information interface {
	name() string
	jsonMap() map[string]any
}

// PassInformation holds the five ordered field groups shared by every pass
// style. Groups that stay empty are omitted from the serialized form.
type PassInformation struct {
	HeaderFields    []Fielder
	PrimaryFields   []Fielder
	SecondaryFields []Fielder
	BackFields      []Fielder
	AuxiliaryFields []Fielder
}

func (p *PassInformation) AddHeaderField(f Fielder) {
	p.HeaderFields = append(p.HeaderFields, f)
}

func (p *PassInformation) AddPrimaryField(f Fielder) {
	p.PrimaryFields = append(p.PrimaryFields, f)
}

func (p *PassInformation) AddSecondaryField(f Fielder) {
	p.SecondaryFields = append(p.SecondaryFields, f)
}

func (p *PassInformation) AddBackField(f Fielder) {
	p.BackFields = append(p.BackFields, f)
}

func (p *PassInformation) AddAuxiliaryField(f Fielder) {
	p.AuxiliaryFields = append(p.AuxiliaryFields, f)
}

func fieldMaps(fields []Fielder) []map[string]any {
	out := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.jsonMap())
	}
	return out
}

func (p *PassInformation) jsonMap() map[string]any {
	m := map[string]any{}
	if len(p.HeaderFields) > 0 {
		m["headerFields"] = fieldMaps(p.HeaderFields)
	}
	if len(p.PrimaryFields) > 0 {
		m["primaryFields"] = fieldMaps(p.PrimaryFields)
	}
	if len(p.SecondaryFields) > 0 {
		m["secondaryFields"] = fieldMaps(p.SecondaryFields)
	}
	if len(p.BackFields) > 0 {
		m["backFields"] = fieldMaps(p.BackFields)
	}
	if len(p.AuxiliaryFields) > 0 {
		m["auxiliaryFields"] = fieldMaps(p.AuxiliaryFields)
	}
	return m
}

// BoardingPass is the boarding pass style. TransitType is required by the
// format and defaults to air travel.
type BoardingPass struct {
	PassInformation
	TransitType TransitType
}

func (b *BoardingPass) name() string { return "boardingPass" }

func (b *BoardingPass) jsonMap() map[string]any {
	m := b.PassInformation.jsonMap()
	transit := b.TransitType
	if transit == "" {
		transit = TransitAir
	}
	m["transitType"] = transit
	return m
}

// Coupon is the coupon pass style.
type Coupon struct {
	PassInformation
}

func (c *Coupon) name() string { return "coupon" }

// EventTicket is the event ticket pass style.
type EventTicket struct {
	PassInformation
}

func (e *EventTicket) name() string { return "eventTicket" }

// Generic is the catch-all pass style.
type Generic struct {
	PassInformation
}

func (g *Generic) name() string { return "generic" }

// StoreCard is the store card / loyalty card pass style.
type StoreCard struct {
	PassInformation
}

func (s *StoreCard) name() string { return "storeCard" }
