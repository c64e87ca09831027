package migration_20240115_0000

import (
	"encoding/json"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	. "github.com/walletd-io/walletd/internal/database/migrations"
)

type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Pass struct {
	Base
	PassTypeID          string `gorm:"uniqueIndex:idx_passes_type_serial"`
	SerialNumber        string `gorm:"uniqueIndex:idx_passes_type_serial"`
	AuthenticationToken string
	OrganizationName    string
	TeamID              string
	Description         string
	LogoText            string
	BackgroundColor     string
	ForegroundColor     string
	LabelColor          string
	Definition          json.RawMessage `gorm:"type:bytes;serializer:json"`
	ArchivePath         string
	Utime               time.Time
}

type Device struct {
	Base
	DeviceLibraryID string `gorm:"uniqueIndex"`
	PushToken       string
}

type Registration struct {
	Base
	PassID   uuid.UUID `gorm:"uniqueIndex:idx_registrations_pass_device"`
	DeviceID uuid.UUID `gorm:"uniqueIndex:idx_registrations_pass_device"`
	Pass     *Pass     `gorm:"constraint:OnDelete:CASCADE"`
	Device   *Device   `gorm:"constraint:OnDelete:CASCADE"`
}

type Log struct {
	Base
	Message string
}

func Migrate() *gormigrate.Migration {
	migrationId := "20240115-0000"
	return CreateMigrationFromActions(migrationId,
		CreateTableAction(&Pass{}),
		CreateTableAction(&Device{}),
		CreateTableAction(&Registration{}),
		CreateTableAction(&Log{}),
	)
}
