package models

import "github.com/google/uuid"

// Registration is an association between one Device and one Pass. It does
// not own either side: deleting a pass or a device removes the registration
// through the foreign key constraints, not the other way around.
type Registration struct {
	Base
	PassID   uuid.UUID `json:"pass_id" gorm:"uniqueIndex:idx_registrations_pass_device" example:"fde38e78-a4af-4f44-8f5a-d84ef1846a85"`
	DeviceID uuid.UUID `json:"device_id" gorm:"uniqueIndex:idx_registrations_pass_device" example:"2b655c5b-cfdd-4550-b7f0-a36a590fc97a"`
	Pass     *Pass     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Device   *Device   `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}
