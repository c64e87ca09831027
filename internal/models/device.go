package models

// AndroidTokenLength is the push token length above which a device is
// assumed to be an Android client. Android push tokens are much longer than
// the 64 hex character APNs tokens, so length is the discriminator.
const AndroidTokenLength = 100

// Device is a handset that registered at least one pass. It is created on
// first registration and removed only by an explicit unregister.
type Device struct {
	Base
	DeviceLibraryID string `json:"device_library_id" gorm:"uniqueIndex" example:"e29a35b4296d4b2b8cd2ba4d32496b4a"`
	PushToken       string `json:"push_token"`
}

// IsAndroid reports whether the device's push token routes to the Android
// push channel rather than APNs.
func (d *Device) IsAndroid() bool {
	return len(d.PushToken) > AndroidTokenLength
}

// RegisterDevice is the body of a device registration request.
type RegisterDevice struct {
	PushToken string `json:"pushToken"`
}
