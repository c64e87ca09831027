package push

import (
	"context"

	"github.com/walletd-io/walletd/internal/models"
	"go.uber.org/zap"
)

// Channel delivers one pass update notification to one device token.
type Channel interface {
	Push(ctx context.Context, passTypeID, token string) error
}

// Dispatcher routes pass update notifications to the right channel per
// device. Dispatch is best effort: a failed delivery is logged and counted,
// never propagated, so one dead token cannot block the rest or fail the
// pass save that triggered it.
type Dispatcher struct {
	logger  *zap.SugaredLogger
	apple   Channel
	android Channel
	enabled bool
}

func NewDispatcher(logger *zap.SugaredLogger, apple, android Channel, enabled bool) *Dispatcher {
	return &Dispatcher{
		logger:  logger,
		apple:   apple,
		android: android,
		enabled: enabled,
	}
}

// Enabled reports whether the global notification switch is on.
func (d *Dispatcher) Enabled() bool {
	return d.enabled
}

// Dispatch notifies every device that the pass type has an update. Android
// devices route to the Android channel, the rest to APNs.
func (d *Dispatcher) Dispatch(ctx context.Context, passTypeID string, devices []models.Device) {
	if !d.enabled {
		return
	}
	for _, device := range devices {
		channel, name := d.apple, "apns"
		if device.IsAndroid() {
			channel, name = d.android, "android"
		}
		if channel == nil {
			d.logger.Warnw("push channel not configured", "channel", name)
			continue
		}
		if err := channel.Push(ctx, passTypeID, device.PushToken); err != nil {
			notificationsFailed.WithLabelValues(name).Inc()
			d.logger.Errorw("push dispatch failed",
				"channel", name,
				"pass_type_id", passTypeID,
				"device_library_id", device.DeviceLibraryID,
				"error", err)
			continue
		}
		notificationsSent.WithLabelValues(name).Inc()
	}
}
