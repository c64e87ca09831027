package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/walletd-io/walletd/internal/database"
	"github.com/walletd-io/walletd/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// authSchemes are the Authorization header schemes a device may present,
// one per supported wallet platform.
var authSchemes = []string{"ApplePass", "WalletUnionPass"}

// getPass looks up the pass addressed by the request path. A missing pass
// is reported before authorization is evaluated.
func (api *API) getPass(c *gin.Context, ctx context.Context) (*models.Pass, bool) {
	var pass models.Pass
	db := api.db.WithContext(ctx)
	result := db.First(&pass, "pass_type_id = ? AND serial_number = ?",
		c.Param("passTypeId"), c.Param("serialNumber"))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("pass"))
		} else {
			api.sendInternalServerError(c, result.Error)
		}
		return nil, false
	}
	return &pass, true
}

// authorized checks the Authorization header against the pass's stored
// token. On failure it has already written the 401 response.
func (api *API) authorized(c *gin.Context, pass *models.Pass) bool {
	scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
	if found && token == pass.AuthenticationToken {
		for _, s := range authSchemes {
			if scheme == s {
				return true
			}
		}
	}
	c.JSON(http.StatusUnauthorized, models.NewNotAllowedError("invalid authentication token"))
	return false
}

// RegisterDevice registers a device for pass update notifications
// @Summary      Register a Device
// @Description  Registers a device to receive update notifications for a pass
// @Id           RegisterDevice
// @Tags         Registrations
// @Accept       json
// @Produce      json
// @Param        deviceLibraryId  path  string  true  "Device Library ID"
// @Param        passTypeId       path  string  true  "Pass Type ID"
// @Param        serialNumber     path  string  true  "Serial Number"
// @Param        registration  body  models.RegisterDevice  true  "Push token"
// @Success      201
// @Success      200
// @Failure      400  {object}  models.ValidationError
// @Failure      401  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /v1/devices/{deviceLibraryId}/registrations/{passTypeId}/{serialNumber} [post]
func (api *API) RegisterDevice(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "RegisterDevice")
	defer span.End()

	pass, ok := api.getPass(c, ctx)
	if !ok {
		return
	}
	if !api.authorized(c, pass) {
		return
	}

	var request models.RegisterDevice
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError(err))
		return
	}

	deviceLibraryID := c.Param("deviceLibraryId")
	span.SetAttributes(attribute.String("device_library_id", deviceLibraryID))

	var device models.Device
	alreadyRegistered := false
	err := api.transaction(ctx, func(tx *gorm.DB) error {
		res := tx.First(&device, "device_library_id = ?", deviceLibraryID)
		if res.Error != nil {
			if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
				return res.Error
			}
			device = models.Device{
				DeviceLibraryID: deviceLibraryID,
				PushToken:       request.PushToken,
			}
			if res := tx.Create(&device); res.Error != nil {
				return res.Error
			}
		} else if device.PushToken != request.PushToken {
			// the handset rotated its push token, keep the stored one fresh
			device.PushToken = request.PushToken
			if res := tx.Save(&device); res.Error != nil {
				return res.Error
			}
		}

		// The already-registered answer has to commit, not roll back, so
		// the token refresh above survives a re-register.
		var existing models.Registration
		res = tx.First(&existing, "pass_id = ? AND device_id = ?", pass.ID, device.ID)
		if res.Error == nil {
			alreadyRegistered = true
			return nil
		}
		if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}

		registration := models.Registration{
			PassID:   pass.ID,
			DeviceID: device.ID,
		}
		if res := tx.Create(&registration); res.Error != nil {
			if database.IsDuplicateError(res.Error) {
				// lost a race with a concurrent register of the same pair
				alreadyRegistered = true
				return nil
			}
			return res.Error
		}
		return nil
	})

	if err != nil {
		api.sendInternalServerError(c, err)
		return
	}
	if alreadyRegistered {
		c.Status(http.StatusOK)
		return
	}

	api.Logger(ctx).Infow("device registered",
		"device_library_id", deviceLibraryID,
		"pass_type_id", pass.PassTypeID,
		"serial_number", pass.SerialNumber)

	if api.OnRegistered != nil {
		api.OnRegistered(ctx, pass, &device)
	}
	c.Status(http.StatusCreated)
}

// UnregisterDevice removes a device registration
// @Summary      Unregister a Device
// @Description  Stops update notifications for a pass on a device
// @Id           UnregisterDevice
// @Tags         Registrations
// @Accept       json
// @Produce      json
// @Param        deviceLibraryId  path  string  true  "Device Library ID"
// @Param        passTypeId       path  string  true  "Pass Type ID"
// @Param        serialNumber     path  string  true  "Serial Number"
// @Success      200
// @Failure      401  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /v1/devices/{deviceLibraryId}/registrations/{passTypeId}/{serialNumber} [delete]
func (api *API) UnregisterDevice(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "UnregisterDevice")
	defer span.End()

	pass, ok := api.getPass(c, ctx)
	if !ok {
		return
	}
	if !api.authorized(c, pass) {
		return
	}

	deviceLibraryID := c.Param("deviceLibraryId")

	var device models.Device
	err := api.transaction(ctx, func(tx *gorm.DB) error {
		res := tx.First(&device, "device_library_id = ?", deviceLibraryID)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				return NewApiResponseError(http.StatusNotFound, models.NewNotFoundError("device"))
			}
			return res.Error
		}
		if res := tx.Delete(&models.Registration{}, "pass_id = ? AND device_id = ?",
			pass.ID, device.ID); res.Error != nil {
			return res.Error
		}
		if res := tx.Delete(&device); res.Error != nil {
			return res.Error
		}
		return nil
	})

	if err != nil {
		var apiResponseError *ApiResponseError
		if errors.As(err, &apiResponseError) {
			c.JSON(apiResponseError.Status, apiResponseError.Body)
		} else {
			api.sendInternalServerError(c, err)
		}
		return
	}

	api.Logger(ctx).Infow("device unregistered",
		"device_library_id", deviceLibraryID,
		"pass_type_id", pass.PassTypeID,
		"serial_number", pass.SerialNumber)

	if api.OnUnregistered != nil {
		api.OnUnregistered(ctx, pass, &device)
	}
	c.Status(http.StatusOK)
}
