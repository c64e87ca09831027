package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/walletd-io/walletd/internal/models"
	"github.com/walletd-io/walletd/internal/pkpass"
	"github.com/walletd-io/walletd/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// GetSerialNumbers lists passes changed for a device
// @Summary      List Changed Serial Numbers
// @Description  Lists the serial numbers of the most recently updated passes registered to a device
// @Id           GetSerialNumbers
// @Tags         Registrations
// @Produce      json
// @Param        deviceLibraryId  path   string  true   "Device Library ID"
// @Param        passTypeId       path   string  true   "Pass Type ID"
// @Param        passesUpdatedSince  query  string  false  "Only passes updated after this time"
// @Success      200  {object}  models.SerialNumbers
// @Success      204
// @Failure      400  {object}  models.ValidationError
// @Failure      404  {object}  models.NotFoundError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /v1/devices/{deviceLibraryId}/registrations/{passTypeId} [get]
func (api *API) GetSerialNumbers(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetSerialNumbers")
	defer span.End()

	db := api.db.WithContext(ctx)

	var device models.Device
	result := db.First(&device, "device_library_id = ?", c.Param("deviceLibraryId"))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("device"))
		} else {
			api.sendInternalServerError(c, result.Error)
		}
		return
	}

	var passes []models.Pass
	result = db.
		Joins("JOIN registrations ON registrations.pass_id = passes.id").
		Where("registrations.device_id = ? AND passes.pass_type_id = ?",
			device.ID, c.Param("passTypeId")).
		Find(&passes)
	if result.Error != nil {
		api.sendInternalServerError(c, result.Error)
		return
	}
	if len(passes) == 0 {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("pass"))
		return
	}

	if since := c.Query("passesUpdatedSince"); since != "" {
		cutoff, err := time.ParseInLocation(models.TimeFormat, since, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest,
				models.NewFieldValidationError("passesUpdatedSince", "must be of the form "+models.TimeFormat))
			return
		}
		changed := passes[:0]
		for _, p := range passes {
			if p.Utime.After(cutoff) {
				changed = append(changed, p)
			}
		}
		passes = changed
	}

	if len(passes) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	// devices always get the single most recent update batch
	var lastUpdated time.Time
	for _, p := range passes {
		if p.Utime.After(lastUpdated) {
			lastUpdated = p.Utime
		}
	}
	serialNumbers := []string{}
	for _, p := range passes {
		if p.Utime.Equal(lastUpdated) {
			serialNumbers = append(serialNumbers, p.SerialNumber)
		}
	}

	c.JSON(http.StatusOK, models.SerialNumbers{
		LastUpdated:   lastUpdated.UTC().Format(models.TimeFormat),
		SerialNumbers: serialNumbers,
	})
}

// GetLatestPass fetches the current archive for a pass
// @Summary      Get Latest Pass
// @Description  Streams the current signed archive for a pass
// @Id           GetLatestPass
// @Tags         Passes
// @Produce      application/vnd.apple.pkpass
// @Param        passTypeId    path  string  true  "Pass Type ID"
// @Param        serialNumber  path  string  true  "Serial Number"
// @Success      200  {string}  binary
// @Success      304
// @Failure      401  {object}  models.NotAllowedError
// @Failure      404  {object}  models.NotFoundError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /v1/passes/{passTypeId}/{serialNumber} [get]
func (api *API) GetLatestPass(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetLatestPass")
	defer span.End()

	pass, ok := api.getPass(c, ctx)
	if !ok {
		return
	}
	if !api.authorized(c, pass) {
		return
	}

	if since := c.GetHeader("If-Modified-Since"); since != "" {
		// an unparsable conditional header is ignored, per HTTP semantics
		if cached, err := http.ParseTime(since); err == nil && !pass.Utime.After(cached) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	if pass.ArchivePath == "" {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("archive"))
		return
	}
	archive, err := api.archives.Read(pass.ArchivePath)
	if err != nil {
		api.sendInternalServerError(c, err)
		return
	}

	c.Header("Last-Modified", pass.Utime.UTC().Format(http.TimeFormat))
	c.Header("Content-Disposition", `attachment; filename=pass.pkpass`)
	c.Data(http.StatusOK, "application/vnd.apple.pkpass", archive)
}

// UpsertPass creates or replaces a pass
// @Summary      Create or Update a Pass
// @Description  Creates or replaces a pass, regenerates its archive and notifies registered devices
// @Id           UpsertPass
// @Tags         Passes
// @Accept       json
// @Produce      json
// @Param        pass  body  models.AddPass  true  "Pass"
// @Success      200  {object}  models.Pass
// @Success      201  {object}  models.Pass
// @Failure      400  {object}  models.ValidationError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/passes [post]
func (api *API) UpsertPass(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "UpsertPass")
	defer span.End()

	var request models.AddPass
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError(err))
		return
	}
	if request.PassTypeID == "" {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("pass_type_id"))
		return
	}
	if request.SerialNumber == "" {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("serial_number"))
		return
	}
	if request.AuthenticationToken == "" {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("authentication_token"))
		return
	}
	if len(request.Definition) == 0 {
		c.JSON(http.StatusBadRequest, models.NewFieldNotPresentError("definition"))
		return
	}

	definition, err := pkpass.ParseDefinition(request.Definition)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewFieldValidationError("definition", err.Error()))
		return
	}

	template := &pkpass.Template{
		PassTypeID:          request.PassTypeID,
		SerialNumber:        request.SerialNumber,
		TeamID:              request.TeamID,
		OrganizationName:    request.OrganizationName,
		Description:         request.Description,
		LogoText:            request.LogoText,
		BackgroundColor:     request.BackgroundColor,
		ForegroundColor:     request.ForegroundColor,
		LabelColor:          request.LabelColor,
		WebServiceURL:       api.URL,
		AuthenticationToken: request.AuthenticationToken,
	}
	if err := definition.Apply(template); err != nil {
		c.JSON(http.StatusBadRequest, models.NewFieldValidationError("definition", err.Error()))
		return
	}

	archive, err := pkpass.Build(template, api.signer)
	if err != nil {
		api.sendInternalServerError(c, err)
		return
	}
	archivePath, err := api.archives.Save(request.SerialNumber, archive)
	if err != nil {
		api.sendInternalServerError(c, err)
		return
	}

	now := time.Now().UTC().Truncate(time.Second)
	var pass models.Pass
	created := false
	err = api.transaction(ctx, func(tx *gorm.DB) error {
		res := tx.First(&pass, "pass_type_id = ? AND serial_number = ?",
			request.PassTypeID, request.SerialNumber)
		if res.Error != nil {
			if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
				return res.Error
			}
			created = true
			pass = models.Pass{}
		}
		pass.PassTypeID = request.PassTypeID
		pass.SerialNumber = request.SerialNumber
		pass.AuthenticationToken = request.AuthenticationToken
		pass.OrganizationName = request.OrganizationName
		pass.TeamID = request.TeamID
		pass.Description = request.Description
		pass.LogoText = request.LogoText
		pass.BackgroundColor = request.BackgroundColor
		pass.ForegroundColor = request.ForegroundColor
		pass.LabelColor = request.LabelColor
		pass.Definition = request.Definition
		pass.ArchivePath = archivePath
		pass.Utime = now

		if created {
			return tx.Create(&pass).Error
		}
		return tx.Save(&pass).Error
	})
	if err != nil {
		api.sendInternalServerError(c, err)
		return
	}

	span.SetAttributes(attribute.String("id", pass.ID.String()))
	api.Logger(ctx).Infow("pass saved",
		"pass_type_id", pass.PassTypeID,
		"serial_number", pass.SerialNumber,
		"utime", pass.UpdatedAtText())

	api.notifyRegisteredDevices(&pass)

	if created {
		c.JSON(http.StatusCreated, pass)
	} else {
		c.JSON(http.StatusOK, pass)
	}
}

// notifyRegisteredDevices pushes an update notification to every device
// registered for the pass. Dispatch runs detached from the request so a
// slow push gateway never delays the save response.
func (api *API) notifyRegisteredDevices(pass *models.Pass) {
	if api.dispatcher == nil || !api.dispatcher.Enabled() {
		return
	}

	var devices []models.Device
	result := api.db.
		Joins("JOIN registrations ON registrations.device_id = devices.id").
		Where("registrations.pass_id = ?", pass.ID).
		Find(&devices)
	if result.Error != nil {
		api.logger.Errorw("failed to list registered devices for push",
			"pass_type_id", pass.PassTypeID,
			"serial_number", pass.SerialNumber,
			"error", result.Error)
		return
	}
	if len(devices) == 0 {
		return
	}

	passTypeID := pass.PassTypeID
	util.GoWithWaitGroup(nil, func() {
		api.dispatcher.Dispatch(context.Background(), passTypeID, devices)
	})
}

// GetPassRecord gets a pass record
// @Summary      Get a Pass
// @Description  Gets the stored record for a pass
// @Id           GetPassRecord
// @Tags         Passes
// @Produce      json
// @Param        passTypeId    path  string  true  "Pass Type ID"
// @Param        serialNumber  path  string  true  "Serial Number"
// @Success      200  {object}  models.Pass
// @Failure      404  {object}  models.NotFoundError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /api/passes/{passTypeId}/{serialNumber} [get]
func (api *API) GetPassRecord(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "GetPassRecord")
	defer span.End()

	pass, ok := api.getPass(c, ctx)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, pass)
}
