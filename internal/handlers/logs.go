package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/walletd-io/walletd/internal/models"
	"gorm.io/gorm"
)

// CreateLogs ingests diagnostic messages from devices
// @Summary      Ingest Device Logs
// @Description  Stores a batch of diagnostic messages reported by a device
// @Id           CreateLogs
// @Tags         Logs
// @Accept       json
// @Produce      json
// @Param        logs  body  models.AddLogs  true  "Log messages"
// @Success      200
// @Failure      400  {object}  models.ValidationError
// @Failure      500  {object}  models.InternalServerError "Internal Server Error"
// @Router       /v1/log [post]
func (api *API) CreateLogs(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "CreateLogs")
	defer span.End()

	var request models.AddLogs
	if err := c.BindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.NewBadPayloadError(err))
		return
	}

	logs := make([]models.Log, 0, len(request.Logs))
	for _, message := range request.Logs {
		logs = append(logs, models.Log{Message: message})
	}

	err := api.transaction(ctx, func(tx *gorm.DB) error {
		for i := range logs {
			if res := tx.Create(&logs[i]); res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
	if err != nil {
		api.sendInternalServerError(c, err)
		return
	}

	for i := range logs {
		api.Logger(ctx).Debugw("device log", "message", logs[i].Short())
	}

	c.Status(http.StatusOK)
}
