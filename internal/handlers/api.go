package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/walletd-io/walletd/internal/database"
	"github.com/walletd-io/walletd/internal/models"
	"github.com/walletd-io/walletd/internal/pkpass"
	"github.com/walletd-io/walletd/internal/push"
	"github.com/walletd-io/walletd/internal/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("github.com/walletd-io/walletd/internal/handlers")
}

type API struct {
	logger      *zap.SugaredLogger
	db          *gorm.DB
	transaction database.TransactionFunc
	signer      pkpass.Signer
	archives    *pkpass.FileStore
	dispatcher  *push.Dispatcher

	// URL is the externally reachable base URL of this service. When set it
	// is embedded in generated passes as the web service endpoint.
	URL string

	// OnRegistered and OnUnregistered fire after a device registers or
	// unregisters a pass. Optional.
	OnRegistered   func(ctx context.Context, pass *models.Pass, device *models.Device)
	OnUnregistered func(ctx context.Context, pass *models.Pass, device *models.Device)
}

func NewAPI(
	parent context.Context,
	logger *zap.SugaredLogger,
	db *gorm.DB,
	signer pkpass.Signer,
	archives *pkpass.FileStore,
	dispatcher *push.Dispatcher,
) (*API, error) {

	_, span := tracer.Start(parent, "NewAPI")
	defer span.End()

	transactionFunc, _, err := database.GetTransactionFunc(db)
	if err != nil {
		return nil, err
	}

	return &API{
		logger:      logger,
		db:          db,
		transaction: transactionFunc,
		signer:      signer,
		archives:    archives,
		dispatcher:  dispatcher,
	}, nil
}

func (api *API) Logger(ctx context.Context) *zap.SugaredLogger {
	return util.WithTrace(ctx, api.logger)
}

func (api *API) sendInternalServerError(c *gin.Context, err error) {
	SendInternalServerError(c, api.logger, err)
}
