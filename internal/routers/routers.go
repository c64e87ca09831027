package routers

import (
	"net/http"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/walletd-io/walletd/internal/handlers"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const name = "github.com/walletd-io/walletd/internal/routers"

type APIRouterOptions struct {
	Logger *zap.SugaredLogger
	Api    *handlers.API
}

func NewAPIRouter(o APIRouterOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	loggerMiddleware := ginzap.GinzapWithConfig(o.Logger.Desugar(), &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{
				zap.String("traceID", trace.SpanFromContext(c.Request.Context()).SpanContext().TraceID().String()),
			}
		},
	})

	r.Use(otelgin.Middleware(name, otelgin.WithPropagators(
		propagation.TraceContext{},
	)))
	r.Use(ginzap.RecoveryWithZap(o.Logger.Desugar(), true))

	newPrometheus().Use(r)

	api := o.Api

	// device-facing wallet web service
	device := r.Group("/v1", loggerMiddleware)
	{
		device.POST("/devices/:deviceLibraryId/registrations/:passTypeId/:serialNumber", api.RegisterDevice)
		device.DELETE("/devices/:deviceLibraryId/registrations/:passTypeId/:serialNumber", api.UnregisterDevice)
		device.GET("/devices/:deviceLibraryId/registrations/:passTypeId", api.GetSerialNumbers)
		device.GET("/passes/:passTypeId/:serialNumber", api.GetLatestPass)
		device.POST("/log", api.CreateLogs)
	}

	// operator-facing management API
	private := r.Group("/api", loggerMiddleware)
	{
		private.POST("/passes", api.UpsertPass)
		private.GET("/passes/:passTypeId/:serialNumber", api.GetPassRecord)
	}

	// Don't log the health/readiness checks.
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "UP",
		})
	})
	r.GET("/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "UP",
		})
	})

	return r
}

func newPrometheus() *ginprometheus.Prometheus {
	p := ginprometheus.NewPrometheus("apiserver")
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		url := c.Request.URL.Path
		for _, p := range c.Params {
			// collapse per-device and per-pass paths to keep cardinality low
			switch p.Key {
			case "deviceLibraryId":
				url = strings.Replace(url, p.Value, ":deviceLibraryId", 1)
			case "passTypeId":
				url = strings.Replace(url, p.Value, ":passTypeId", 1)
			case "serialNumber":
				url = strings.Replace(url, p.Value, ":serialNumber", 1)
			}
		}
		return url
	}
	return p
}
