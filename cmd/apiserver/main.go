package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/walletd-io/walletd/internal/database"
	"github.com/walletd-io/walletd/internal/handlers"
	"github.com/walletd-io/walletd/internal/pkpass"
	"github.com/walletd-io/walletd/internal/push"
	"github.com/walletd-io/walletd/internal/routers"
	"github.com/walletd-io/walletd/internal/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/credentials"
	"gorm.io/gorm"

	"github.com/urfave/cli/v3"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("apiserver")
}

// @title               walletd API
// @description         Wallet pass distribution server: signed pass archives,
// @description         device registrations and update push notifications.
// @version             1.0
// @BasePath            /
func main() {
	// Override to capitalize "Show"
	cli.HelpFlag.(*cli.BoolFlag).Usage = "Show help"
	app := &cli.Command{
		Name: "apiserver",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Value:   false,
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("WALLETD_DEBUG"),
			},
			&cli.StringFlag{
				Name:    "listen",
				Value:   "0.0.0.0:8080",
				Usage:   "The address and port to listen for HTTP requests on",
				Sources: cli.EnvVars("WALLETD_LISTEN"),
			},
			&cli.StringFlag{
				Name:    "url",
				Value:   "",
				Usage:   "The externally reachable base URL of this server, embedded in generated passes",
				Sources: cli.EnvVars("WALLETD_URL"),
			},
			&cli.StringFlag{
				Name:    "db-host",
				Value:   "apiserver-db",
				Usage:   "Database host name",
				Sources: cli.EnvVars("WALLETD_DB_HOST"),
			},
			&cli.StringFlag{
				Name:    "db-port",
				Value:   "5432",
				Usage:   "Database port",
				Sources: cli.EnvVars("WALLETD_DB_PORT"),
			},
			&cli.StringFlag{
				Name:    "db-user",
				Value:   "apiserver",
				Usage:   "Database user",
				Sources: cli.EnvVars("WALLETD_DB_USER"),
			},
			&cli.StringFlag{
				Name:    "db-password",
				Value:   "secret",
				Usage:   "Database password",
				Sources: cli.EnvVars("WALLETD_DB_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "db-name",
				Value:   "apiserver",
				Usage:   "Database name",
				Sources: cli.EnvVars("WALLETD_DB_NAME"),
			},
			&cli.StringFlag{
				Name:    "db-sslmode",
				Value:   "disable",
				Usage:   "Database ssl mode",
				Sources: cli.EnvVars("WALLETD_DB_SSLMODE"),
			},
			&cli.StringFlag{
				Name:     "signing-cert",
				Usage:    "Path to the pass signing certificate (PEM)",
				Required: true,
				Sources:  cli.EnvVars("WALLETD_SIGNING_CERT"),
			},
			&cli.StringFlag{
				Name:     "signing-key",
				Usage:    "Path to the pass signing private key (PEM)",
				Required: true,
				Sources:  cli.EnvVars("WALLETD_SIGNING_KEY"),
			},
			&cli.StringFlag{
				Name:    "signing-key-password",
				Usage:   "Password for an encrypted signing key",
				Sources: cli.EnvVars("WALLETD_SIGNING_KEY_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "intermediate-cert",
				Usage:   "Path to the issuing intermediate certificate (PEM)",
				Sources: cli.EnvVars("WALLETD_INTERMEDIATE_CERT"),
			},
			&cli.StringFlag{
				Name:    "archive-path-template",
				Value:   "/var/lib/walletd/passes/%s.pkpass",
				Usage:   "Where generated pass archives are stored, %s is the serial number",
				Sources: cli.EnvVars("WALLETD_ARCHIVE_PATH_TEMPLATE"),
			},
			&cli.BoolFlag{
				Name:    "enable-notifications",
				Value:   false,
				Usage:   "Push update notifications to registered devices after a pass changes",
				Sources: cli.EnvVars("WALLETD_ENABLE_NOTIFICATIONS"),
			},
			&cli.StringFlag{
				Name:    "apns-gateway",
				Value:   "gateway.push.apple.com:2195",
				Usage:   "host:port of the APNs gateway",
				Sources: cli.EnvVars("WALLETD_APNS_GATEWAY"),
			},
			&cli.StringFlag{
				Name:    "android-push-url",
				Usage:   "Endpoint for Android wallet push notifications",
				Sources: cli.EnvVars("WALLETD_ANDROID_PUSH_URL"),
			},
			&cli.StringFlag{
				Name:    "android-api-key",
				Usage:   "Authorization value for the Android push endpoint",
				Sources: cli.EnvVars("WALLETD_ANDROID_API_KEY"),
			},
			&cli.BoolFlag{
				Name:    "trace-insecure",
				Value:   false,
				Usage:   "Set OTLP endpoint to insecure mode",
				Sources: cli.EnvVars("WALLETD_TRACE_INSECURE"),
			},
			&cli.StringFlag{
				Name:    "trace-endpoint",
				Value:   "",
				Usage:   "OTLP endpoint for trace data",
				Sources: cli.EnvVars("WALLETD_TRACE_ENDPOINT_OTLP"),
			},
		},

		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, _ = signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
			ctx, span := tracer.Start(ctx, "Run")
			defer span.End()
			withLoggerAndDB(ctx, command, func(logger *zap.Logger, db *gorm.DB, dsn string) {
				if err := database.Migrations().Migrate(ctx, db); err != nil {
					log.Fatal(err)
				}

				signer, err := pkpass.LoadPKCS7Signer(
					command.String("signing-cert"),
					command.String("signing-key"),
					command.String("signing-key-password"),
					command.String("intermediate-cert"),
				)
				if err != nil {
					log.Fatal(err)
				}

				archives := pkpass.NewFileStore(command.String("archive-path-template"))

				apple, err := push.LoadAPNSClient(
					command.String("apns-gateway"),
					command.String("signing-cert"),
					command.String("signing-key"),
				)
				if err != nil {
					log.Fatal(err)
				}
				var android push.Channel
				if url := command.String("android-push-url"); url != "" {
					android = push.NewAndroidClient(url, command.String("android-api-key"))
				}
				dispatcher := push.NewDispatcher(logger.Sugar(), apple, android,
					command.Bool("enable-notifications"))

				api, err := handlers.NewAPI(ctx, logger.Sugar(), db, signer, archives, dispatcher)
				if err != nil {
					log.Fatal(err)
				}
				api.URL = command.String("url")

				router := routers.NewAPIRouter(routers.APIRouterOptions{
					Logger: logger.Sugar(),
					Api:    api,
				})

				httpServer := &http.Server{
					Addr:              command.String("listen"),
					Handler:           router,
					ReadTimeout:       5 * time.Second,
					ReadHeaderTimeout: 5 * time.Second,
					WriteTimeout:      10 * time.Second,
				}
				defer util.IgnoreError(httpServer.Close)

				wg := &sync.WaitGroup{}
				serveErrors := make(chan error, 1)
				util.GoWithWaitGroup(wg, func() {
					if err := httpServer.ListenAndServe(); err != nil {
						serveErrors <- err
					}
				})

				logger.Sugar().Infow("apiserver listening", "address", command.String("listen"))

				// Wait for a shutdown signal or a server error
				var serveErr error
				select {
				case serveErr = <-serveErrors:
				case <-ctx.Done():
				}

				// Try to do a graceful shutdown of the server for 5 seconds...
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
				wg.Wait()

				if serveErr != nil && serveErr != http.ErrServerClosed {
					log.Fatal(serveErr)
				}
			})
			return nil
		},
	}
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "rollback",
		Usage: "Rollback the last database migration",
		Action: func(ctx context.Context, command *cli.Command) error {
			withLoggerAndDB(ctx, command, func(logger *zap.Logger, db *gorm.DB, dsn string) {
				if err := database.Migrations().RollbackLast(ctx, db); err != nil {
					log.Fatal(err)
				}
			})
			return nil
		},
	})

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func getLogger(command *cli.Command) *zap.Logger {
	var logger *zap.Logger
	var err error
	// set the log level
	if command.Bool("debug") {
		logConfig := zap.NewProductionConfig()
		logConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		logger, err = logConfig.Build()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err)
	}
	return logger
}

func withLoggerAndDB(ctx context.Context, command *cli.Command, f func(logger *zap.Logger, db *gorm.DB, dsn string)) {
	logger := getLogger(command)
	cleanup := initTracer(logger.Sugar(), command.Bool("trace-insecure"), command.String("trace-endpoint"))
	defer func() {
		if cleanup == nil {
			return
		}
		if err := cleanup(ctx); err != nil {
			logger.Error(err.Error())
		}
	}()

	db, dsn, err := database.NewDatabase(
		ctx,
		logger.Sugar(),
		command.String("db-host"),
		command.String("db-user"),
		command.String("db-password"),
		command.String("db-name"),
		command.String("db-port"),
		command.String("db-sslmode"),
	)
	if err != nil {
		log.Fatal(err)
	}

	f(logger, db, dsn)
}

func initTracer(logger *zap.SugaredLogger, insecure bool, collector string) func(context.Context) error {
	if collector == "" {
		logger.Info("No collector endpoint configured")
		otel.SetTracerProvider(
			sdktrace.NewTracerProvider(
				sdktrace.WithSampler(sdktrace.AlwaysSample()),
			),
		)
		return nil
	}
	secureOption := otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, ""))
	if insecure {
		secureOption = otlptracegrpc.WithInsecure()
	}
	exporter, err := otlptrace.New(
		context.Background(),
		otlptracegrpc.NewClient(
			secureOption,
			otlptracegrpc.WithEndpoint(collector),
		),
	)
	if err != nil {
		logger.Errorf("Unable to create open telemetry exporter: %s", err.Error())
		return nil
	}
	resources, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", "apiserver"),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		logger.Errorf("Unable to create resources: %s", err.Error())
		return nil
	}

	deployEnvironment := os.Getenv("WALLETD_ENVIRONMENT")
	if deployEnvironment == "" {
		deployEnvironment = "development"
	}

	otel.SetTracerProvider(
		sdktrace.NewTracerProvider(
			sdktrace.WithResource(resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName("apiserver"),
				semconv.DeploymentEnvironment(deployEnvironment),
			)),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resources),
		),
	)
	return exporter.Shutdown
}
