package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-memberships/app/controller"
	grpcserver "github.com/vibast-solutions/ms-go-memberships/app/grpc"
	"github.com/vibast-solutions/ms-go-memberships/app/identity"
	"github.com/vibast-solutions/ms-go-memberships/app/metrics"
	"github.com/vibast-solutions/ms-go-memberships/app/types"
	"github.com/vibast-solutions/ms-go-memberships/config"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the memberships service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	c := mustBuildContainer()
	defer c.Close()
	cfg := c.cfg

	membershipController := controller.NewMembershipController(c.catalog, c.ledger, c.checkout, c.bankTransfers, c.calculator)
	internalController := controller.NewInternalController(c.catalog, c.ledger, c.checkout, c.bankTransfers, c.expiries)
	webhookController := controller.NewWebhookController(c.notifications, cfg.PayPal.IPNTokenParam)
	grpcMembershipServer := grpcserver.NewServer(c.catalog, c.ledger, c.checkout, c.bankTransfers, c.expiries, c.calculator)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()
	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	e := setupHTTPServer(
		membershipController,
		internalController,
		webhookController,
		c.auth,
		c.metrics,
		echoInternalAuthMiddleware,
		cfg.App.ServiceName,
	)
	grpcSrv, lis := setupGRPCServer(cfg, grpcMembershipServer, c.metrics, grpcInternalAuthMiddleware, cfg.App.ServiceName)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	membershipController *controller.MembershipController,
	internalController *controller.InternalController,
	webhookController *controller.WebhookController,
	auth *identity.Authenticator,
	m *metrics.Metrics,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
	appServiceName string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string {
			return fmt.Sprintf("rest-%s", uuid.New().String())
		},
	}))

	e.GET("/health", membershipController.Health)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	e.GET("/packages", membershipController.ListPackages)
	e.GET("/packages/:id", membershipController.GetPackage)

	subscriber := e.Group("", auth.RequireSubscriber())
	subscriber.GET("/membership", membershipController.GetMembership)
	subscriber.POST("/membership/cancel", membershipController.CancelMembership)

	checkout := subscriber.Group("/checkout")
	checkout.GET("/nonce", membershipController.IssueNonce)
	checkout.GET("/quote", membershipController.Quote)
	checkout.POST("/paypal/orders", membershipController.CreateOrder)
	checkout.POST("/paypal/capture", membershipController.CaptureOrder)
	checkout.POST("/paypal/subscriptions", membershipController.CreateRecurring)
	checkout.POST("/paypal/subscriptions/approve", membershipController.ApproveRecurring)
	checkout.POST("/bank-transfer", membershipController.SubmitBankTransfer)
	checkout.POST("/free", membershipController.FreeCheckout)

	webhooks := e.Group("/webhooks")
	webhooks.POST("/paypal/ipn", webhookController.PayPalIPN)

	internal := e.Group("/internal", internalAuthMiddleware.RequireInternalAccess(appServiceName))
	internal.GET("/bank-transfers", internalController.ListBankTransfers)
	internal.POST("/bank-transfers/:id/confirm", internalController.ConfirmBankTransfer)
	internal.POST("/bank-transfers/:id/reject", internalController.RejectBankTransfer)
	internal.POST("/expiries/sweep", internalController.SweepExpiries)
	internal.POST("/orders/abandon", internalController.AbandonPendingOrders)
	internal.POST("/catalog/refresh", internalController.RefreshCatalog)
	internal.GET("/memberships/:subscriber_id", internalController.GetMembership)
	internal.POST("/memberships/:subscriber_id/cancel", internalController.CancelMembership)
	internal.POST("/memberships/:subscriber_id/quota", internalController.ConsumeQuota)

	return e
}

func setupGRPCServer(
	cfg *config.Config,
	membershipServer *grpcserver.Server,
	m *metrics.Metrics,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
	appServiceName string,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoveryInterceptor(),
			grpcserver.RequestIDInterceptor(),
			grpcserver.LoggingInterceptor(),
			grpcserver.MetricsInterceptor(m),
			internalAuthMiddleware.UnaryRequireInternalAccess(appServiceName),
		),
	)
	types.RegisterMembershipsServiceServer(grpcSrv, membershipServer)

	return grpcSrv, lis
}
