package cmd

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-memberships/app/events"
	"github.com/vibast-solutions/ms-go-memberships/app/identity"
	"github.com/vibast-solutions/ms-go-memberships/app/lock"
	"github.com/vibast-solutions/ms-go-memberships/app/metrics"
	"github.com/vibast-solutions/ms-go-memberships/app/notify"
	"github.com/vibast-solutions/ms-go-memberships/app/payment"
	"github.com/vibast-solutions/ms-go-memberships/app/repository"
	"github.com/vibast-solutions/ms-go-memberships/app/service"
	"github.com/vibast-solutions/ms-go-memberships/config"
)

const lockPrefix = "memberships:lock:"

// container holds the wired services shared by serve and the job commands.
type container struct {
	cfg           *config.Config
	db            *sql.DB
	metrics       *metrics.Metrics
	auth          *identity.Authenticator
	calculator    *service.EntitlementCalculator
	catalog       *service.CatalogService
	ledger        *service.LedgerService
	checkout      *service.CheckoutService
	bankTransfers *service.BankTransferService
	expiries      *service.ExpiryService
	notifications *service.NotificationService
	closers       []func()
}

func mustBuildContainer() *container {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	c := &container{cfg: cfg, metrics: metrics.New()}
	if cfg.Stripe.Enabled {
		logrus.Warn("STRIPE_ENABLED is set but Stripe checkout is not available, ignoring")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	c.db = db
	c.onClose(func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	})

	locker := c.mustLocker()
	publisher := c.mustPublisher()
	gateway := c.mustGateway()
	notifier := notify.NewNotifier(c.sender(), cfg.SMTP.AdminEmail)
	nonces := identity.NewNonces(cfg.Identity.JWTSecret, cfg.Identity.NonceTTL)

	c.auth = identity.NewAuthenticator(cfg.Identity.JWTSecret)
	c.calculator = service.NewEntitlementCalculator(cfg.Memberships)
	c.catalog = service.NewCatalogService(repository.NewPackageRepository(db), cfg.Memberships, c.metrics)

	memberships := repository.NewMembershipRepository(db)
	c.ledger = service.NewLedgerService(
		c.catalog,
		memberships,
		repository.NewReceiptRepository(db),
		repository.NewLedgerStore(db),
		locker,
		c.calculator,
		publisher,
		notifier,
		c.metrics,
		cfg.Memberships,
	)
	c.checkout = service.NewCheckoutService(
		c.catalog,
		c.ledger,
		repository.NewOrderRepository(db),
		gateway,
		nonces,
		c.calculator,
		cfg.Memberships,
	)
	c.bankTransfers = service.NewBankTransferService(
		repository.NewBankTransferRepository(db),
		c.checkout,
		c.ledger,
		nonces,
		notifier,
		publisher,
		c.metrics,
		c.calculator,
		cfg.Wire,
		cfg.Memberships,
	)
	c.expiries = service.NewExpiryService(repository.NewExpiryRepository(db), c.ledger, c.metrics, cfg.Jobs.ExpiryBatchSize)
	c.notifications = service.NewNotificationService(c.ledger, gateway, c.metrics, cfg.PayPal)

	return c
}

func (c *container) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

func (c *container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// mustLocker uses Redis when configured so several replicas serialise on the
// same subscriber keys. A single instance falls back to in-process locks.
func (c *container) mustLocker() lock.Locker {
	if c.cfg.Redis.URL == "" {
		logrus.Warn("REDIS_URL not set, using in-process membership locks")
		return lock.NewLocalLocker()
	}

	opts, err := redis.ParseURL(c.cfg.Redis.URL)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid REDIS_URL")
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping Redis")
	}
	c.onClose(func() { _ = client.Close() })

	return lock.NewRedisLocker(client, lockPrefix, c.cfg.Redis.LockTTL, c.cfg.Redis.LockWait)
}

func (c *container) mustPublisher() events.Publisher {
	if c.cfg.RabbitMQ.URL == "" {
		return events.NewNoopPublisher()
	}

	publisher, err := events.NewRabbitMQPublisher(c.cfg.RabbitMQ.URL)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize RabbitMQ publisher")
	}
	c.onClose(func() {
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close RabbitMQ publisher")
		}
	})
	return publisher
}

func (c *container) mustGateway() payment.Gateway {
	if !c.cfg.PayPal.Enabled {
		logrus.Info("PayPal disabled, PayPal checkout and IPN are turned off")
		return payment.NewDisabledGateway()
	}

	client := payment.NewPayPalClient(c.cfg.PayPal, c.metrics)
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PayPal.RequestTimeout)
	defer cancel()
	if _, err := client.AccessToken(ctx); err != nil {
		logrus.WithError(err).Warn("PayPal credentials check failed, calls will retry")
	}
	return client
}

func (c *container) sender() notify.Sender {
	if c.cfg.SMTP.Host == "" {
		return notify.NewLogSender()
	}
	smtp := c.cfg.SMTP
	return notify.NewSMTPSender(smtp.Host, smtp.Port, smtp.Username, smtp.Password, smtp.From)
}
