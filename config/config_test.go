package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadRejectsUnknownCurrencyPosition(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/memberships?parseTime=true")
	setEnv(t, "MEMBERSHIP_CURRENCY_POSITION", "middle")

	if _, err := Load(); err == nil {
		t.Fatal("expected currency position error")
	}
}

func TestLoadRequiresPayPalCredentialsWhenEnabled(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/memberships?parseTime=true")
	setEnv(t, "PAYPAL_ENABLED", "on")
	unsetEnv(t, "PAYPAL_CLIENT_ID")
	unsetEnv(t, "PAYPAL_CLIENT_SECRET")

	if _, err := Load(); err == nil {
		t.Fatal("expected paypal credentials error")
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/memberships?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "memberships-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "GRPC_PORT", "9191")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "MEMBERSHIP_ADJUSTMENT_ENABLED", "on")
	setEnv(t, "MEMBERSHIP_ADJUSTMENT_OFFSET", "5.50")
	setEnv(t, "MEMBERSHIP_CURRENCY_CODE", "eur")
	setEnv(t, "MEMBERSHIP_CURRENCY_POSITION", "after")
	setEnv(t, "PAYPAL_SANDBOX", "true")
	setEnv(t, "REDIS_LOCK_TTL_SECONDS", "12")
	setEnv(t, "PENDING_ORDER_TIMEOUT_MINUTES", "5")
	unsetEnv(t, "MEMBERSHIP_RECURRING_GRACE_MINUTES")
	unsetEnv(t, "PAYPAL_API_BASE_URL")
	unsetEnv(t, "PAYPAL_ENABLED")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "memberships-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" || cfg.GRPC.Port != "9191" {
		t.Fatalf("unexpected ports: http=%s grpc=%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql config: %+v", cfg.MySQL)
	}
	if !cfg.Memberships.AdjustmentEnabled || cfg.Memberships.AdjustmentOffset.String() != "5.5" {
		t.Fatalf("unexpected adjustment config: %+v", cfg.Memberships)
	}
	if !cfg.Memberships.ClampAdjustmentAtZero {
		t.Fatal("expected clamp to default on")
	}
	if cfg.Memberships.CurrencyCode != "EUR" || cfg.Memberships.CurrencyPosition != CurrencyPositionAfter {
		t.Fatalf("unexpected currency config: %+v", cfg.Memberships)
	}
	if cfg.PayPal.APIBaseURL != paypalSandboxAPI || cfg.PayPal.IPNVerifyURL != paypalSandboxIPN {
		t.Fatalf("expected sandbox endpoints, got %s %s", cfg.PayPal.APIBaseURL, cfg.PayPal.IPNVerifyURL)
	}
	if cfg.PayPal.IPNTokenParam != defaultIPNParam {
		t.Fatalf("unexpected ipn param: %s", cfg.PayPal.IPNTokenParam)
	}
	if cfg.Redis.LockTTL != 12*time.Second {
		t.Fatalf("unexpected lock ttl: %v", cfg.Redis.LockTTL)
	}
	if cfg.Memberships.PendingOrderTimeout != 5*time.Minute {
		t.Fatalf("unexpected pending timeout: %v", cfg.Memberships.PendingOrderTimeout)
	}
	if cfg.Memberships.RecurringGrace != 72*time.Hour {
		t.Fatalf("unexpected recurring grace: %v", cfg.Memberships.RecurringGrace)
	}
}

func TestLoadRecurringGraceOverride(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/memberships?parseTime=true")
	setEnv(t, "MEMBERSHIP_RECURRING_GRACE_MINUTES", "90")
	unsetEnv(t, "PAYPAL_ENABLED")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Memberships.RecurringGrace != 90*time.Minute {
		t.Fatalf("unexpected recurring grace: %v", cfg.Memberships.RecurringGrace)
	}
}
