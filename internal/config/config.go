package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env            string
	Port           int
	DatabaseURL    string
	JWTSecret      string
	RazorpayKeyID  string
	RazorpaySecret string
	RazorpayURL    string
	GatewayTimeout time.Duration
	GatewayMock    bool
	AuditDir       string
	LogJSON        bool
}

func Default() Config {
	return Config{
		Env:            "dev",
		Port:           5000,
		DatabaseURL:    "",
		JWTSecret:      "",
		RazorpayURL:    "https://api.razorpay.com",
		GatewayTimeout: 10 * time.Second,
		GatewayMock:    true,
		AuditDir:       "./audit",
		LogJSON:        true,
	}
}

func EnvDefaults() Config {
	return fromEnv(Default())
}

func fromEnv(c Config) Config {
	if v := os.Getenv("FRAG_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("FRAG_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("FRAG_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("FRAG_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("FRAG_RAZORPAY_KEY_ID"); v != "" {
		c.RazorpayKeyID = v
	}
	if v := os.Getenv("FRAG_RAZORPAY_KEY_SECRET"); v != "" {
		c.RazorpaySecret = v
	}
	if v := os.Getenv("FRAG_RAZORPAY_URL"); v != "" {
		c.RazorpayURL = v
	}
	if v := os.Getenv("FRAG_GATEWAY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.GatewayTimeout = d
		}
	}
	if v := os.Getenv("FRAG_GATEWAY_MOCK"); v != "" {
		c.GatewayMock = boolOf(v, c.GatewayMock)
	}
	if v := os.Getenv("FRAG_AUDIT_DIR"); v != "" {
		c.AuditDir = v
	}
	if v := os.Getenv("FRAG_LOG_JSON"); v != "" {
		c.LogJSON = boolOf(v, c.LogJSON)
	}
	// Live gateway requires credentials; refuse to leave mock silently.
	if !c.GatewayMock && (c.RazorpayKeyID == "" || c.RazorpaySecret == "") {
		c.GatewayMock = true
	}
	return c
}

func boolOf(v string, fallback bool) bool {
	switch v {
	case "1", "true", "TRUE":
		return true
	case "0", "false", "FALSE":
		return false
	}
	return fallback
}
