package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.MediaBucket != "crm-media" {
		t.Errorf("expected default media bucket, got %s", cfg.MediaBucket)
	}
	if cfg.DedupCacheTTL != 24*time.Hour {
		t.Errorf("expected default dedup TTL 24h, got %s", cfg.DedupCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("WEBHOOK_SECRET", "shh")
	t.Setenv("PRODUCTION_PHONE_NUMBER", " +5215550001111 ")
	t.Setenv("MEDIA_PUBLIC_BASE_URL", "https://cdn.example.com/")
	t.Setenv("DEDUP_CACHE_TTL", "30m")

	cfg := Load()
	if cfg.Port != "9999" {
		t.Errorf("port override not applied: %s", cfg.Port)
	}
	if cfg.WebhookSecret != "shh" {
		t.Errorf("secret override not applied")
	}
	if cfg.ProductionPhone != "+5215550001111" {
		t.Errorf("production phone should be trimmed, got %q", cfg.ProductionPhone)
	}
	if cfg.MediaPublicBaseURL != "https://cdn.example.com" {
		t.Errorf("public base URL should drop trailing slash, got %q", cfg.MediaPublicBaseURL)
	}
	if cfg.DedupCacheTTL != 30*time.Minute {
		t.Errorf("TTL override not applied: %s", cfg.DedupCacheTTL)
	}
}
