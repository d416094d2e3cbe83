package quota

import (
	"testing"
	"time"

	"gcligateway/internal/config"
)

func TestDayBoundary(t *testing.T) {
	before := time.Date(2026, 7, 30, 6, 59, 0, 0, time.UTC)
	if got := dayBoundary(before); !got.Equal(time.Date(2026, 7, 29, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected previous day's 07:00 boundary, got %v", got)
	}

	after := time.Date(2026, 7, 30, 7, 0, 1, 0, time.UTC)
	if got := dayBoundary(after); !got.Equal(time.Date(2026, 7, 30, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected today's 07:00 boundary, got %v", got)
	}
}

func TestComputeRewardFlashPrecedence(t *testing.T) {
	q := config.QuotaConfig{
		FlashPerCredential: 1500,
		NoCredFlash:        100,
		ProPerCredential:   300,
		Tier3PerCredential: 50,
		NoCredPro:          20,
	}

	override := 42
	withOverride := computeReward(userQuotaRow{QuotaFlash: &override}, 3, 0, q)
	if withOverride.Flash != 42 {
		t.Fatalf("explicit override should win, got %d", withOverride.Flash)
	}

	withCreds := computeReward(userQuotaRow{}, 3, 0, q)
	if withCreds.Flash != 3*1500 {
		t.Fatalf("expected active_cred_count * flash_per_cred, got %d", withCreds.Flash)
	}

	noCreds := computeReward(userQuotaRow{}, 0, 0, q)
	if noCreds.Flash != 100 {
		t.Fatalf("expected no_cred_flash fallback, got %d", noCreds.Flash)
	}
}

func TestComputeRewardProAndTier3(t *testing.T) {
	q := config.QuotaConfig{
		ProPerCredential:   300,
		Tier3PerCredential: 50,
		NoCredPro:          20,
	}

	withTier3 := computeReward(userQuotaRow{}, 5, 2, q)
	if withTier3.Pro != 2*50 {
		t.Fatalf("tier3 credentials should drive the pro bucket, got %d", withTier3.Pro)
	}
	if !withTier3.Tier3Allowed {
		t.Fatal("owning a tier-3 credential should grant tier-3 access")
	}

	withoutTier3 := computeReward(userQuotaRow{}, 5, 0, q)
	if withoutTier3.Pro != 5*300 {
		t.Fatalf("expected active_cred_count * pro_per_cred, got %d", withoutTier3.Pro)
	}
	if withoutTier3.Tier3Allowed {
		t.Fatal("no tier-3 credentials or override should deny tier-3 access")
	}

	tier3Override := 1
	overridden := computeReward(userQuotaRow{QuotaTier3: &tier3Override}, 0, 0, q)
	if !overridden.Tier3Allowed {
		t.Fatal("positive quota_tier3 override should grant tier-3 access")
	}
}
