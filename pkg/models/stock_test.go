package models_test

import (
	"math"
	"testing"

	"github.com/stockwatch/stock-ticker/pkg/models"
)

func TestRandomPrice_Bands(t *testing.T) {
	// MDB trades high; everything else shares the wide band.
	if got := models.RandomPrice("MDB", 0.0); got != 90.0 {
		t.Errorf("Expected MDB floor at 90.0, got %f", got)
	}
	if got := models.RandomPrice("MDB", 0.999); got >= 100.0 {
		t.Errorf("Expected MDB below 100.0, got %f", got)
	}
	if got := models.RandomPrice("AAPL", 0.0); got != 20.0 {
		t.Errorf("Expected common floor at 20.0, got %f", got)
	}
	if got := models.RandomPrice("AAPL", 0.999); got >= 90.0 {
		t.Errorf("Expected common band below 90.0, got %f", got)
	}
}

func TestRandomPrice_RoundsToCents(t *testing.T) {
	p := models.RandomPrice("AAPL", 0.123456789)
	cents := p * 100
	if math.Abs(cents-math.Round(cents)) > 1e-9 {
		t.Errorf("Expected a price in whole cents, got %f", p)
	}
}

func TestCompanyName(t *testing.T) {
	if got := models.CompanyName("MDB"); got != "MongoDB Inc." {
		t.Errorf("Expected MongoDB Inc., got %q", got)
	}
	if got := models.CompanyName("X123"); got != "" {
		t.Errorf("Expected no name for a minted symbol, got %q", got)
	}
}

func TestDefaultWatched_CoversNamedCompanies(t *testing.T) {
	if len(models.DefaultWatched) != 13 {
		t.Fatalf("Expected 13 watched symbols, got %d", len(models.DefaultWatched))
	}
	for _, sym := range models.DefaultWatched {
		if models.CompanyName(sym) == "" {
			t.Errorf("Watched symbol %s has no company name", sym)
		}
	}
}
