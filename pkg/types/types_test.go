package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestAddressNormalizeDefaultsCountry(t *testing.T) {
	addr := Address{ContactName: " Somchai ", Line1: "1 Silom", Province: "Bangkok", ZipCode: "10500"}.Normalize()
	if addr.Country != DefaultCountry {
		t.Fatalf("expected default country, got %q", addr.Country)
	}
	if addr.ContactName != "Somchai" {
		t.Fatalf("expected trimmed contact name, got %q", addr.ContactName)
	}
	if err := addr.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestAddressValidateReportsMissingField(t *testing.T) {
	err := Address{ContactName: "A", Line1: "B", Province: "C"}.Validate()
	if err == nil || err.Error() != "address: missing zipCode" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestAddressCityFallsBackToProvince(t *testing.T) {
	if got := (Address{Province: "Chiang Mai"}).City(); got != "Chiang Mai" {
		t.Fatalf("unexpected city %q", got)
	}
	if got := (Address{District: "Bang Rak", Province: "Bangkok"}).City(); got != "Bang Rak" {
		t.Fatalf("unexpected city %q", got)
	}
}

func TestItemSnapshotsUnitTotal(t *testing.T) {
	items := ItemSnapshots{
		{ComponentID: uuid.New(), Quantity: 2, PriceAtTimeOfOrder: decimal.RequireFromString("1500.50")},
		{ComponentID: uuid.New(), Quantity: 1, PriceAtTimeOfOrder: decimal.RequireFromString("9999.00")},
	}
	if got := items.UnitTotal(); !got.Equal(decimal.RequireFromString("13000.00")) {
		t.Fatalf("unexpected unit total %s", got)
	}
}
