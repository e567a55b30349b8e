package country

import (
	"testing"
)

func TestGetCurrencyCode(t *testing.T) {
	tests := []struct {
		countryCode  string
		currencyCode string
	}{
		{"AU", "AUD"},
		{"US", "USD"},
		{"NZ", "NZD"},
		{"GB", "GBP"},
		{"au", "AUD"},
		{" nz ", "NZD"},
		{"XX", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.countryCode, func(t *testing.T) {
			if got := GetCurrencyCode(tt.countryCode); got != tt.currencyCode {
				t.Errorf("GetCurrencyCode(%q) = %q, want %q", tt.countryCode, got, tt.currencyCode)
			}
		})
	}
}

func TestListCountries_TableOrder(t *testing.T) {
	countries := ListCountries()
	if len(countries) == 0 {
		t.Fatal("Expected a non-empty country list")
	}

	// Dataset order, not alphabetical
	want := []string{"AU", "US", "NZ", "GB"}
	for i, code := range want {
		if countries[i].Code != code {
			t.Errorf("countries[%d].Code = %s, want %s", i, countries[i].Code, code)
		}
	}

	// Restartable: a second listing yields the same sequence
	again := ListCountries()
	if len(again) != len(countries) {
		t.Fatalf("second listing has %d entries, want %d", len(again), len(countries))
	}
	for i := range again {
		if again[i] != countries[i] {
			t.Errorf("entry %d differs between listings", i)
		}
	}
}

func TestListCountries_ReturnsCopy(t *testing.T) {
	countries := ListCountries()
	countries[0].Code = "ZZ"

	if Default().GetCurrencyCode("AU") != "AUD" {
		t.Error("Mutating the listing must not change the table")
	}
}

func TestLoad(t *testing.T) {
	data := []byte(`
countries:
  - {code: nz, name: New Zealand, currency: nzd}
  - {code: AU, name: Australia, currency: AUD}
`)

	table, err := Load(data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	if got := table.GetCurrencyCode("NZ"); got != "NZD" {
		t.Errorf("GetCurrencyCode(NZ) = %q, want NZD", got)
	}
	if !table.Has("au") {
		t.Error("Expected Has(au) to be true")
	}
	if c, ok := table.Lookup("NZ"); !ok || c.Name != "New Zealand" {
		t.Errorf("Lookup(NZ) = %+v, %v", c, ok)
	}
	if got := table.ListCountries()[0].Code; got != "NZ" {
		t.Errorf("first entry = %s, want NZ", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "countries: [\n"},
		{"missing code", "countries:\n  - {name: Nowhere, currency: XXX}\n"},
		{"duplicate code", "countries:\n  - {code: AU, currency: AUD}\n  - {code: au, currency: AUD}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load([]byte(tt.data)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
