package country

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed countries.yaml
var defaultDataset []byte

// Country is one selectable entry of the lookup table
type Country struct {
	Code     string `yaml:"code" json:"code"`
	Name     string `yaml:"name" json:"name"`
	Currency string `yaml:"currency" json:"currency"`
}

type dataset struct {
	Countries []Country `yaml:"countries"`
}

// Table is an immutable country to currency lookup table.
// Entries keep the order of the dataset they were loaded from.
type Table struct {
	countries []Country
	index     map[string]int
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Load parses a YAML dataset into a Table
func Load(data []byte) (*Table, error) {
	var ds dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse country dataset: %w", err)
	}

	t := &Table{
		countries: make([]Country, 0, len(ds.Countries)),
		index:     make(map[string]int, len(ds.Countries)),
	}
	for _, c := range ds.Countries {
		c.Code = normalize(c.Code)
		c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
		if c.Code == "" {
			return nil, fmt.Errorf("country entry %q has no code", c.Name)
		}
		if _, dup := t.index[c.Code]; dup {
			return nil, fmt.Errorf("duplicate country code %s", c.Code)
		}
		t.index[c.Code] = len(t.countries)
		t.countries = append(t.countries, c)
	}

	return t, nil
}

// Default returns the table built from the embedded dataset.
// It is parsed once per process.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Load(defaultDataset)
		if err != nil {
			panic("embedded country dataset is invalid: " + err.Error())
		}
		defaultTable = t
	})
	return defaultTable
}

// GetCurrencyCode returns the currency for a country code, or "" when unmapped
func (t *Table) GetCurrencyCode(countryCode string) string {
	c, ok := t.Lookup(countryCode)
	if !ok {
		return ""
	}
	return c.Currency
}

// Lookup returns the table entry for a country code
func (t *Table) Lookup(countryCode string) (Country, bool) {
	i, ok := t.index[normalize(countryCode)]
	if !ok {
		return Country{}, false
	}
	return t.countries[i], true
}

// Has reports whether the country code is in the table
func (t *Table) Has(countryCode string) bool {
	_, ok := t.index[normalize(countryCode)]
	return ok
}

// ListCountries returns a copy of the table entries in table order
func (t *Table) ListCountries() []Country {
	out := make([]Country, len(t.countries))
	copy(out, t.countries)
	return out
}

// Len returns the number of entries
func (t *Table) Len() int {
	return len(t.countries)
}

// GetCurrencyCode looks a country up in the default table
func GetCurrencyCode(countryCode string) string {
	return Default().GetCurrencyCode(countryCode)
}

// ListCountries lists the default table
func ListCountries() []Country {
	return Default().ListCountries()
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
