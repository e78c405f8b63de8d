package core

import (
	"fmt"
	"strings"
	"time"
)

type (
	// Domain groups per-account manual fields stored in one row.
	Domain string

	FieldKind int

	// FieldSpec describes one manual field: its public name, storage column
	// and normalization rule.
	FieldSpec struct {
		Name    string
		Column  string
		Kind    FieldKind
		Min     int64
		Max     int64
		Percent PercentRule
	}

	// RentRoll is the per-account manual rent-roll record.
	RentRoll struct {
		AccountID string     `json:"account_id"`
		RentRoll  *float64   `json:"rent_roll"`
		UpdatedAt *time.Time `json:"updated_at"`
		Currency  string     `json:"currency,omitempty"`
	}

	// FieldRef addresses a single domain field of an account.
	FieldRef struct {
		AccountID string
		Domain    Domain
		Unit      string
		Field     string
	}

	// FieldValue is a projected domain field as returned to clients.
	FieldValue struct {
		AccountID string     `json:"account_id"`
		Key       string     `json:"key"`
		Value     any        `json:"value"`
		UpdatedAt *time.Time `json:"updated_at"`
		UpdatedBy *string    `json:"updated_by"`
	}

	// Liability is one named, manually tracked loan.
	Liability struct {
		LoanAmountUSD         *float64   `json:"loanAmountUsd"`
		InterestRatePct       *float64   `json:"interestRatePct"`
		MonthlyPaymentUSD     *float64   `json:"monthlyPaymentUsd"`
		OutstandingBalanceUSD *float64   `json:"outstandingBalanceUsd"`
		TermMonths            *int64     `json:"termMonths"`
		UpdatedAt             *time.Time `json:"updatedAt"`
		UpdatedBy             *string    `json:"updatedBy"`
	}

	// Liabilities maps every known liability slug to its record.
	Liabilities map[string]Liability

	// Asset is the single manually valued asset.
	Asset struct {
		Slug      string     `json:"slug"`
		ValueUSD  *float64   `json:"valueUsd"`
		UpdatedAt *time.Time `json:"updatedAt"`
		UpdatedBy *string    `json:"updatedBy"`
	}

	// Assignment is a normalized column write produced from a partial update.
	Assignment struct {
		Spec  FieldSpec
		Value any
	}
)

const (
	DomainProperty Domain = "property"
	DomainHELOC    Domain = "heloc"
	DomainMortgage Domain = "mortgage"
)

const (
	KindCurrency FieldKind = iota
	KindPercent
	KindInteger
	KindString
)

const (
	SlugHELOCLoan        = "heloc_loan"
	SlugOriginalMortgage = "original_mortgage_loan_672"
	SlugRoofLoan         = "roof_loan"

	AssetSlug = "property_672_elm_value"
)

// LiabilitySlugs is the closed set of named liabilities, in display order.
var LiabilitySlugs = []string{SlugHELOCLoan, SlugOriginalMortgage, SlugRoofLoan}

var defaultTermMonths = map[string]int64{
	SlugRoofLoan:         120,
	SlugOriginalMortgage: 360,
}

var domainFields = map[Domain][]FieldSpec{
	DomainProperty: {
		{Name: "rent_amount", Column: "rent_amount", Kind: KindCurrency},
		{Name: "tenant_name", Column: "tenant_name", Kind: KindString},
	},
	DomainHELOC: {
		{Name: "amount", Column: "amount", Kind: KindCurrency},
		{Name: "interest_rate_pct", Column: "interest_rate_pct", Kind: KindPercent, Percent: FieldPercent},
		{Name: "term_months", Column: "term_months", Kind: KindInteger, Min: 1, Max: MaxTermMonths},
		{Name: "payment_amount", Column: "payment_amount", Kind: KindCurrency},
	},
	DomainMortgage: {
		{Name: "principal_amount", Column: "principal_amount", Kind: KindCurrency},
		{Name: "interest_rate_pct", Column: "interest_rate_pct", Kind: KindPercent, Percent: FieldPercent},
		{Name: "term_months", Column: "term_months", Kind: KindInteger, Min: 1, Max: MaxTermMonths},
		{Name: "payment_day", Column: "payment_day", Kind: KindInteger, Min: 1, Max: 28},
		{Name: "payment_amount", Column: "payment_amount", Kind: KindCurrency},
	},
}

var liabilityFields = []FieldSpec{
	{Name: "loanAmountUsd", Column: "loan_amount_usd", Kind: KindCurrency},
	{Name: "interestRatePct", Column: "interest_rate_pct", Kind: KindPercent, Percent: LiabilityPercent},
	{Name: "monthlyPaymentUsd", Column: "monthly_payment_usd", Kind: KindCurrency},
	{Name: "outstandingBalanceUsd", Column: "outstanding_balance_usd", Kind: KindCurrency},
	{Name: "termMonths", Column: "term_months", Kind: KindInteger, Min: 0, Max: MaxTermMonths},
}

// Normalize applies the field's rule to raw. Null input yields a nil value,
// which clears the stored column.
func (s FieldSpec) Normalize(raw any) (any, error) {
	switch s.Kind {
	case KindCurrency:
		v, err := NormalizeCurrency(s.Name, raw)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	case KindPercent:
		v, err := NormalizePercent(s.Name, raw, s.Percent)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	case KindInteger:
		v, err := NormalizeInt(s.Name, raw, s.Min, s.Max)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	case KindString:
		v, err := NormalizeString(s.Name, raw)
		if err != nil || v == nil {
			return nil, err
		}
		return *v, nil
	}
	return nil, fmt.Errorf("field %s: unsupported kind %d", s.Name, s.Kind)
}

// ParseDomain maps a URL segment to a Domain.
func ParseDomain(s string) (Domain, bool) {
	d := Domain(s)
	_, ok := domainFields[d]
	return d, ok
}

// LookupField finds the FieldSpec named name in domain d.
func LookupField(d Domain, name string) (FieldSpec, error) {
	for _, spec := range domainFields[d] {
		if spec.Name == name {
			return spec, nil
		}
	}
	return FieldSpec{}, &ValidationError{Field: name, Reason: "unknown field", Err: ErrUnknownField}
}

// Fields lists the fields of a domain in declaration order.
func (d Domain) Fields() []FieldSpec {
	return domainFields[d]
}

// Key encodes the reference as domain.unit.field or domain.field.
func (r FieldRef) Key() string {
	if r.Domain == DomainProperty {
		return fmt.Sprintf("%s.%s.%s", r.Domain, r.Unit, r.Field)
	}
	return fmt.Sprintf("%s.%s", r.Domain, r.Field)
}

// Validate checks the reference and returns the addressed field spec.
func (r FieldRef) Validate() (FieldSpec, error) {
	if strings.TrimSpace(r.AccountID) == "" {
		return FieldSpec{}, invalid("account_id", "is required")
	}
	if _, ok := domainFields[r.Domain]; !ok {
		return FieldSpec{}, invalid("domain", fmt.Sprintf("unknown domain %q", r.Domain))
	}
	if r.Domain == DomainProperty {
		if _, err := NormalizeString("unit", r.Unit); err != nil {
			return FieldSpec{}, invalid("unit", "is required and must be at most 120 characters")
		}
	}
	return LookupField(r.Domain, r.Field)
}

// EmptyFieldValue is the all-null projection of a field with no stored row.
func EmptyFieldValue(r FieldRef) FieldValue {
	return FieldValue{AccountID: r.AccountID, Key: r.Key()}
}

// EmptyRentRoll is the placeholder returned for accounts without manual data.
func EmptyRentRoll(accountID, currency string) RentRoll {
	return RentRoll{AccountID: accountID, Currency: currency}
}

// IsLiabilitySlug reports whether slug names a known liability.
func IsLiabilitySlug(slug string) bool {
	for _, s := range LiabilitySlugs {
		if s == slug {
			return true
		}
	}
	return false
}

// DefaultLiability is the record synthesized for a slug with no stored row.
func DefaultLiability(slug string) Liability {
	var l Liability
	if term, ok := defaultTermMonths[slug]; ok {
		l.TermMonths = &term
	}
	return l
}

// Complete returns a copy holding exactly the known slugs, filling gaps with
// defaults and dropping anything else.
func (l Liabilities) Complete() Liabilities {
	out := make(Liabilities, len(LiabilitySlugs))
	for _, slug := range LiabilitySlugs {
		if rec, ok := l[slug]; ok {
			out[slug] = rec
			continue
		}
		out[slug] = DefaultLiability(slug)
	}
	return out
}

// LiabilityFields lists the updatable liability fields.
func LiabilityFields() []FieldSpec {
	return liabilityFields
}

// NormalizeLiabilityPatch validates a partial liability update. Unknown slugs
// and unknown field names are rejected before anything is normalized. The
// result follows the declared field order and is empty when fields is.
func NormalizeLiabilityPatch(slug string, fields map[string]any) ([]Assignment, error) {
	if !IsLiabilitySlug(slug) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlug, slug)
	}
	for name := range fields {
		if !isLiabilityField(name) {
			return nil, &ValidationError{Field: name, Reason: "unknown field", Err: ErrUnknownField}
		}
	}
	var out []Assignment
	for _, spec := range liabilityFields {
		raw, ok := fields[spec.Name]
		if !ok {
			continue
		}
		v, err := spec.Normalize(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Assignment{Spec: spec, Value: v})
	}
	return out, nil
}

func isLiabilityField(name string) bool {
	for _, spec := range liabilityFields {
		if spec.Name == name {
			return true
		}
	}
	return false
}

// Apply writes normalized assignments onto the record.
func (l *Liability) Apply(assignments []Assignment) {
	for _, a := range assignments {
		switch a.Spec.Name {
		case "loanAmountUsd":
			l.LoanAmountUSD = floatPtr(a.Value)
		case "interestRatePct":
			l.InterestRatePct = floatPtr(a.Value)
		case "monthlyPaymentUsd":
			l.MonthlyPaymentUSD = floatPtr(a.Value)
		case "outstandingBalanceUsd":
			l.OutstandingBalanceUSD = floatPtr(a.Value)
		case "termMonths":
			l.TermMonths = intPtr(a.Value)
		}
	}
}

// NormalizeAssetValue validates the manual asset value as currency.
func NormalizeAssetValue(raw any) (*float64, error) {
	return NormalizeCurrency("valueUsd", raw)
}

// EmptyAsset is the asset record returned before any value was set.
func EmptyAsset() Asset {
	return Asset{Slug: AssetSlug}
}

func floatPtr(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

func intPtr(v any) *int64 {
	n, ok := v.(int64)
	if !ok {
		return nil
	}
	return &n
}

// MigrationStep records one stage of a schema migration run.
type MigrationStep struct {
	Step        string   `json:"step"`
	Status      string   `json:"status,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
}
