// Package features turns raw transactions into model-ready feature vectors.
//
// The same Builder runs at training time (BuildBatch) and at serving time
// (Build), so both paths share one implementation of every derivation.
package features

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	ferrors "github.com/gyaneshwarpardhi/fraudscore/internal/errors"
	"github.com/gyaneshwarpardhi/fraudscore/internal/geo"
	"github.com/gyaneshwarpardhi/fraudscore/internal/registry"
	"github.com/gyaneshwarpardhi/fraudscore/internal/transaction"
)

// UnseenPolicy decides what happens to a category the encoder never saw.
type UnseenPolicy string

const (
	// UnseenFail rejects the request with a PreprocessingError.
	UnseenFail UnseenPolicy = "fail"
	// UnseenUnknown maps the value to registry.UnknownCode.
	UnseenUnknown UnseenPolicy = "unknown"
)

// ParseUnseenPolicy validates a configured policy name. Empty means UnseenFail.
func ParseUnseenPolicy(s string) (UnseenPolicy, error) {
	switch UnseenPolicy(s) {
	case "", UnseenFail:
		return UnseenFail, nil
	case UnseenUnknown:
		return UnseenUnknown, nil
	}
	return "", fmt.Errorf("unknown unseen-category policy %q (want %q or %q)", s, UnseenFail, UnseenUnknown)
}

// Builder derives feature vectors. It holds no per-request state and is safe
// for concurrent use.
type Builder struct {
	resolver geo.Resolver
	policy   UnseenPolicy
}

// Option configures a Builder.
type Option func(*Builder)

// WithResolver sets the resolver used when a transaction carries no country.
func WithResolver(r geo.Resolver) Option {
	return func(b *Builder) { b.resolver = r }
}

// WithUnseenPolicy sets the unseen-category policy.
func WithUnseenPolicy(p UnseenPolicy) Option {
	return func(b *Builder) { b.policy = p }
}

// NewBuilder returns a Builder. Defaults: no resolver (country-less
// transactions encode as geo.UnknownCountry) and UnseenFail.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{policy: UnseenFail}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Policy returns the configured unseen-category policy.
func (b *Builder) Policy() UnseenPolicy { return b.policy }

// Build produces the single-row vector whose columns are exactly
// reg.FeatureColumns(), in that order. Columns the derivation does not
// produce are filled with 0; derived values the registry does not list are
// dropped. ip_address_length is measured on tx.IPAddress as given, and
// training measures the repaired dotted form, so callers should send dotted
// IPv4 rather than the float-encoded integer.
func (b *Builder) Build(ctx context.Context, tx *transaction.Transaction, reg *registry.Registry) (Vector, error) {
	columns := reg.FeatureColumns()
	need := make(map[string]bool, len(columns))
	for _, c := range columns {
		need[c] = true
	}

	derived, err := b.derive(ctx, tx, reg, need)
	if err != nil {
		return Vector{}, err
	}

	values := make([]float64, len(columns))
	for i, c := range columns {
		values[i] = derived[c] // absent -> 0
	}
	return Vector{Columns: columns, Values: values}, nil
}

func (b *Builder) derive(ctx context.Context, tx *transaction.Transaction, reg *registry.Registry, need map[string]bool) (map[string]float64, error) {
	signup, err := parseTimestamp(tx.SignupTime)
	if err != nil {
		return nil, ferrors.Parse("signup_time", "invalid timestamp", err)
	}
	purchase, err := parseTimestamp(tx.PurchaseTime)
	if err != nil {
		return nil, ferrors.Parse("purchase_time", "invalid timestamp", err)
	}

	f := make(map[string]float64, len(baseColumns)+2)
	f[ColUserID] = float64(tx.UserID)
	f[ColPurchaseValue] = tx.PurchaseValue
	f[ColAge] = float64(tx.Age)

	f[ColSignupHour] = float64(signup.Hour())
	f[ColSignupDay] = float64(signup.Day())
	f[ColSignupMonth] = float64(signup.Month())
	f[ColSignupWeekday] = float64(weekday(signup))
	f[ColPurchaseHour] = float64(purchase.Hour())
	f[ColPurchaseDay] = float64(purchase.Day())
	f[ColPurchaseMonth] = float64(purchase.Month())
	f[ColPurchaseWeekday] = float64(weekday(purchase))

	// Negative values are passed through as a data-quality signal.
	f[ColTimeToPurchase] = purchase.Sub(signup).Seconds()

	f[ColDeviceIDLength] = float64(utf8.RuneCountInString(tx.DeviceID))
	f[ColDeviceIDUniqueChars] = float64(uniqueRunes(tx.DeviceID))
	f[ColIPAddressLength] = float64(utf8.RuneCountInString(tx.IPAddress))

	if tx.Amount > 0 {
		f[ColAmount] = tx.Amount
	}
	if tx.Time > 0 {
		f[ColTime] = tx.Time
	}

	categories := map[string]string{
		registry.FieldSource:  tx.Source,
		registry.FieldBrowser: tx.Browser,
		registry.FieldSex:     tx.Sex,
	}
	if need[ColCountryEncoded] {
		categories[registry.FieldCountry] = b.country(ctx, tx)
	}
	for _, field := range registry.CategoricalFields {
		col := encodedColumn[field]
		if !need[col] {
			continue
		}
		code, err := b.encode(reg, field, categories[field])
		if err != nil {
			return nil, err
		}
		f[col] = float64(code)
	}
	return f, nil
}

func (b *Builder) encode(reg *registry.Registry, field, value string) (int, error) {
	enc, ok := reg.Encoder(field)
	if !ok {
		return 0, ferrors.Preprocessing(field, "registry has no encoder")
	}
	if enc.IsKnown(value) {
		return enc.Encode(value), nil
	}
	if b.policy == UnseenUnknown {
		return registry.UnknownCode, nil
	}
	return 0, ferrors.Preprocessing(field, fmt.Sprintf("unseen category %q", value))
}

// country returns the transaction's country, resolving it from the IP when
// absent. Lookup misses and resolver failures both become geo.UnknownCountry.
func (b *Builder) country(ctx context.Context, tx *transaction.Transaction) string {
	if tx.Country != "" {
		return tx.Country
	}
	if b.resolver == nil {
		return geo.UnknownCountry
	}
	c, ok, err := b.resolver.Resolve(ctx, tx.IPAddress)
	if err != nil {
		slog.Warn("country resolution failed", "ip", tx.IPAddress, "err", err)
		return geo.UnknownCountry
	}
	if !ok {
		return geo.UnknownCountry
	}
	return c
}

func uniqueRunes(s string) int {
	seen := make(map[rune]struct{}, len(s))
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}
