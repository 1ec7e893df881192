package features

import "github.com/gyaneshwarpardhi/fraudscore/internal/registry"

// Feature column names. They match the names recorded by the training
// pipeline in the registry.
const (
	ColUserID              = "user_id"
	ColPurchaseValue       = "purchase_value"
	ColAge                 = "age"
	ColSignupHour          = "signup_hour"
	ColSignupDay           = "signup_day"
	ColSignupMonth         = "signup_month"
	ColSignupWeekday       = "signup_weekday"
	ColPurchaseHour        = "purchase_hour"
	ColPurchaseDay         = "purchase_day"
	ColPurchaseMonth       = "purchase_month"
	ColPurchaseWeekday     = "purchase_weekday"
	ColTimeToPurchase      = "time_to_purchase"
	ColSourceEncoded       = "source_encoded"
	ColBrowserEncoded      = "browser_encoded"
	ColSexEncoded          = "sex_encoded"
	ColDeviceIDLength      = "device_id_length"
	ColDeviceIDUniqueChars = "device_id_unique_chars"
	ColIPAddressLength     = "ip_address_length"
	ColCountryEncoded      = "country_encoded"
	ColAmount              = "Amount"
	ColTime                = "Time"
)

var baseColumns = []string{
	ColUserID,
	ColPurchaseValue,
	ColAge,
	ColSignupHour,
	ColSignupDay,
	ColSignupMonth,
	ColSignupWeekday,
	ColPurchaseHour,
	ColPurchaseDay,
	ColPurchaseMonth,
	ColPurchaseWeekday,
	ColTimeToPurchase,
	ColSourceEncoded,
	ColBrowserEncoded,
	ColSexEncoded,
	ColDeviceIDLength,
	ColDeviceIDUniqueChars,
	ColIPAddressLength,
	ColCountryEncoded,
}

// encodedColumn maps a categorical field to the column holding its code.
var encodedColumn = map[string]string{
	registry.FieldSource:  ColSourceEncoded,
	registry.FieldBrowser: ColBrowserEncoded,
	registry.FieldSex:     ColSexEncoded,
	registry.FieldCountry: ColCountryEncoded,
}

// Columns returns the default training column order, optionally followed by
// the banking columns.
func Columns(banking bool) []string {
	out := make([]string, 0, len(baseColumns)+2)
	out = append(out, baseColumns...)
	if banking {
		out = append(out, ColAmount, ColTime)
	}
	return out
}
