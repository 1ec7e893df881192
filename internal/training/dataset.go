package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/gyaneshwarpardhi/fraudscore/internal/ipcodec"
	"github.com/gyaneshwarpardhi/fraudscore/internal/transaction"
)

// Columns of the e-commerce fraud dataset.
const (
	colUserID        = "user_id"
	colSignupTime    = "signup_time"
	colPurchaseTime  = "purchase_time"
	colPurchaseValue = "purchase_value"
	colDeviceID      = "device_id"
	colSource        = "source"
	colBrowser       = "browser"
	colSex           = "sex"
	colAge           = "age"
	colIPAddress     = "ip_address"
	colClass         = "class"
)

var requiredColumns = []string{
	colUserID, colSignupTime, colPurchaseTime, colPurchaseValue, colDeviceID,
	colSource, colBrowser, colSex, colAge, colIPAddress, colClass,
}

// Dataset is a labelled set of raw transactions.
type Dataset struct {
	Txs    []transaction.Transaction
	Labels []int
	// Skipped counts rows dropped for unreadable numeric fields.
	Skipped int
}

// Len returns the number of usable rows.
func (d *Dataset) Len() int { return len(d.Txs) }

// LoadFraudCSV reads the fraud dataset. The ip_address column is repaired to
// dotted-decimal form (it is often stored as a float); unparseable addresses
// become the 0.0.0.0 sentinel. Rows whose numeric fields cannot be read are
// skipped and counted rather than failing the load.
func LoadFraudCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	ds := &Dataset{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		tx, label, err := parseRow(rec, cols)
		if err != nil {
			if ds.Skipped < 10 {
				slog.Warn("skipping fraud row", "line", line, "err", err)
			}
			ds.Skipped++
			continue
		}
		ds.Txs = append(ds.Txs, tx)
		ds.Labels = append(ds.Labels, label)
	}
	return ds, nil
}

// LoadFraudCSVFile opens path and calls LoadFraudCSV.
func LoadFraudCSVFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fraud data %s: %w", path, err)
	}
	defer f.Close()
	ds, err := LoadFraudCSV(f)
	if err != nil {
		return nil, fmt.Errorf("load fraud data %s: %w", path, err)
	}
	return ds, nil
}

func parseRow(rec []string, cols map[string]int) (transaction.Transaction, int, error) {
	field := func(name string) string { return strings.TrimSpace(rec[cols[name]]) }

	userID, err := strconv.ParseInt(field(colUserID), 10, 64)
	if err != nil {
		return transaction.Transaction{}, 0, fmt.Errorf("%s: %w", colUserID, err)
	}
	value, err := strconv.ParseFloat(field(colPurchaseValue), 64)
	if err != nil {
		return transaction.Transaction{}, 0, fmt.Errorf("%s: %w", colPurchaseValue, err)
	}
	age, err := strconv.Atoi(field(colAge))
	if err != nil {
		return transaction.Transaction{}, 0, fmt.Errorf("%s: %w", colAge, err)
	}
	label, err := strconv.Atoi(field(colClass))
	if err != nil || (label != 0 && label != 1) {
		return transaction.Transaction{}, 0, fmt.Errorf("%s: want 0 or 1, got %q", colClass, field(colClass))
	}

	return transaction.Transaction{
		UserID:        userID,
		SignupTime:    field(colSignupTime),
		PurchaseTime:  field(colPurchaseTime),
		PurchaseValue: value,
		DeviceID:      field(colDeviceID),
		Source:        field(colSource),
		Browser:       field(colBrowser),
		Sex:           field(colSex),
		Age:           age,
		IPAddress:     ipcodec.FromInt(ipcodec.ToInt(field(colIPAddress))),
	}, label, nil
}
