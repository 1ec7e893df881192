package training

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/fraudscore/internal/artifact"
	"github.com/gyaneshwarpardhi/fraudscore/internal/features"
	"github.com/gyaneshwarpardhi/fraudscore/internal/geo"
	"github.com/gyaneshwarpardhi/fraudscore/internal/model"
	"github.com/gyaneshwarpardhi/fraudscore/internal/registry"
	"github.com/gyaneshwarpardhi/fraudscore/internal/scoring"
	"github.com/gyaneshwarpardhi/fraudscore/internal/transaction"
)

const header = "user_id,signup_time,purchase_time,purchase_value,device_id,source,browser,sex,age,ip_address,class\n"

const rangesCSV = `lower_bound_ip_address,upper_bound_ip_address,country
16777216.0,16777471,Australia
732758016,732758527,Japan
3232235776,3232236031,United States
`

// syntheticCSV mimics the real dataset's strongest signal: fraudulent
// purchases happen seconds after signup.
func syntheticCSV(n int) string {
	var b strings.Builder
	b.WriteString(header)
	sources := []string{"SEO", "Ads", "Direct"}
	browsers := []string{"Chrome", "Safari", "FireFox", "IE", "Opera"}
	base := time.Date(2015, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		fraud := i%5 == 0
		signup := base.Add(time.Duration(i) * 37 * time.Minute)
		purchase := signup.Add(time.Duration(20+i%40) * 24 * time.Hour)
		ip := fmt.Sprintf("%d.%d", 16777216+i%200, i%97) // Australia, float-corrupted
		label := 0
		if fraud {
			purchase = signup.Add(time.Second)
			ip = fmt.Sprintf("%d.0", 732758016+i%500) // Japan
			label = 1
		} else if i%7 == 0 {
			ip = "10.0.0.1" // outside every range
		}
		fmt.Fprintf(&b, "%d,%s,%s,%d,DEV%05d,%s,%s,%s,%d,%s,%d\n",
			100000+(i*7919)%90000,
			signup.Format("2006-01-02 15:04:05"), purchase.Format("2006-01-02 15:04:05"),
			10+i%90, i, sources[i%3], browsers[(i/3)%5], []string{"M", "F"}[i%2], 18+i%50, ip, label)
	}
	return b.String()
}

func TestLoadFraudCSV(t *testing.T) {
	csv := header +
		"22058,2015-02-24 22:55:49,2015-04-18 02:47:11,34,QVPSPJUOCKZAR,SEO,Chrome,M,39,732758368.79972,0\n" +
		"333320,2015-06-07 20:39:50,2015-06-08 01:38:54,46,EOGFQPIZPYXFZ,Ads,Chrome,F,53,350311387.865908,1\n" +
		"1,2015-06-07 20:39:50,2015-06-08 01:38:54,46,X,Ads,Chrome,F,old,1.2.3.4,0\n" +
		"2,2015-06-07 20:39:50,2015-06-08 01:38:54,46,X,Ads,Chrome,F,20,garbage,2\n" +
		"3,2015-06-07 20:39:50,2015-06-08 01:38:54,46,X,Ads,Chrome,F,20,garbage,0\n"

	ds, err := LoadFraudCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 2, ds.Skipped)
	assert.Equal(t, []int{0, 1, 0}, ds.Labels)

	assert.Equal(t, "43.173.1.96", ds.Txs[0].IPAddress)
	assert.Equal(t, "20.225.83.219", ds.Txs[1].IPAddress)
	assert.Equal(t, "0.0.0.0", ds.Txs[2].IPAddress)
	assert.Equal(t, int64(22058), ds.Txs[0].UserID)
	assert.Equal(t, 39, ds.Txs[0].Age)
	assert.Equal(t, 34.0, ds.Txs[0].PurchaseValue)
	assert.Equal(t, "2015-02-24 22:55:49", ds.Txs[0].SignupTime)
}

func TestLoadFraudCSV_MissingColumns(t *testing.T) {
	_, err := LoadFraudCSV(strings.NewReader("user_id,signup_time\n1,2015-01-01 00:00:00\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ip_address")
	assert.Contains(t, err.Error(), "class")
}

func TestAssignCountries(t *testing.T) {
	idx, err := geo.LoadRanges(strings.NewReader(rangesCSV))
	require.NoError(t, err)
	ds := &Dataset{Txs: []transaction.Transaction{
		{IPAddress: "43.173.1.96"},
		{IPAddress: "10.0.0.1"},
		{IPAddress: "1.0.0.5"},
		{IPAddress: "0.0.0.0"},
		{IPAddress: "192.168.0.1"},
	}}

	cov, viaFallback := AssignCountries(context.Background(), ds, idx, nil)
	assert.Equal(t, geo.Coverage{Matched: 3, Total: 5}, cov)
	assert.Zero(t, viaFallback)
	assert.Equal(t, []string{"Japan", "Unknown", "Australia", "Unknown", "United States"}, countries(ds))
}

type mapResolver map[string]string

func (m mapResolver) Resolve(_ context.Context, ip string) (string, bool, error) {
	if ip == "10.0.0.2" {
		return "", false, fmt.Errorf("mmdb closed")
	}
	c, ok := m[ip]
	return c, ok, nil
}

func TestAssignCountries_Fallback(t *testing.T) {
	idx, err := geo.LoadRanges(strings.NewReader(rangesCSV))
	require.NoError(t, err)
	ds := &Dataset{Txs: []transaction.Transaction{
		{IPAddress: "43.173.1.96"},
		{IPAddress: "8.8.8.8"},
		{IPAddress: "10.0.0.1"},
		{IPAddress: "10.0.0.2"},
	}}
	fallback := mapResolver{"8.8.8.8": "Czechia", "43.173.1.96": "Germany"}

	cov, viaFallback := AssignCountries(context.Background(), ds, idx, fallback)
	assert.Equal(t, geo.Coverage{Matched: 2, Total: 4}, cov)
	assert.Equal(t, 1, viaFallback)
	// the range table wins where it matches
	assert.Equal(t, []string{"Japan", "Czechia", "Unknown", "Unknown"}, countries(ds))

	// fallback only
	ds = &Dataset{Txs: []transaction.Transaction{{IPAddress: "8.8.8.8"}, {IPAddress: "1.1.1.1"}}}
	cov, viaFallback = AssignCountries(context.Background(), ds, nil, fallback)
	assert.Equal(t, geo.Coverage{Matched: 1, Total: 2}, cov)
	assert.Equal(t, 1, viaFallback)
	assert.Equal(t, []string{"Czechia", "Unknown"}, countries(ds))
}

func countries(ds *Dataset) []string {
	out := make([]string, 0, ds.Len())
	for _, tx := range ds.Txs {
		out = append(out, tx.Country)
	}
	return out
}

func TestVocabulary_AlwaysHasUnknownCountry(t *testing.T) {
	ds := &Dataset{Txs: []transaction.Transaction{
		{Source: "SEO", Browser: "Chrome", Sex: "M", Country: "Japan"},
		{Source: "Ads", Browser: "Chrome", Sex: "F"},
	}}
	v := Vocabulary(ds)
	assert.ElementsMatch(t, []string{"SEO", "Ads"}, v[registry.FieldSource])
	assert.ElementsMatch(t, []string{"Chrome"}, v[registry.FieldBrowser])
	assert.ElementsMatch(t, []string{"Japan", "Unknown"}, v[registry.FieldCountry])
}

func TestStratifiedSplit(t *testing.T) {
	labels := make([]int, 1000)
	for i := range labels {
		if i%10 == 0 {
			labels[i] = 1
		}
	}
	train, test, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 200)
	assert.Len(t, train, 800)

	positives := 0
	seen := map[int]bool{}
	for _, i := range test {
		positives += labels[i]
		seen[i] = true
	}
	assert.Equal(t, 20, positives)
	for _, i := range train {
		assert.False(t, seen[i], "row %d in both sets", i)
	}

	train2, test2, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, test3, err := StratifiedSplit(labels, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test, test3)

	_, _, err = StratifiedSplit(labels, 1, 42)
	assert.Error(t, err)
}

func TestRun_EndToEnd(t *testing.T) {
	ctx := context.Background()
	ds, err := LoadFraudCSV(strings.NewReader(syntheticCSV(1000)))
	require.NoError(t, err)
	idx, err := geo.LoadRanges(strings.NewReader(rangesCSV))
	require.NoError(t, err)
	store, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	params := model.DefaultTrainParams()
	params.Epochs = 30
	rep, err := Run(ctx, ds, idx, store, Options{TestFraction: 0.2, Params: params, Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, 1000, rep.Rows)
	assert.Equal(t, 0, rep.BuildFailed)
	assert.Equal(t, 1000, rep.Coverage.Total)
	assert.Less(t, rep.Coverage.Matched, 1000)
	assert.Greater(t, rep.Coverage.Matched, 800)
	assert.Equal(t, 3, rep.Vocabulary[registry.FieldSource])
	assert.Equal(t, 800, rep.TrainRows)
	assert.Equal(t, 200, rep.TestRows)
	assert.Greater(t, rep.AUC, 0.9)
	assert.NotEmpty(t, rep.ArtifactID)

	svc, err := scoring.Load(ctx, store, features.NewBuilder(features.WithResolver(geo.NewIndexResolver(idx))))
	require.NoError(t, err)
	info := svc.Info()
	assert.Equal(t, features.Columns(false), info.Features)
	assert.Equal(t, rep.AUC, info.BestAUC)
	assert.Equal(t, rep.ArtifactID, info.ArtifactID)

	fraudLike := &transaction.Transaction{
		UserID: 150000, SignupTime: "2015-05-01 12:00:00", PurchaseTime: "2015-05-01 12:00:01",
		PurchaseValue: 40, DeviceID: "DEV00001", Source: "SEO", Browser: "Chrome", Sex: "M", Age: 30,
		IPAddress: "43.173.1.96",
	}
	res, err := svc.Score(ctx, fraudLike)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Label)

	legit := *fraudLike
	legit.PurchaseTime = "2015-06-10 12:00:00"
	legit.IPAddress = "1.0.0.20"
	res, err = svc.Score(ctx, &legit)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Label)
}

func TestRun_EmptyDataset(t *testing.T) {
	store, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = Run(context.Background(), &Dataset{}, nil, store, Options{TestFraction: 0.2, Params: model.DefaultTrainParams()})
	assert.Error(t, err)
}
