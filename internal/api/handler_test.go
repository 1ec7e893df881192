package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/fraudscore/internal/config"
	"github.com/gyaneshwarpardhi/fraudscore/internal/engine"
	ferrors "github.com/gyaneshwarpardhi/fraudscore/internal/errors"
	"github.com/gyaneshwarpardhi/fraudscore/internal/features"
	"github.com/gyaneshwarpardhi/fraudscore/internal/model"
	"github.com/gyaneshwarpardhi/fraudscore/internal/registry"
	"github.com/gyaneshwarpardhi/fraudscore/internal/scoring"
)

type fixedClassifier struct{ p float64 }

func (c fixedClassifier) PredictProba([]float64) (float64, error) { return c.p, nil }
func (c fixedClassifier) NumFeatures() int                        { return 3 }

func newService(t *testing.T, p float64) *scoring.Service {
	t.Helper()
	reg, err := registry.Fit(map[string][]string{
		registry.FieldSource:  {"SEO", "Ads"},
		registry.FieldBrowser: {"Chrome"},
		registry.FieldSex:     {"M", "F"},
		registry.FieldCountry: {"Unknown"},
	}, []string{features.ColAge, features.ColTimeToPurchase, features.ColSourceEncoded},
		registry.Metadata{BestModel: model.Name, BestScore: 0.81})
	require.NoError(t, err)
	svc, err := scoring.New(fixedClassifier{p: p}, reg, features.NewBuilder())
	require.NoError(t, err)
	return svc
}

func newServer(t *testing.T, svc *scoring.Service, reload Reloader) (*httptest.Server, *engine.Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	eng := engine.New(ctx, svc, config.EngineConf{Workers: 2, QueueDepth: 50, TimeoutMs: 2000})
	srv := httptest.NewServer(New(eng, reload, 5))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		eng.Shutdown()
	})
	return srv, eng
}

const validTx = `{
	"user_id": 22058,
	"signup_time": "2015-02-24 22:55:49",
	"purchase_time": "2015-04-18 02:47:11",
	"purchase_value": 34,
	"device_id": "QVPSPJUOCKZAR",
	"source": "SEO",
	"browser": "Chrome",
	"sex": "M",
	"age": 39,
	"ip_address": "732758368.79972"
}`

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func get(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestPredict(t *testing.T) {
	srv, _ := newServer(t, newService(t, 0.9), nil)

	resp, body := post(t, srv.URL+"/predict", validTx)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.9, body["fraud_probability"])
	assert.Equal(t, 1.0, body["fraud_label"])
	assert.InDelta(t, 0.8, body["confidence"], 1e-9)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestPredict_Errors(t *testing.T) {
	srv, _ := newServer(t, newService(t, 0.1), nil)

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"malformed json", `{"user_id":`, http.StatusBadRequest, ""},
		{"missing signup_time", strings.Replace(validTx, `"signup_time": "2015-02-24 22:55:49",`, "", 1), http.StatusBadRequest, ""},
		{"negative age", strings.Replace(validTx, `"age": 39`, `"age": -1`, 1), http.StatusBadRequest, ""},
		{"bad timestamp", strings.Replace(validTx, "2015-04-18 02:47:11", "18/04/2015", 1), http.StatusUnprocessableEntity, string(ferrors.KindParse)},
		{"unseen source", strings.Replace(validTx, `"source": "SEO"`, `"source": "Referral"`, 1), http.StatusUnprocessableEntity, string(ferrors.KindPreprocessing)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := post(t, srv.URL+"/predict", tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
			if tc.kind != "" {
				assert.Equal(t, tc.kind, body["kind"])
			}
		})
	}
}

func TestPredict_ModelUnavailable(t *testing.T) {
	srv, _ := newServer(t, scoring.Unavailable(errors.New("model_info: object not found")), nil)

	resp, body := post(t, srv.URL+"/predict", validTx)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, string(ferrors.KindModelUnavailable), body["kind"])

	resp, body = get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["model_loaded"])

	resp, _ = get(t, srv.URL+"/model-info")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body = get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "model_unavailable", body["status"])
}

func TestPredictBatch(t *testing.T) {
	srv, _ := newServer(t, newService(t, 0.3), nil)

	bad := strings.Replace(validTx, `"age": 39`, `"age": 0`, 1)
	resp, body := post(t, srv.URL+"/v1/predict/batch", fmt.Sprintf("[%s,%s,%s]", validTx, validTx, bad))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, body["job_id"])
	assert.Equal(t, 3.0, body["total"])
	assert.Equal(t, 2.0, body["queued"])
	assert.Equal(t, 1.0, body["invalid"])
	assert.Equal(t, 0.0, body["rejected"])

	resp, _ = post(t, srv.URL+"/v1/predict/batch", `[]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	six := "[" + strings.Repeat(validTx+",", 5) + validTx + "]"
	resp, body = post(t, srv.URL+"/v1/predict/batch", six)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "exceeds max 5")
}

func TestHealthAndModelInfo(t *testing.T) {
	srv, _ := newServer(t, newService(t, 0.3), nil)

	resp, body := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["model_loaded"])
	assert.Equal(t, 3.0, body["features"])

	resp, body = get(t, srv.URL+"/model-info")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3.0, body["n_features"])
	assert.Equal(t, model.Name, body["best_model"])
	assert.Equal(t, 0.81, body["best_auc"])
	assert.Equal(t, []any{"age", "time_to_purchase", "source_encoded"}, body["features"])
	assert.Equal(t, []any{"browser", "country", "sex", "source"}, body["encoders_available"])

	resp, _ = get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])

	mresp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	mresp.Body.Close()
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
}

func TestReloadModel(t *testing.T) {
	var fail atomic.Bool
	reload := func(context.Context) (*scoring.Service, error) {
		if fail.Load() {
			return nil, ferrors.Unavailable("load artifacts", errors.New("checksum mismatch"))
		}
		return newService(t, 0.95), nil
	}
	srv, eng := newServer(t, scoring.Unavailable(errors.New("not yet trained")), reload)

	resp, body := post(t, srv.URL+"/v1/model/reload", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["reloaded"])
	assert.True(t, eng.Service().Available())

	resp, body = post(t, srv.URL+"/predict", validTx)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["fraud_label"])

	fail.Store(true)
	resp, _ = post(t, srv.URL+"/v1/model/reload", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.True(t, eng.Service().Available(), "failed reload must keep the current model")
}

func TestReloadModel_NotConfigured(t *testing.T) {
	srv, _ := newServer(t, newService(t, 0.3), nil)
	resp, _ := post(t, srv.URL+"/v1/model/reload", "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestRequestIDPropagates(t *testing.T) {
	srv, _ := newServer(t, newService(t, 0.3), nil)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "upstream-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "upstream-42", resp.Header.Get(requestIDHeader))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ferrors.Parse("signup_time", "invalid timestamp", nil), http.StatusUnprocessableEntity},
		{ferrors.Preprocessing("browser", "unseen"), http.StatusUnprocessableEntity},
		{ferrors.Unavailable("x", nil), http.StatusServiceUnavailable},
		{fmt.Errorf("%w (capacity 1)", engine.ErrQueueFull), http.StatusTooManyRequests},
		{fmt.Errorf("%w after 5s", engine.ErrTimeout), http.StatusGatewayTimeout},
		{context.Canceled, http.StatusRequestTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
