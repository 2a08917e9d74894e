package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"module/internal/cluster"
	"module/internal/clusterconfig"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	cfg := clusterconfig.Default([]string{"A", "B", "C", "D", "E"})
	c := cluster.New(cfg, logrus.NewEntry(logrus.New()))

	r := mux.NewRouter()
	NewHandler(c, logrus.NewEntry(logrus.New())).Register(r)
	return r
}

func TestPutThenGetRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{"key": "x", "value": "1"})
	putReq := httptest.NewRequest(http.MethodPost, "/put", bytes.NewReader(body))
	putRec := httptest.NewRecorder()
	r.ServeHTTP(putRec, putReq)
	assert.Equal(t, putRec.Code, http.StatusCreated)

	getReq := httptest.NewRequest(http.MethodGet, "/get?key=x", nil)
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, getReq)
	assert.Equal(t, getRec.Code, http.StatusOK)

	var resp getResponse
	assert.NilError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	assert.Equal(t, len(resp.Values), 1)
	assert.Equal(t, resp.Values[0], "1")
}

func TestGetMissingKeyReturns404(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/get?key=nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestGetNoKeyReturns400(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/get", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestPutMissingValueReturns400(t *testing.T) {
	r := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{"key": "x"})
	req := httptest.NewRequest(http.MethodPost, "/put", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestPutNoKeyReturns400(t *testing.T) {
	r := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{"value": "1"})
	req := httptest.NewRequest(http.MethodPost, "/put", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
}
