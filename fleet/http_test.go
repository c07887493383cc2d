package fleet_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/pdosim/fleet"
	"github.com/nasa-jpl/pdosim/generichttp"
	"github.com/nasa-jpl/pdosim/od"
)

func router(t *testing.T) (*fleet.Fleet, http.Handler) {
	f, _ := newFleet(t, fleet.DefaultConfig())
	r := chi.NewRouter()
	generichttp.Bind(r, fleet.NewHTTPWrapper(f))
	return f, r
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestHTTPSnapshot(t *testing.T) {
	f, h := router(t)
	f.Tick()
	w := call(h, "GET", "/snapshot", "")
	require.Equal(t, 200, w.Code)
	var s fleet.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&s))
	require.Len(t, s.Axes, 5)
	require.Equal(t, int64(1), s.Tick)
	require.Equal(t, "sin", s.Mode)
}

func TestHTTPMode(t *testing.T) {
	f, h := router(t)
	require.Equal(t, 200, call(h, "POST", "/mode", `{"str":"step"}`).Code)
	require.Equal(t, "step", f.Mode())
	require.JSONEq(t, `{"str":"step"}`, call(h, "GET", "/mode", "").Body.String())
}

func TestHTTPPeriod(t *testing.T) {
	f, h := router(t)
	require.Equal(t, 200, call(h, "POST", "/period", `{"f64":100}`).Code)
	require.Equal(t, 100., f.Params().Period)
	require.Equal(t, 400, call(h, "POST", "/period", `{"f64":0}`).Code)
}

func TestHTTPActions(t *testing.T) {
	f, h := router(t)
	require.Equal(t, 200, call(h, "POST", "/estop", "").Code)
	require.Equal(t, fleet.Halted, f.State())
	require.Equal(t, 200, call(h, "POST", "/start", "").Code)
	require.Equal(t, fleet.Running, f.State())
	require.Equal(t, 200, call(h, "POST", "/stop", "").Code)
	require.Equal(t, fleet.Stopping, f.State())
	require.Equal(t, 200, call(h, "POST", "/reset", "").Code)
	require.JSONEq(t, `{"str":"stopping"}`, call(h, "GET", "/state", "").Body.String())
}

func TestHTTPAxisRoutes(t *testing.T) {
	f, h := router(t)
	for i := 0; i < 60; i++ {
		f.Tick()
	}
	st, err := f.AxisState(2)
	require.NoError(t, err)

	var pos struct{ F64 float64 }
	require.NoError(t, json.NewDecoder(call(h, "GET", "/axis/2/pos", "").Body).Decode(&pos))
	require.Equal(t, st.Position, pos.F64)

	var hist []int32
	require.NoError(t, json.NewDecoder(call(h, "GET", "/axis/2/history", "").Body).Decode(&hist))
	require.Len(t, hist, 60)

	csv := call(h, "GET", "/axis/2/history?format=csv", "")
	require.Equal(t, "text/csv", csv.Header().Get("Content-Type"))
	require.Equal(t, 59, strings.Count(csv.Body.String(), ","))

	require.Equal(t, 404, call(h, "GET", "/axis/42/pos", "").Code)
	require.Equal(t, 404, call(h, "GET", "/axis/x/history", "").Code)
}

func TestHTTPMapping(t *testing.T) {
	f, h := router(t)
	w := call(h, "GET", "/axis/1/pdo/2", "")
	require.JSONEq(t, `{"entries":[24676,24684]}`, w.Body.String())

	require.Equal(t, 200, call(h, "POST", "/axis/1/pdo/1", `{"entries":[24695]}`).Code)
	m, _ := f.Mapping(1)
	require.Equal(t, []od.Index{od.Torque}, m[0].Entries)

	require.Equal(t, 400, call(h, "POST", "/axis/1/pdo/1", `{"entries":[1,2,3]}`).Code)
	require.Equal(t, 400, call(h, "POST", "/axis/1/pdo/x", `{"entries":[1]}`).Code)

	require.Equal(t, 200, call(h, "DELETE", "/axis/1/pdo/3", "").Code)
	require.JSONEq(t, `{"entries":[]}`, call(h, "GET", "/axis/1/pdo/3", "").Body.String())
}

func TestHTTPEnableAndStopAxis(t *testing.T) {
	f, h := router(t)
	require.Equal(t, 200, call(h, "POST", "/axis/4/enabled", `{"bool":false}`).Code)
	on, _ := f.AxisEnabled(4)
	require.False(t, on)
	require.JSONEq(t, `{"bool":false}`, call(h, "GET", "/axis/4/enabled", "").Body.String())
	require.Equal(t, 200, call(h, "POST", "/axis/4/stop", "").Code)
}
