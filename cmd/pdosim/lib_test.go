package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/structs"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/pdosim/bus"
	"github.com/nasa-jpl/pdosim/fleet"
	"github.com/nasa-jpl/pdosim/od"
	"github.com/nasa-jpl/pdosim/pdo"
)

func loaded(t *testing.T, over map[string]interface{}) Config {
	t.Helper()
	kk := koanf.New(".")
	require.NoError(t, kk.Load(structs.Provider(DefaultConfig(), "koanf"), nil))
	require.NoError(t, kk.Load(confmap.Provider(over, "."), nil))
	c, err := unmarshal(kk)
	require.NoError(t, err)
	return c
}

func TestDefaultsSurviveKoanf(t *testing.T) {
	c := loaded(t, map[string]interface{}{})
	if diff := cmp.Diff(DefaultConfig(), c); diff != "" {
		t.Errorf("config changed in decoding (-want +got):\n%s", diff)
	}
}

func TestUnmarshalNamesAndDurations(t *testing.T) {
	c := loaded(t, map[string]interface{}{
		"TickPeriod": "5ms",
		"Fleet.Axes": "3",
		"Fleet.Mapping": []interface{}{
			map[string]interface{}{"Slot": 1, "Entries": []interface{}{"Position", "0x606C"}},
			map[string]interface{}{"Slot": 2, "Entries": []interface{}{"torque"}},
		},
	})
	require.Equal(t, 5*time.Millisecond, c.TickPeriod)
	require.Equal(t, 3, c.Fleet.Axes)
	want := []pdo.Slot{
		{Slot: 1, Entries: []od.Index{od.Position, od.Velocity}},
		{Slot: 2, Entries: []od.Index{od.Torque}},
	}
	if diff := cmp.Diff(want, c.Fleet.Mapping); diff != "" {
		t.Errorf("mapping (-want +got):\n%s", diff)
	}
}

func TestUnmarshalBadRegister(t *testing.T) {
	kk := koanf.New(".")
	require.NoError(t, kk.Load(confmap.Provider(map[string]interface{}{
		"Fleet.Mapping": []interface{}{
			map[string]interface{}{"Slot": 1, "Entries": []interface{}{"flux capacitor"}},
		},
	}, "."), nil))
	_, err := unmarshal(kk)
	require.Error(t, err)
}

func TestEnvKeyMatchesKnownKeys(t *testing.T) {
	kk := koanf.New(".")
	require.NoError(t, kk.Load(structs.Provider(DefaultConfig(), "koanf"), nil))
	cb := envKey(kk)
	require.Equal(t, "Fleet.Axes", cb("PDOSIM_FLEET_AXES"))
	require.Equal(t, "Fleet.Trajectory.Mode", cb("PDOSIM_FLEET_TRAJECTORY_MODE"))
	require.Equal(t, "NOT.A.KEY", cb("PDOSIM_NOT_A_KEY"))
}

func newFleet(t *testing.T) *fleet.Fleet {
	t.Helper()
	cfg := fleet.DefaultConfig()
	cfg.Axes = 2
	cfg.PollTimeout = 0
	v := bus.NewVirtual(64)
	f, err := fleet.New(cfg, v.Port("fleet"), v.Port("supervisor"))
	require.NoError(t, err)
	return f
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuildMuxRoutes(t *testing.T) {
	f := newFleet(t)
	mux := BuildMux(f, nil)
	f.Tick()

	rec := do(t, mux, http.MethodGet, "/tick", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"int": 1}`, rec.Body.String())

	rec = do(t, mux, http.MethodGet, "/endpoints", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "POST /lock")
	require.Contains(t, rec.Body.String(), "GET /snapshot")
}

func TestBuildMuxLock(t *testing.T) {
	f := newFleet(t)
	mux := BuildMux(f, nil)

	rec := do(t, mux, http.MethodPost, "/lock", `{"bool": true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodPost, "/mode", `{"str": "line"}`)
	require.Equal(t, http.StatusLocked, rec.Code)
	require.Equal(t, "sin", f.Mode())

	rec = do(t, mux, http.MethodGet, "/mode", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodPost, "/lock", `{"bool": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, mux, http.MethodPost, "/mode", `{"str": "line"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "line", f.Mode())
}

func TestReload(t *testing.T) {
	f := newFleet(t)
	c := DefaultConfig()
	c.Fleet.Axes = 2
	c.Fleet.Trajectory.Amplitude = 250
	c.Fleet.HistoryWindow = 10
	c.Fleet.Mapping = []pdo.Slot{{Slot: 1, Entries: []od.Index{od.Position}}}
	require.NoError(t, reload(f, c))
	require.Equal(t, 250., f.Params().Amplitude)

	c.Fleet.Trajectory.Period = 0
	require.Error(t, reload(f, c))
}

func TestDescribe(t *testing.T) {
	c := pdo.DefaultCodec()
	require.Contains(t, describe(c, c.Sync()), "SYNC")
	fr, err := c.Encode(4, 2, []int32{7, -7})
	require.NoError(t, err)
	s := describe(c, fr)
	require.Contains(t, s, "slot 2 [7 -7]")
	require.Contains(t, s, "4")
}
