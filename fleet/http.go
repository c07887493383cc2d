package fleet

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/pdosim/generichttp"
	"github.com/nasa-jpl/pdosim/generichttp/motion"
	"github.com/nasa-jpl/pdosim/od"
	"github.com/nasa-jpl/pdosim/pdo"
	"github.com/nasa-jpl/pdosim/server"
	"github.com/nasa-jpl/pdosim/util"
)

// MappingT is the JSON body of the mapping routes, e.g. {"entries": [24676, 24684]}
type MappingT struct {
	Entries []od.Index `json:"entries"`
}

// HTTPWrapper exposes a Fleet over HTTP
type HTTPWrapper struct {
	*Fleet

	RouteTable generichttp.RouteTable
}

// NewHTTPWrapper returns a new HTTP wrapper with the route table pre-configured
func NewHTTPWrapper(f *Fleet) HTTPWrapper {
	w := HTTPWrapper{Fleet: f}
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/snapshot"}: generichttp.GetJSON(func() (interface{}, error) { return f.Snapshot(), nil }),
		{Method: http.MethodGet, Path: "/tick"}:     generichttp.GetInt(func() (int, error) { return int(f.TickCount()), nil }),
		{Method: http.MethodGet, Path: "/state"}:    generichttp.GetString(func() (string, error) { return f.State().String(), nil }),

		{Method: http.MethodGet, Path: "/mode"}:       generichttp.GetString(func() (string, error) { return f.Mode(), nil }),
		{Method: http.MethodPost, Path: "/mode"}:      generichttp.SetString(f.SetMode),
		{Method: http.MethodGet, Path: "/amplitude"}:  generichttp.GetFloat(func() (float64, error) { return f.Params().Amplitude, nil }),
		{Method: http.MethodPost, Path: "/amplitude"}: generichttp.SetFloat(f.SetAmplitude),
		{Method: http.MethodGet, Path: "/period"}:     generichttp.GetFloat(func() (float64, error) { return f.Params().Period, nil }),
		{Method: http.MethodPost, Path: "/period"}:    generichttp.SetFloat(f.SetPeriod),

		{Method: http.MethodPost, Path: "/start"}: generichttp.Action(f.Start),
		{Method: http.MethodPost, Path: "/stop"}:  generichttp.Action(f.Stop),
		{Method: http.MethodPost, Path: "/reset"}: generichttp.Action(f.Reset),
		{Method: http.MethodPost, Path: "/estop"}: generichttp.Action(f.EmergencyStop),

		{Method: http.MethodGet, Path: "/axis/{axis}/history"}:       w.GetHistory,
		{Method: http.MethodGet, Path: "/axis/{axis}/pdo/{slot}"}:    w.GetMapping,
		{Method: http.MethodPost, Path: "/axis/{axis}/pdo/{slot}"}:   w.SetMapping,
		{Method: http.MethodDelete, Path: "/axis/{axis}/pdo/{slot}"}: w.ClearMapping,
	}
	motion.Bind(w, rt)
	w.RouteTable = rt
	return w
}

// RT satisfies the generichttp.HTTPer interface
func (h HTTPWrapper) RT() generichttp.RouteTable {
	return h.RouteTable
}

func parseAxis(s string) (pdo.NodeID, error) {
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("axis %q: %w", s, motion.ErrUnknownAxis)
	}
	return pdo.NodeID(n), nil
}

func (h HTTPWrapper) state(s string) (float64, float64, float64, error) {
	id, err := parseAxis(s)
	if err != nil {
		return 0, 0, 0, err
	}
	st, err := h.Fleet.AxisState(id)
	return st.Position, st.Velocity, st.Torque, err
}

// GetPos returns the position of an axis
func (h HTTPWrapper) GetPos(axis string) (float64, error) {
	p, _, _, err := h.state(axis)
	return p, err
}

// GetVelocity returns the velocity of an axis
func (h HTTPWrapper) GetVelocity(axis string) (float64, error) {
	_, v, _, err := h.state(axis)
	return v, err
}

// GetTorque returns the torque of an axis
func (h HTTPWrapper) GetTorque(axis string) (float64, error) {
	_, _, t, err := h.state(axis)
	return t, err
}

// Enable enables an axis
func (h HTTPWrapper) Enable(axis string) error {
	id, err := parseAxis(axis)
	if err != nil {
		return err
	}
	return h.Fleet.EnableAxis(id, true)
}

// Disable disables an axis
func (h HTTPWrapper) Disable(axis string) error {
	id, err := parseAxis(axis)
	if err != nil {
		return err
	}
	return h.Fleet.EnableAxis(id, false)
}

// GetEnabled returns whether an axis is enabled
func (h HTTPWrapper) GetEnabled(axis string) (bool, error) {
	id, err := parseAxis(axis)
	if err != nil {
		return false, err
	}
	return h.Fleet.AxisEnabled(id)
}

// Stop halts one axis immediately
func (h HTTPWrapper) Stop(axis string) error {
	id, err := parseAxis(axis)
	if err != nil {
		return err
	}
	return h.Fleet.StopAxis(id)
}

// GetHistory replies with the history of an axis as a JSON array, or as one
// CSV line with ?format=csv
func (h HTTPWrapper) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseAxis(chi.URLParam(r, "axis"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	hist, err := h.Fleet.History(id)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprintln(w, util.Int32SliceToCSV(hist))
		return
	}
	server.JSON(w, hist)
}

func (h HTTPWrapper) axisSlot(w http.ResponseWriter, r *http.Request) (pdo.NodeID, int, bool) {
	id, err := parseAxis(chi.URLParam(r, "axis"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return 0, 0, false
	}
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, 0, false
	}
	return id, slot, true
}

// GetMapping replies with the entries of one slot
func (h HTTPWrapper) GetMapping(w http.ResponseWriter, r *http.Request) {
	id, slot, ok := h.axisSlot(w, r)
	if !ok {
		return
	}
	slots, err := h.Fleet.Mapping(id)
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	out := MappingT{Entries: []od.Index{}}
	for _, s := range slots {
		if s.Slot == slot {
			out.Entries = s.Entries
		}
	}
	server.JSON(w, out)
}

// SetMapping replaces the entries of one slot
func (h HTTPWrapper) SetMapping(w http.ResponseWriter, r *http.Request) {
	id, slot, ok := h.axisSlot(w, r)
	if !ok {
		return
	}
	m := MappingT{}
	if !generichttp.Decode(w, r, &m) {
		return
	}
	if err := h.Fleet.SetMapping(id, slot, m.Entries); err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ClearMapping empties one slot
func (h HTTPWrapper) ClearMapping(w http.ResponseWriter, r *http.Request) {
	id, slot, ok := h.axisSlot(w, r)
	if !ok {
		return
	}
	if err := h.Fleet.ClearMapping(id, slot); err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func httpStatus(err error) int {
	var ce *pdo.ConfigError
	switch {
	case errors.Is(err, motion.ErrUnknownAxis):
		return http.StatusNotFound
	case errors.As(err, &ce), errors.Is(err, ErrBadParam):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
