package motion

import (
	"go/types"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/pdosim/generichttp"
	"github.com/nasa-jpl/pdosim/server"
)

// Reader describes an interface with the actual value readbacks of an axis
type Reader interface {
	// GetPos gets the current position of an axis
	GetPos(string) (float64, error)

	// GetVelocity gets the current velocity of an axis
	GetVelocity(string) (float64, error)

	// GetTorque gets the current torque of an axis
	GetTorque(string) (float64, error)
}

// HTTPRead adds routes for the reader to the route table
func HTTPRead(iface Reader, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/pos"}] = axisFloat(iface.GetPos)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/velocity"}] = axisFloat(iface.GetVelocity)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/axis/{axis}/torque"}] = axisFloat(iface.GetTorque)
}

func axisFloat(fcn func(string) (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis := chi.URLParam(r, "axis")
		f, err := fcn(axis)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		hp := server.HumanPayload{T: types.Float64, Float: f}
		hp.EncodeAndRespond(w, r)
	}
}
