// Package motion provides HTTP bindings for per-axis motion interfaces.
//
// Axes are addressed by the {axis} URL parameter; implementations parse it
// and return ErrUnknownAxis for ids they do not own, which is mapped to 404.
package motion

import (
	"errors"
	"net/http"

	"github.com/nasa-jpl/pdosim/generichttp"
)

// ErrUnknownAxis is returned by implementations for an axis they do not have
var ErrUnknownAxis = errors.New("unknown axis")

func statusFor(err error) int {
	if errors.Is(err, ErrUnknownAxis) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Bind adds routes for every interface iface satisfies
func Bind(iface interface{}, table generichttp.RouteTable) {
	if e, ok := iface.(Enabler); ok {
		HTTPEnable(e, table)
	}
	if s, ok := iface.(Stopper); ok {
		HTTPStop(s, table)
	}
	if r, ok := iface.(Reader); ok {
		HTTPRead(r, table)
	}
}
