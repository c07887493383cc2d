package server_test

import (
	"go/types"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/pdosim/server"
)

func TestEncodeAndRespond(t *testing.T) {
	cases := []struct {
		hp   server.HumanPayload
		want string
	}{
		{server.HumanPayload{T: types.Bool, Bool: true}, `{"bool":true}`},
		{server.HumanPayload{T: types.Float64, Float: 1.5}, `{"f64":1.5}`},
		{server.HumanPayload{T: types.Int, Int: -3}, `{"int":-3}`},
		{server.HumanPayload{T: types.String, String: "sin"}, `{"str":"sin"}`},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		tc.hp.EncodeAndRespond(w, httptest.NewRequest("GET", "/", nil))
		require.Equal(t, 200, w.Code)
		require.JSONEq(t, tc.want, w.Body.String())
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	}
}

func TestUnsupportedKind(t *testing.T) {
	w := httptest.NewRecorder()
	server.HumanPayload{T: types.Complex128}.EncodeAndRespond(w, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, 500, w.Code)
}
