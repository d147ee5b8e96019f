package device

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPPrecedence(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"client header wins", map[string]string{HeaderClientIP: "10.0.0.1", HeaderForwarded: "10.0.0.2"}, "10.0.0.3:4000", "10.0.0.1"},
		{"first forwarded hop", map[string]string{HeaderForwarded: " 10.0.0.2 , 172.16.0.1"}, "10.0.0.3:4000", "10.0.0.2"},
		{"socket address", nil, "10.0.0.3:4000", "10.0.0.3"},
		{"remote without port", nil, "10.0.0.4", "10.0.0.4"},
		{"unknown", nil, "", UnknownIP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientIP(req))
		})
	}
}

func TestInfoString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:1234"
	req.Header.Set(HeaderModel, "Pixel 7")
	req.Header.Set(HeaderOSVersion, "Android 14")

	info := FromRequest(req)
	assert.Equal(t, "Dispositivo: Pixel 7, SO: Android 14, IP: 192.168.1.5", info.String())
	assert.Equal(t, "IP: UNKNOWN", Info{}.String())
}
