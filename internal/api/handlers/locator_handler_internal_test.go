package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"peer address", "203.0.113.7:52100", nil, "203.0.113.7"},
		{"first forwarded hop", "10.0.0.2:443", map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.9"}, "198.51.100.4"},
		{"real ip header", "10.0.0.2:443", map[string]string{"X-Real-IP": "198.51.100.5"}, "198.51.100.5"},
		{"loopback", "127.0.0.1:9000", nil, ""},
		{"private forwarded hop", "203.0.113.7:1", map[string]string{"X-Forwarded-For": "192.168.1.20"}, ""},
		{"garbage header falls through", "203.0.113.8:1", map[string]string{"X-Forwarded-For": "unknown"}, "203.0.113.8"},
		{"ipv6 peer", "[2001:db8::1]:8080", nil, "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}
