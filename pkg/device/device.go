// Package device extracts client metadata used by the audit trail.
package device

import (
	"net"
	"net/http"
	"strings"
)

// UnknownIP is recorded when no address can be resolved.
const UnknownIP = "UNKNOWN"

// Headers sent by the mobile client.
const (
	HeaderClientIP   = "X-Client-IP"
	HeaderForwarded  = "X-Forwarded-For"
	HeaderModel      = "X-Device-Model"
	HeaderOSVersion  = "X-OS-Version"
	HeaderAppVersion = "X-App-Version"
)

// Info is the free-form device bag attached to audit descriptions.
type Info struct {
	Model      string
	OSVersion  string
	AppVersion string
	UserAgent  string
	IP         string
}

// ClientIP resolves the caller address: X-Client-IP, then the first
// X-Forwarded-For hop, then the socket address.
func ClientIP(r *http.Request) string {
	if r == nil {
		return UnknownIP
	}
	if ip := strings.TrimSpace(r.Header.Get(HeaderClientIP)); ip != "" {
		return ip
	}
	if fwd := r.Header.Get(HeaderForwarded); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return UnknownIP
}

// FromRequest builds the device bag for the request.
func FromRequest(r *http.Request) Info {
	if r == nil {
		return Info{IP: UnknownIP}
	}
	return Info{
		Model:      strings.TrimSpace(r.Header.Get(HeaderModel)),
		OSVersion:  strings.TrimSpace(r.Header.Get(HeaderOSVersion)),
		AppVersion: strings.TrimSpace(r.Header.Get(HeaderAppVersion)),
		UserAgent:  strings.TrimSpace(r.UserAgent()),
		IP:         ClientIP(r),
	}
}

// Address returns the resolved IP or UnknownIP.
func (i Info) Address() string {
	if i.IP == "" {
		return UnknownIP
	}
	return i.IP
}

// String renders the bag as unstructured text.
func (i Info) String() string {
	parts := make([]string, 0, 5)
	if i.Model != "" {
		parts = append(parts, "Dispositivo: "+i.Model)
	}
	if i.OSVersion != "" {
		parts = append(parts, "SO: "+i.OSVersion)
	}
	if i.AppVersion != "" {
		parts = append(parts, "App: "+i.AppVersion)
	}
	if i.Model == "" && i.UserAgent != "" {
		parts = append(parts, "Agente: "+i.UserAgent)
	}
	parts = append(parts, "IP: "+i.Address())
	return strings.Join(parts, ", ")
}
