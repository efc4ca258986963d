//go:build !ORT

package provider

import "github.com/knights-analytics/hugot"

// newHugotSession runs inference on the pure-Go backend. Slower than the
// ORT build but needs no shared libraries, which keeps `go install` working.
func newHugotSession() (*hugot.Session, error) {
	return hugot.NewGoSession()
}
