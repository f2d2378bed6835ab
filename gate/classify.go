package gate

import (
	"net/http"
	"strings"

	"github.com/elnormous/contenttype"
)

// Surface says whether a request is subject to token checks.
type Surface int

const (
	// Policed requests must carry a valid bearer token.
	Policed Surface = iota
	// Passthrough requests reach the wrapped handler untouched.
	Passthrough
)

func (s Surface) String() string {
	switch s {
	case Policed:
		return "policed"
	case Passthrough:
		return "passthrough"
	default:
		return "unknown"
	}
}

// Classifier decides the Surface of a request before any token is read.
type Classifier func(r *http.Request) Surface

var (
	jsonMediaType        = contenttype.NewMediaType("application/json")
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
	// JSON is listed first so wildcard and absent Accept headers stay policed.
	negotiable = []contenttype.MediaType{jsonMediaType, eventStreamMediaType}
)

// Classify is the default Classifier. Protocol upgrades (such as WebSocket
// handshakes) and GET requests that negotiate text/event-stream are
// Passthrough; everything else is Policed.
func Classify(r *http.Request) Surface {
	if isUpgrade(r) {
		return Passthrough
	}
	if r.Method == http.MethodGet && r.Header.Get("Accept") != "" {
		mt, _, err := contenttype.GetAcceptableMediaType(r, negotiable)
		if err == nil && mt.Matches(eventStreamMediaType) {
			return Passthrough
		}
	}
	return Policed
}

func isUpgrade(r *http.Request) bool {
	if r.Header.Get("Upgrade") == "" {
		return false
	}
	for _, v := range r.Header.Values("Connection") {
		for _, tok := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), "upgrade") {
				return true
			}
		}
	}
	return false
}
