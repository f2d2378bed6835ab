package gate

import (
	"encoding/json"
	"net/http"

	"github.com/ggoodman/mcp-gate/auth"
)

type detailBody struct {
	Detail string `json:"detail"`
}

func writeUnauthorized(w http.ResponseWriter, reason auth.Reason, msg string) {
	body, err := json.Marshal(detailBody{Detail: msg})
	if err != nil {
		body = []byte(`{"detail":"Unauthorized"}`)
	}
	h := w.Header()
	h.Set("Content-Type", jsonMediaType.String())
	h.Set("WWW-Authenticate", challenge(reason))
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write(body)
}

func challenge(reason auth.Reason) string {
	switch reason {
	case auth.ReasonMissingOrMalformedHeader:
		return "Bearer"
	case auth.ReasonInsufficientScope:
		return `Bearer error="insufficient_scope"`
	case auth.ReasonInternalError:
		return `Bearer error="invalid_request"`
	default:
		return `Bearer error="invalid_token"`
	}
}
