package server

import (
	"net/http"

	"mudhumeni-backend/internal/catalog"
	"mudhumeni-backend/internal/gateway"
	"mudhumeni-backend/internal/ussd"
)

// handleUSSD serves one aggregator. The caller always gets a CON or END
// screen, even for a payload that could not be decoded.
func (s *Server) handleUSSD(a gateway.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := a.Decode(r)
		var resp ussd.Response
		if err != nil {
			s.log.Warn("invalid ussd payload", "gateway", a.Name(), "request_id", RequestIDFrom(r.Context()), "error", err)
			resp = ussd.End(s.cat.Translate(catalog.KeyUnavailable, s.cat.DefaultLanguage(), nil))
		} else {
			resp = s.engine.Step(r.Context(), req)
		}
		if err := a.Encode(w, resp); err != nil {
			s.log.Error("failed to write ussd response", "gateway", a.Name(), "error", err)
		}
	}
}
