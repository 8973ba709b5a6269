// Package gateway translates the payloads of USSD aggregators to and from
// the engine's Request and Response.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"mudhumeni-backend/internal/ussd"
)

const maxBody = 64 << 10

var ErrBadRequest = errors.New("gateway: malformed request")

// Adapter is one aggregator's wire format.
type Adapter interface {
	Name() string
	Decode(r *http.Request) (ussd.Request, error)
	Encode(w http.ResponseWriter, resp ussd.Response) error
}

// AfricasTalking is the native form-encoded protocol. Responses are plain
// text bodies starting with "CON " or "END ".
type AfricasTalking struct{}

func (AfricasTalking) Name() string { return "africastalking" }

func (AfricasTalking) Decode(r *http.Request) (ussd.Request, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBody)
	if err := r.ParseForm(); err != nil {
		return ussd.Request{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return ussd.Request{
		SessionID:   r.FormValue("sessionId"),
		ServiceCode: r.FormValue("serviceCode"),
		Phone:       r.FormValue("phoneNumber"),
		Text:        r.FormValue("text"),
	}, nil
}

func (AfricasTalking) Encode(w http.ResponseWriter, resp ussd.Response) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err := io.WriteString(w, resp.String())
	return err
}

type comvivaRequest struct {
	SessionID string `json:"session_id"`
	USSDCode  string `json:"ussd_code"`
	MSISDN    string `json:"msisdn"`
	UserInput string `json:"user_input"`
}

type comvivaResponse struct {
	Message      string `json:"message"`
	SessionState string `json:"session_state"`
}

// Comviva speaks JSON with an explicit CONTINUE/END session state.
type Comviva struct{}

func (Comviva) Name() string { return "comviva" }

func (Comviva) Decode(r *http.Request) (ussd.Request, error) {
	var in comvivaRequest
	if err := decodeJSON(r, &in); err != nil {
		return ussd.Request{}, err
	}
	return ussd.Request{SessionID: in.SessionID, ServiceCode: in.USSDCode, Phone: in.MSISDN, Text: in.UserInput}, nil
}

func (Comviva) Encode(w http.ResponseWriter, resp ussd.Response) error {
	state := "CONTINUE"
	if resp.End {
		state = "END"
	}
	return writeJSON(w, comvivaResponse{Message: resp.Text, SessionState: state})
}

type infobipRequest struct {
	SessionID   string `json:"session_id"`
	ServiceCode string `json:"service_code"`
	MSISDN      string `json:"msisdn"`
	Input       string `json:"input"`
}

type infobipResponse struct {
	Response string `json:"response"`
	Action   string `json:"action"`
}

// Infobip speaks JSON with a lowercase continue/end action.
type Infobip struct{}

func (Infobip) Name() string { return "infobip" }

func (Infobip) Decode(r *http.Request) (ussd.Request, error) {
	var in infobipRequest
	if err := decodeJSON(r, &in); err != nil {
		return ussd.Request{}, err
	}
	return ussd.Request{SessionID: in.SessionID, ServiceCode: in.ServiceCode, Phone: in.MSISDN, Text: in.Input}, nil
}

func (Infobip) Encode(w http.ResponseWriter, resp ussd.Response) error {
	action := "continue"
	if resp.End {
		action = "end"
	}
	return writeJSON(w, infobipResponse{Response: resp.Text, Action: action})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}
