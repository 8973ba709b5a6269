package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"mudhumeni-backend/internal/advisor"
	"mudhumeni-backend/internal/farming"
	"mudhumeni-backend/internal/predictor"
	"mudhumeni-backend/internal/store"
	"mudhumeni-backend/internal/types"
	"mudhumeni-backend/internal/ussd"
)

const maxFormBody = 1 << 20

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	message, err := readChatMessage(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sid := s.getOrCreateSessionID(r, w)

	past := s.history.Get(sid)
	turns := make([]advisor.Turn, 0, len(past))
	for _, m := range past {
		turns = append(turns, advisor.Turn{Role: m.Role, Content: m.Content})
	}

	ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
	defer cancel()
	reply := s.farming.Chat(ctx, farming.ChatRequest{UserKey: sid, Message: message, History: turns})

	if strings.TrimSpace(message) != "" {
		s.history.Append(sid, store.Message{Role: "user", Content: message})
		s.history.Append(sid, store.Message{Role: "assistant", Content: reply})
	}

	resp := types.ChatResponse{SessionID: sid, Reply: reply}
	for _, m := range s.history.Get(sid) {
		resp.History = append(resp.History, types.ChatMessage{Role: m.Role, Content: m.Content})
	}
	w.Header().Set("X-Session-Id", sid)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	if sid, err := GetSessionCookie(r); err == nil && sid != "" {
		s.history.Clear(sid)
	}
	ClearSessionCookie(w, s.cfg.CookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

// readChatMessage accepts the JSON API body or the web page's form post.
func readChatMessage(r *http.Request) (string, error) {
	if isJSON(r) {
		var req types.ChatRequest
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxFormBody)).Decode(&req); err != nil {
			return "", err
		}
		return req.Message, nil
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	if v := r.PostForm.Get("user_input"); v != "" {
		return v, nil
	}
	return r.PostForm.Get("message"), nil
}

func (s *Server) getOrCreateSessionID(r *http.Request, w http.ResponseWriter) string {
	if sid, err := GetSessionCookie(r); err == nil && sid != "" {
		return sid
	}
	sid := uuid.NewString()
	s.log.Debug("creating web chat session", "session_id", sid, "path", r.URL.Path)
	SetSessionCookie(w, sid, s.cfg.CookieSecure)
	return sid
}

// soilKeys maps request keys to collected field names, in feature order.
var soilKeys = []struct{ key, field string }{
	{"N", "nitrogen"},
	{"P", "phosphorus"},
	{"K", "potassium"},
	{"temperature", "temperature"},
	{"humidity", "humidity"},
	{"ph", "ph"},
	{"rainfall", "rainfall"},
}

func (s *Server) handlePredictCrop(w http.ResponseWriter, r *http.Request) {
	soil, err := readSoil(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, types.PredictResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), predictTimeout)
	defer cancel()
	rec, err := s.farming.Recommend(ctx, soil)
	if err != nil {
		s.log.Error("crop prediction failed", "request_id", RequestIDFrom(r.Context()), "error", err)
		writeJSON(w, http.StatusBadGateway, types.PredictResponse{Error: "crop prediction is unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, types.PredictResponse{
		Success:        true,
		Prediction:     rec.Crop,
		Alternatives:   rec.Alternatives,
		Season:         rec.Season,
		SeasonalAdvice: rec.SeasonalAdvice,
		Source:         rec.Source,
	})
}

// readSoil reads the seven measurements from JSON or form data and checks
// them against the same ranges the USSD collector uses.
func readSoil(r *http.Request) (predictor.Soil, error) {
	values := make(map[string]float64, len(soilKeys))
	if isJSON(r) {
		var req types.SoilRequest
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxFormBody)).Decode(&req); err != nil {
			return predictor.Soil{}, errors.New("invalid JSON body")
		}
		given := map[string]*float64{
			"N": req.N, "P": req.P, "K": req.K,
			"temperature": req.Temperature, "humidity": req.Humidity,
			"ph": req.PH, "rainfall": req.Rainfall,
		}
		for _, k := range soilKeys {
			if given[k.key] == nil {
				return predictor.Soil{}, fmt.Errorf("%s is required", k.key)
			}
			values[k.field] = *given[k.key]
		}
	} else {
		r.Body = http.MaxBytesReader(nil, r.Body, maxFormBody)
		if err := r.ParseForm(); err != nil {
			return predictor.Soil{}, errors.New("invalid form body")
		}
		for _, k := range soilKeys {
			raw := strings.TrimSpace(r.PostForm.Get(k.key))
			if raw == "" {
				return predictor.Soil{}, fmt.Errorf("%s is required", k.key)
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return predictor.Soil{}, fmt.Errorf("%s must be a number", k.key)
			}
			values[k.field] = v
		}
	}

	fields := make([]store.FieldValue, 0, len(soilKeys))
	for _, k := range soilKeys {
		if err := ussd.CheckField(k.field, values[k.field]); err != nil {
			return predictor.Soil{}, err
		}
		fields = append(fields, store.FieldValue{Name: k.field, Value: values[k.field]})
	}
	return farming.SoilFromFields(fields)
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
