package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"mudhumeni-backend/internal/catalog"
	"mudhumeni-backend/internal/config"
	"mudhumeni-backend/internal/db"
	"mudhumeni-backend/internal/farming"
	"mudhumeni-backend/internal/gateway"
	"mudhumeni-backend/internal/logger"
	"mudhumeni-backend/internal/store"
	"mudhumeni-backend/internal/types"
	"mudhumeni-backend/internal/ussd"
)

const (
	chatTimeout    = 30 * time.Second
	predictTimeout = 15 * time.Second
)

// Deps are the collaborators the HTTP layer serves. Database is optional
// and only reported by the health check.
type Deps struct {
	Catalog  *catalog.Catalog
	Engine   *ussd.Engine
	Farming  *farming.Service
	History  *store.HistoryStore
	Database *db.DB
	Logger   *logger.Logger
}

type Server struct {
	router   *chi.Mux
	cfg      config.Config
	cat      *catalog.Catalog
	engine   *ussd.Engine
	farming  *farming.Service
	history  *store.HistoryStore
	database *db.DB
	log      *logger.Logger
}

func NewServer(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Catalog == nil || deps.Engine == nil || deps.Farming == nil {
		return nil, errors.New("server: catalog, engine and farming service are required")
	}
	if deps.History == nil {
		deps.History = store.NewHistoryStore(cfg.ChatHistory)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(accessLog(deps.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Session-Id", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		router:   r,
		cfg:      cfg,
		cat:      deps.Catalog,
		engine:   deps.Engine,
		farming:  deps.Farming,
		history:  deps.History,
		database: deps.Database,
		log:      deps.Logger,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	// USSD aggregators
	s.router.Post("/ussd", s.handleUSSD(gateway.AfricasTalking{}))
	s.router.Post("/ussd/comviva", s.handleUSSD(gateway.Comviva{}))
	s.router.Post("/ussd/infobip", s.handleUSSD(gateway.Infobip{}))
	// Web chatbot and crop recommendation
	s.router.Post("/api/chat", s.handleChat)
	s.router.Delete("/api/chat", s.handleChatReset)
	s.router.Post("/api/predict_crop", s.handlePredictCrop)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{Status: "ok", Sessions: s.cfg.SessionDriver}
	status := http.StatusOK
	if s.database != nil {
		resp.Database = "ok"
		if err := s.database.HealthCheck(r.Context()); err != nil {
			s.log.Error("database health check failed", "error", err)
			resp.Status, resp.Database = "degraded", "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorResponse{Error: msg})
}
