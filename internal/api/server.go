package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"empires/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const playerContextKey contextKey = "player"

// Server maps the empire and flow services onto a JSON API. Identity is
// injected upstream: the gateway terminates auth and forwards the
// player id in X-Player-ID.
type Server struct {
	log     *slog.Logger
	empires *game.EmpireService
	flows   *game.FlowService
	mux     *chi.Mux
}

func New(logger *slog.Logger, empires *game.EmpireService, flows *game.FlowService) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:     logger,
		empires: empires,
		flows:   flows,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Get("/levels", s.handleLevels)

		r.Group(func(r chi.Router) {
			r.Use(s.playerMiddleware)

			r.Post("/empire", s.handleCreateEmpire)
			r.Get("/empire", s.handleGetEmpire)
			r.Post("/empire/companies", s.handleAddCompany)
			r.Patch("/empire/companies/{id}", s.handleUpdateCompany)
			r.Delete("/empire/companies/{id}", s.handleRemoveCompany)
			r.Post("/empire/companies/{id}/headquarters", s.handleSetHeadquarters)
			r.Post("/empire/xp", s.handleAddXP)

			r.Post("/flows", s.handleCreateFlow)
			r.Get("/flows", s.handleListFlows)
			r.Get("/flows/{id}", s.handleGetFlow)
			r.Get("/flows/{id}/savings", s.handleFlowSavings)
			r.Post("/flows/{id}/pause", s.handleFlowAction((*game.FlowService).Pause))
			r.Post("/flows/{id}/resume", s.handleFlowAction((*game.FlowService).Resume))
			r.Post("/flows/{id}/cancel", s.handleFlowAction((*game.FlowService).Cancel))
		})
	})
}

func (s *Server) playerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID := strings.TrimSpace(r.Header.Get("X-Player-ID"))
		if playerID == "" {
			writeError(w, http.StatusUnauthorized, "missing X-Player-ID header")
			return
		}
		ctx := context.WithValue(r.Context(), playerContextKey, playerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func playerFromContext(ctx context.Context) (string, error) {
	playerID, ok := ctx.Value(playerContextKey).(string)
	if !ok || playerID == "" {
		return "", errors.New("missing player context")
	}
	return playerID, nil
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"synergies": s.empires.Catalog()})
}

func (s *Server) handleLevels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"levels": game.Levels()})
}

func (s *Server) handleCreateEmpire(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e, err := s.empires.Create(r.Context(), playerID, in.Name)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetEmpire(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	e, err := s.empires.Get(r.Context(), playerID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleAddCompany(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		CompanyID     string `json:"company_id"`
		Name          string `json:"name"`
		Industry      string `json:"industry"`
		Level         int32  `json:"level"`
		RevenueMicros int64  `json:"revenue_micros"`
		ValueMicros   int64  `json:"value_micros"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e, err := s.empires.AddCompany(r.Context(), game.AddCompanyInput{
		PlayerID:      playerID,
		CompanyID:     in.CompanyID,
		Name:          in.Name,
		Industry:      in.Industry,
		Level:         in.Level,
		RevenueMicros: in.RevenueMicros,
		ValueMicros:   in.ValueMicros,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateCompany(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Name          *string `json:"name"`
		Level         *int32  `json:"level"`
		RevenueMicros *int64  `json:"revenue_micros"`
		ValueMicros   *int64  `json:"value_micros"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e, err := s.empires.UpdateCompanyStats(r.Context(), game.UpdateCompanyInput{
		PlayerID:      playerID,
		CompanyID:     chi.URLParam(r, "id"),
		Name:          in.Name,
		Level:         in.Level,
		RevenueMicros: in.RevenueMicros,
		ValueMicros:   in.ValueMicros,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleRemoveCompany(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	e, err := s.empires.RemoveCompany(r.Context(), playerID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleSetHeadquarters(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	e, err := s.empires.SetHeadquarters(r.Context(), playerID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleAddXP(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.empires.AddXP(r.Context(), playerID, in.Amount)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		SourceCompanyID    string `json:"source_company_id"`
		DestCompanyID      string `json:"dest_company_id"`
		Resource           string `json:"resource"`
		QuantityUnits      int64  `json:"quantity_units"`
		PricePerUnitMicros int64  `json:"price_per_unit_micros"`
		Frequency          string `json:"frequency"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := s.flows.Create(r.Context(), game.CreateFlowInput{
		PlayerID:           playerID,
		SourceCompanyID:    in.SourceCompanyID,
		DestCompanyID:      in.DestCompanyID,
		Resource:           in.Resource,
		QuantityUnits:      in.QuantityUnits,
		PricePerUnitMicros: in.PricePerUnitMicros,
		Frequency:          in.Frequency,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	flows, err := s.flows.List(r.Context(), playerID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flows": flows})
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	f, err := s.flows.Get(r.Context(), playerID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleFlowSavings(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	market, err := strconv.ParseInt(r.URL.Query().Get("market_price_micros"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "market_price_micros query parameter is required")
		return
	}
	out, err := s.flows.Savings(r.Context(), playerID, chi.URLParam(r, "id"), market)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFlowAction(action func(svc *game.FlowService, ctx context.Context, playerID, flowID string) (*game.Flow, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, err := playerFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		f, err := action(s.flows, r.Context(), playerID, chi.URLParam(r, "id"))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrEmpireNotFound),
		errors.Is(err, game.ErrCompanyNotFound),
		errors.Is(err, game.ErrFlowNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrDuplicateCompany),
		errors.Is(err, game.ErrEmpireExists),
		errors.Is(err, game.ErrInvalidTransition),
		errors.Is(err, game.ErrVersionConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
