// Package api exposes the simulation over HTTP: read-only vault
// observation plus the manual actions (pause, expedition launch and
// recall, incident resolution) that run between ticks. Mutations go
// through the orchestrator's per-vault lock so they cannot race an
// in-flight tick.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hollowvale/vaultkeep/internal/engine"
	"github.com/hollowvale/vaultkeep/internal/entropy"
	"github.com/hollowvale/vaultkeep/internal/expedition"
	"github.com/hollowvale/vaultkeep/internal/fault"
	"github.com/hollowvale/vaultkeep/internal/incident"
	"github.com/hollowvale/vaultkeep/internal/vault"
)

// Server serves vault state and manual actions over HTTP.
type Server struct {
	Store       engine.Store
	Orch        *engine.Orchestrator
	Incidents   *incident.Engine
	Expeditions *expedition.Coordinator
	Port        int

	// Now and NewSource are injection points for tests.
	Now       func() time.Time
	NewSource func() entropy.Source

	started time.Time
}

// Handler builds the route table. Mutation endpoints are rate limited
// per client IP.
func (s *Server) Handler() http.Handler {
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.NewSource == nil {
		s.NewSource = func() entropy.Source {
			src, err := entropy.New()
			if err != nil {
				return entropy.NewSeeded(time.Now().UnixNano())
			}
			return src
		}
	}
	s.started = s.Now()

	actions := NewRateLimiter(60, time.Minute)
	limited := func(h http.HandlerFunc) http.HandlerFunc {
		return RateLimitMiddleware(actions, h)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/vaults", s.handleVaults)
	mux.HandleFunc("GET /api/v1/vaults/{id}", s.handleVaultDetail)

	mux.HandleFunc("POST /api/v1/vaults/{id}/pause", limited(s.handleSetPaused(true)))
	mux.HandleFunc("POST /api/v1/vaults/{id}/resume", limited(s.handleSetPaused(false)))
	mux.HandleFunc("POST /api/v1/vaults/{id}/expeditions", limited(s.handleLaunch))
	mux.HandleFunc("POST /api/v1/vaults/{id}/expeditions/{expID}/recall", limited(s.handleRecall))
	mux.HandleFunc("POST /api/v1/vaults/{id}/incidents/{incID}/resolve", limited(s.handleResolve))

	return mux
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	go func() {
		slog.Info("api listening", "addr", addr)
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("api server stopped", "error", err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps fault kinds onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case fault.IsNotFound(err):
		status = http.StatusNotFound
	case fault.IsConflict(err):
		status = http.StatusConflict
	case fault.IsInvalid(err):
		status = http.StatusUnprocessableEntity
	case fault.IsCapacity(err):
		status = http.StatusInsufficientStorage
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(key))
	if err != nil {
		return uuid.Nil, fault.Invalid("bad %s: %v", key, err)
	}
	return id, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Store.ListVaults(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vaults": len(ids),
		"uptime": s.Now().Sub(s.started).Round(time.Second).String(),
	})
}

type vaultSummary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Power      float64   `json:"power"`
	Food       float64   `json:"food"`
	Water      float64   `json:"water"`
	Caps       int64     `json:"caps"`
	Happiness  float64   `json:"happiness"`
	Population int       `json:"population"`
	Paused     bool      `json:"paused"`
}

func summarize(st *engine.State) vaultSummary {
	alive := 0
	for _, inh := range st.Inhabitants {
		if inh.Alive() {
			alive++
		}
	}
	v := st.Vault
	return vaultSummary{
		ID:         v.ID,
		Name:       v.Name,
		Power:      v.Power.Fraction(),
		Food:       v.Food.Fraction(),
		Water:      v.Water.Fraction(),
		Caps:       v.Caps,
		Happiness:  v.Happiness,
		Population: alive,
		Paused:     v.Paused,
	}
}

func (s *Server) handleVaults(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Store.ListVaults(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]vaultSummary, 0, len(ids))
	for _, id := range ids {
		st, err := s.Store.LoadState(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, summarize(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVaultDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.Store.LoadState(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vault":       st.Vault,
		"rooms":       st.Rooms,
		"inhabitants": st.Inhabitants,
		"incidents":   st.Incidents,
		"expeditions": st.Expeditions,
		"storage":     st.Storage,
	})
}

func (s *Server) handleSetPaused(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		err = s.Orch.WithVault(id, func() error {
			st, err := s.Store.LoadState(r.Context(), id)
			if err != nil {
				return err
			}
			st.Vault.Paused = paused
			return s.Store.SaveState(r.Context(), st)
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
	}
}

type launchRequest struct {
	InhabitantID    uuid.UUID `json:"inhabitant_id"`
	DurationSeconds float64   `json:"duration_seconds"`
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req launchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fault.Invalid("bad request body: %v", err))
		return
	}

	var exp *expedition.Expedition
	err = s.Orch.WithVault(id, func() error {
		st, err := s.Store.LoadState(r.Context(), id)
		if err != nil {
			return err
		}
		inh := findInhabitant(st, req.InhabitantID)
		if inh == nil {
			return fault.NotFound("inhabitant %s not found", req.InhabitantID)
		}
		duration := time.Duration(req.DurationSeconds * float64(time.Second))
		exp, err = s.Expeditions.Launch(st.Vault, inh, duration, s.Now())
		if err != nil {
			return err
		}
		st.Expeditions = append(st.Expeditions, exp)
		return s.Store.SaveState(r.Context(), st)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("expedition launched", "vault", id, "expedition", exp.ID, "inhabitant", exp.InhabitantID)
	writeJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	expID, err := pathUUID(r, "expID")
	if err != nil {
		writeError(w, err)
		return
	}

	var rewards expedition.Rewards
	err = s.Orch.WithVault(id, func() error {
		st, err := s.Store.LoadState(r.Context(), id)
		if err != nil {
			return err
		}
		var exp *expedition.Expedition
		for _, e := range st.Expeditions {
			if e.ID == expID {
				exp = e
				break
			}
		}
		if exp == nil {
			return fault.NotFound("expedition %s not found", expID)
		}
		inh := findInhabitant(st, exp.InhabitantID)
		if inh == nil {
			return fault.NotFound("inhabitant %s not found", exp.InhabitantID)
		}
		rewards, err = s.Expeditions.Recall(exp, inh, st.Vault, st.Storage, st.Rooms, s.Now())
		if err != nil {
			return err
		}
		return s.Store.SaveState(r.Context(), st)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"caps":          rewards.Caps,
		"experience":    rewards.Experience,
		"levels_gained": rewards.LevelsGained,
		"transferred":   len(rewards.Transferred),
		"overflow":      len(rewards.Overflow),
	})
}

type resolveRequest struct {
	Success bool `json:"success"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	incID, err := pathUUID(r, "incID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fault.Invalid("bad request body: %v", err))
		return
	}

	var loot incident.LootReport
	var overflow int
	err = s.Orch.WithVault(id, func() error {
		st, err := s.Store.LoadState(r.Context(), id)
		if err != nil {
			return err
		}
		var inc *incident.Incident
		for _, c := range st.Incidents {
			if c.ID == incID {
				inc = c
				break
			}
		}
		if inc == nil {
			return fault.NotFound("incident %s not found", incID)
		}
		loot, err = s.Incidents.Resolve(inc, req.Success, s.Now(), s.NewSource())
		if err != nil {
			return err
		}
		if req.Success {
			st.Vault.Caps += loot.Caps
			_, dropped := st.Storage.Transfer(loot.Items)
			overflow = len(dropped)
		}
		return s.Store.SaveState(r.Context(), st)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  req.Success,
		"caps":     loot.Caps,
		"items":    len(loot.Items),
		"overflow": overflow,
	})
}

func findInhabitant(st *engine.State, id uuid.UUID) *vault.Inhabitant {
	for _, inh := range st.Inhabitants {
		if inh.ID == id {
			return inh
		}
	}
	return nil
}
