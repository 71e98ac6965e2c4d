package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Ledger().StatsAll(r.Context())
	if err != nil {
		s.logger.Error("Failed to list accounts", zap.Error(err))
		http.Error(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, stats)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	instrument := r.PathValue("instrument")
	stats, err := s.engine.Ledger().Stats(r.Context(), instrument)
	if err != nil {
		s.logger.Error("Failed to load account", zap.String("instrument", instrument), zap.Error(err))
		http.Error(w, "Failed to load account", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, stats)
}

func (s *Server) handleResetAccount(w http.ResponseWriter, r *http.Request) {
	instrument := r.PathValue("instrument")
	if err := s.engine.Ledger().ResetAccount(r.Context(), instrument); err != nil {
		s.logger.Error("Failed to reset account", zap.String("instrument", instrument), zap.Error(err))
		http.Error(w, "Failed to reset account", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]string{"status": "reset", "instrument": instrument})
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	instrument := r.PathValue("instrument")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	trades, err := s.tradeRepo.ListTrades(r.Context(), instrument, limit)
	if err != nil {
		s.logger.Error("Failed to list trades", zap.String("instrument", instrument), zap.Error(err))
		http.Error(w, "Failed to list trades", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, trades)
}

// handleSignal evaluates the instrument without touching the ledger, so
// polling this endpoint never places or fills anything.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	instrument := r.PathValue("instrument")
	sig, err := s.engine.PreviewSignal(r.Context(), instrument)
	if err != nil {
		s.logger.Error("Failed to generate signal", zap.String("instrument", instrument), zap.Error(err))
		http.Error(w, "Failed to generate signal", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, sig)
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	instrument := r.PathValue("instrument")
	s.writeJSON(w, s.engine.Signals().Levels(instrument))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}
