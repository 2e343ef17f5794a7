package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/bet-api/dto"
	"github.com/radieske/sports-bet-settlement/internal/domain"
	"github.com/radieske/sports-bet-settlement/internal/store"
)

// statusFor mapeia o tipo de erro para o status HTTP.
func statusFor(err error) (int, string) {
	if errors.Is(err, store.ErrNotReady) {
		return http.StatusServiceUnavailable, "not_ready"
	}
	kind := domain.Kind(err)
	switch kind {
	case "invalid_input":
		return http.StatusBadRequest, kind
	case "unauthenticated":
		return http.StatusUnauthorized, kind
	case "not_found":
		return http.StatusNotFound, kind
	case "conflict":
		return http.StatusConflict, kind
	case "upstream_unavailable":
		return http.StatusBadGateway, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

// writeError responde {"error","kind"}. Erros 5xx não expõem detalhes internos.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusServiceUnavailable:
		msg = "store not ready"
	case status >= 500:
		s.Log.Error("request failed", zap.String("kind", kind), zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, dto.ErrorResponse{Error: msg, Kind: kind})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
