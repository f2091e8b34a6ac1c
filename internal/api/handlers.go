package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/insight-scraper/internal/storage"
)

const defaultListLimit = 100

// handleHealth reports liveness of the server and its backing stores
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "healthy"
	checks := map[string]string{}

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			status = "degraded"
			checks["postgres"] = err.Error()
		} else {
			checks["postgres"] = "ok"
		}
	}
	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			status = "degraded"
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   "insight-scraper",
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}

// handleListAccounts returns the account pool with per-account state
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultListLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}

	accounts, err := s.accounts.List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list accounts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// handleGetAccount returns one account by id
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	account, err := s.accounts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "account not found")
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to get account")
		return
	}

	respondJSON(w, http.StatusOK, account)
}

// handleListJobs returns recent job ledger rows, newest first
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultListLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}

	jobs, err := s.jobs.ListRecent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list jobs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// handleGetJob returns one job ledger row by id
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := s.jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "job not found")
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to get job")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// handleListScrapers returns scraper ownership rows plus the live
// active count used for backpressure decisions
func (s *Server) handleListScrapers(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultListLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}

	scrapers, err := s.scrapers.List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list scrapers")
		return
	}
	active, err := s.scrapers.ActiveCount(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to count active scrapers")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"scrapers":    scrapers,
		"count":       len(scrapers),
		"activeCount": active,
	})
}

// limitParam parses the optional ?limit query parameter
func limitParam(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 1000 {
		return 0, errors.New("limit must be an integer between 1 and 1000")
	}
	return limit, nil
}
