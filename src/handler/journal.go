package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/model"
)

// JournalReader is satisfied by *repository.JournalRepository.
type JournalReader interface {
	ListPositions(ctx context.Context, status string, limit int) ([]model.Position, error)
	ListBlocks(ctx context.Context, since time.Time, limit int) ([]model.TradeBlock, error)
}

func parseLimit(r *http.Request) (int, bool) {
	param := r.URL.Query().Get("limit")
	if param == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(param)
	if err != nil || limit <= 0 || limit > 1000 {
		return 0, false
	}
	return limit, true
}

// JournalPositionsHandler lists journaled positions. Supports status
// (open, closed) and limit.
func JournalPositionsHandler(repo JournalReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		if status != "" && status != model.PositionStatusOpen && status != model.PositionStatusClosed {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		limit, ok := parseLimit(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}

		positions, err := repo.ListPositions(r.Context(), status, limit)
		if err != nil {
			logger.WithError(err).Error("failed to list journaled positions")
			writeError(w, http.StatusInternalServerError, "Unable to read journal")
			return
		}
		writeJSON(w, http.StatusOK, positions)
	}
}

// JournalBlocksHandler lists blocked trades since the RFC3339 "since"
// parameter, the last 24 hours by default.
func JournalBlocksHandler(repo JournalReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since := time.Now().Add(-24 * time.Hour)
		if param := r.URL.Query().Get("since"); param != "" {
			parsed, err := time.Parse(time.RFC3339, param)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid since")
				return
			}
			since = parsed
		}
		limit, ok := parseLimit(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}

		blocks, err := repo.ListBlocks(r.Context(), since, limit)
		if err != nil {
			logger.WithError(err).Error("failed to list blocked trades")
			writeError(w, http.StatusInternalServerError, "Unable to read journal")
			return
		}
		writeJSON(w, http.StatusOK, blocks)
	}
}
