package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/littlwoop/saiko-app-sub000/internal/challenge"
	"github.com/littlwoop/saiko-app-sub000/internal/export"
	"github.com/littlwoop/saiko-app-sub000/internal/shared/apierrors"
	sharedauth "github.com/littlwoop/saiko-app-sub000/internal/shared/auth"
	"github.com/littlwoop/saiko-app-sub000/internal/shared/logging"
)

const (
	serviceTimeout = 8 * time.Second
	exportTimeout  = 30 * time.Second
	maxBodyBytes   = 256 * 1024
	entryBodyBytes = 16 * 1024
)

// RegisterRoutes registers all challenge routes. exporter may be nil when no bucket is configured.
func RegisterRoutes(r chi.Router, service *challenge.Service, exporter export.Exporter, logger *slog.Logger) {
	r.Route("/v1/challenges", func(r chi.Router) {
		r.Get("/", listChallenges(service, logger))
		r.Post("/", createChallenge(service, logger))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getChallenge(service, logger))
			r.Put("/objectives", replaceObjectives(service, logger))
			r.Post("/join", joinChallenge(service, logger))
			r.Delete("/join", leaveChallenge(service, logger))
			r.Post("/entries", logEntry(service, logger))
			r.Get("/entries", listEntries(service, logger))
			r.Delete("/objectives/{objectiveId}/entries", resetObjective(service, logger))
			r.Get("/progress", getProgress(service, logger))
			r.Get("/leaderboard", getLeaderboard(service, logger))
			r.Post("/leaderboard/export", exportLeaderboard(service, exporter, logger))
			r.Post("/bingo/check", checkBingo(service, logger))
		})
	})
}

func listChallenges(service *challenge.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		items, err := service.ListChallenges(ctx)
		if err != nil {
			respondServiceError(w, r, logger, "failed to list challenges", err, "")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"challenges": items})
	}
}

func createChallenge(service *challenge.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := headerUserID(r)
		if userID == "" {
			writeError(w, r, http.StatusUnauthorized, "missing user ID")
			return
		}

		var input challenge.CreateChallengeInput
		if err := decodeJSON(w, r, maxBodyBytes, &input); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		created, err := service.CreateChallenge(ctx, userID, input)
		if err != nil {
			respondServiceError(w, r, logger, "failed to create challenge", err, userID)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func getChallenge(service *challenge.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		c, err := service.GetChallenge(ctx, chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, r, logger, "failed to load challenge", err, headerUserID(r))
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func replaceObjectives(service *challenge.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := headerUserID(r)
		if userID == "" {
			writeError(w, r, http.StatusUnauthorized, "missing user ID")
			return
		}

		var body struct {
			Objectives []challenge.ObjectiveInput `json:"objectives"`
		}
		if err := decodeJSON(w, r, maxBodyBytes, &body); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		updated, err := service.ReplaceObjectives(ctx, userID, chi.URLParam(r, "id"), body.Objectives)
		if err != nil {
			respondServiceError(w, r, logger, "failed to replace objectives", err, userID)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func joinChallenge(service *challenge.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := headerUserID(r)
		if userID == "" {
			writeError(w, r, http.StatusUnauthorized, "missing user ID")
			return
		}

		var input challenge.JoinInput
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, entryBodyBytes, &input); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
		}
		input.UserID = userID
		input.ChallengeID = chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		m, err := service.Join(ctx, input)
		if err != nil {
			respondServiceError(w, r, logger, "failed to join challenge", err, userID)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func leaveChallenge(service *challenge.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := headerUserID(r)
		if userID == "" {
			writeError(w, r, http.StatusUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		if err := service.Leave(ctx, userID, chi.URLParam(r, "id")); err != nil {
			respondServiceError(w, r, logger, "failed to leave challenge", err, userID)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func logEntry(service *challenge.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := headerUserID(r)
		if userID == "" {
			writeError(w, r, http.StatusUnauthorized, "missing user ID")
			return
		}

		var input challenge.LogEntryInput
		if err := decodeJSON(w, r, entryBodyBytes, &input); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		input.UserID = userID
		input.ChallengeID = chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		res, err := service.LogEntry(ctx, input)
		if err != nil {
			respondServiceError(w, r, logger, "failed to log entry", err, userID)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func listEntries(service *challenge.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := headerUserID(r)
		if userID == "" {
			writeError(w, r, http.StatusUnauthorized, "missing user ID")
			return
		}

		q := r.URL.Query()
		input := challenge.ListEntriesInput{
			UserID:      userID,
			ChallengeID: chi.URLParam(r, "id"),
			ObjectiveID: strings.TrimSpace(q.Get("objectiveId")),
			Start:       strings.TrimSpace(q.Get("start")),
			End:         strings.TrimSpace(q.Get("end")),
			Week:        strings.TrimSpace(q.Get("week")),
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		items, err := service.ListEntries(ctx, input)
		if err != nil {
			respondServiceError(w, r, logger, "failed to list entries", err, userID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": items})
	}
}

func resetObjective(service *challenge.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := headerUserID(r)
		if userID == "" {
			writeError(w, r, http.StatusUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		deleted, err := service.ResetObjective(ctx, userID, chi.URLParam(r, "id"), chi.URLParam(r, "objectiveId"))
		if err != nil {
			respondServiceError(w, r, logger, "failed to reset objective", err, userID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
	}
}

func getProgress(service *challenge.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := headerUserID(r)
		if userID == "" {
			writeError(w, r, http.StatusUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		view, err := service.Progress(ctx, userID, chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, r, logger, "failed to load progress", err, userID)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func getLeaderboard(service *challenge.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		rows, err := service.Leaderboard(ctx, chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, r, logger, "failed to rank leaderboard", err, headerUserID(r))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"standings": rows})
	}
}

func exportLeaderboard(service *challenge.Service, exporter export.Exporter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if exporter == nil {
			writeError(w, r, http.StatusServiceUnavailable, "leaderboard export is not configured")
			return
		}
		userID := headerUserID(r)
		challengeID := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
		defer cancel()

		rows, err := service.Leaderboard(ctx, challengeID)
		if err != nil {
			respondServiceError(w, r, logger, "failed to rank leaderboard", err, userID)
			return
		}
		res, err := exporter.Export(ctx, export.Snapshot{ChallengeID: challengeID, Standings: rows})
		if err != nil {
			logRequestError(r.Context(), logger, "failed to export leaderboard", err, userID)
			writeError(w, r, http.StatusBadGateway, "failed to export leaderboard")
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func checkBingo(service *challenge.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := headerUserID(r)
		if userID == "" {
			writeError(w, r, http.StatusUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		line, err := service.CheckBingo(ctx, userID, chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, r, logger, "failed to check bingo", err, userID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"line": line})
	}
}

func respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, message string, err error, userID string) {
	switch {
	case errors.Is(err, challenge.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "challenge not found")
	case errors.Is(err, challenge.ErrNotParticipant):
		writeError(w, r, http.StatusForbidden, "join the challenge first")
	case errors.Is(err, challenge.ErrForbidden):
		writeError(w, r, http.StatusForbidden, serviceMessage(err))
	case errors.Is(err, challenge.ErrConflict):
		writeError(w, r, http.StatusConflict, "already exists")
	case errors.Is(err, challenge.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, serviceMessage(err))
	default:
		logRequestError(r.Context(), logger, message, err, userID)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// serviceMessage strips the sentinel prefix from "sentinel: detail".
func serviceMessage(err error) string {
	msg := strings.TrimSpace(err.Error())
	if i := strings.Index(msg, ":"); i >= 0 {
		msg = strings.TrimSpace(msg[i+1:])
	}
	return msg
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body is required")
		case errors.As(err, &maxErr):
			return errors.New("request body too large")
		default:
			return errors.New("invalid JSON body")
		}
	}
	return nil
}

func headerUserID(r *http.Request) string {
	return sharedauth.UserID(r)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	apierrors.Write(w, status, message, middleware.GetReqID(r.Context()))
}

func logRequestError(ctx context.Context, logger *slog.Logger, message string, err error, userID string) {
	if logger == nil || err == nil {
		return
	}
	logging.WithRequestID(ctx, logger, middleware.GetReqID(ctx)).
		Error(message, slog.String("userId", userID), slog.Any("error", err))
}
