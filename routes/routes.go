package routes

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	hmacext "github.com/alexellis/hmac/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/cors"

	"github.com/marcus-crane/crowdqueue/config"
	"github.com/marcus-crane/crowdqueue/db"
	"github.com/marcus-crane/crowdqueue/events"
	"github.com/marcus-crane/crowdqueue/metadata"
	"github.com/marcus-crane/crowdqueue/models"
	"github.com/marcus-crane/crowdqueue/playback"
)

const (
	maxBodyBytes        = 64 << 10
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

type submitPayload struct {
	URL string `json:"url"`
}

type streamPayload struct {
	StreamID string `json:"streamId"`
}

func renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func renderJSONMessage(w http.ResponseWriter, status int, message string) {
	renderJSON(w, status, models.ResponseMessage{Message: message})
}

func decodeStreamID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload streamPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		renderJSONMessage(w, http.StatusBadRequest, "Request body must be JSON containing a streamId")
		return "", false
	}
	if payload.StreamID == "" {
		renderJSONMessage(w, http.StatusBadRequest, "A streamId did not appear to be provided")
		return "", false
	}
	return payload.StreamID, true
}

func Register(mux *http.ServeMux, ps playback.System, cfg config.Config) http.Handler {

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			renderJSONMessage(w, http.StatusNotFound, "There is nothing here")
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "Welcome to Crowdqueue. Submit a link to <code>/api/streams</code> and vote for what plays next.\n")
	})

	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		renderJSONMessage(w, http.StatusOK, "This is the base of the Crowdqueue API")
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		renderJSONMessage(w, http.StatusOK, "ok")
	})

	mux.HandleFunc("/api/streams", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listStreams(w, r, ps)
		case http.MethodPost:
			submitStream(w, r, ps)
		case http.MethodPatch:
			voteStream(w, r, ps)
		case http.MethodDelete:
			removeStream(w, r, ps, cfg.Crowdqueue.ModerationToken)
		default:
			renderJSONMessage(w, http.StatusMethodNotAllowed, "That method is invalid for this endpoint")
		}
	})

	mux.HandleFunc("/api/playing", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			renderJSONMessage(w, http.StatusMethodNotAllowed, "That method is invalid for this endpoint")
			return
		}
		renderJSON(w, http.StatusOK, ps.GetNowPlaying(r.Context()))
	})

	mux.HandleFunc("/api/playing/finished", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			renderJSONMessage(w, http.StatusMethodNotAllowed, "That method is invalid for this endpoint")
			return
		}
		finishStream(w, r, ps, cfg.Crowdqueue.PlayerSecret)
	})

	mux.HandleFunc("/api/history", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			renderJSONMessage(w, http.StatusMethodNotAllowed, "That method is invalid for this endpoint")
			return
		}
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > maxHistoryLimit {
				renderJSONMessage(w, http.StatusBadRequest, fmt.Sprintf("limit must be a number between 1 and %d", maxHistoryLimit))
				return
			}
			limit = parsed
		}
		results, err := ps.GetHistory(r.Context(), limit)
		if err != nil {
			slog.Error("Failed to load history", slog.String("error", err.Error()))
			renderJSONMessage(w, http.StatusInternalServerError, "Something went wrong loading history")
			return
		}
		response := []models.ResponseHistoryItem{}
		for _, entry := range results {
			response = append(response, entry.Response())
		}
		renderJSON(w, http.StatusOK, response)
	})

	mux.HandleFunc("/events", events.Server.ServeHTTP)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.GetAllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", "X-Player-Signature"},
		ExposedHeaders: []string{"ETag"},
	})

	handler := c.Handler(mux)

	return handler
}

func listStreams(w http.ResponseWriter, r *http.Request, ps playback.System) {
	queue, err := ps.ListQueue(r.Context())
	if err != nil {
		slog.Error("Failed to list queue", slog.String("error", err.Error()))
		renderJSONMessage(w, http.StatusInternalServerError, "Something went wrong loading the queue")
		return
	}
	if queue == nil {
		queue = []models.Item{}
	}
	body, err := json.Marshal(queue)
	if err != nil {
		renderJSONMessage(w, http.StatusInternalServerError, "Something went wrong loading the queue")
		return
	}

	// Pollers send the last ETag back and skip the body when nothing moved
	etag := fmt.Sprintf("\"%x\"", xxhash.Sum64(body))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func submitStream(w http.ResponseWriter, r *http.Request, ps playback.System) {
	var payload submitPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		renderJSONMessage(w, http.StatusBadRequest, "Request body must be JSON containing a url")
		return
	}
	item, err := ps.SubmitItem(r.Context(), payload.URL)
	switch {
	case errors.Is(err, metadata.ErrInvalidRef):
		renderJSONMessage(w, http.StatusBadRequest, "That doesn't look like a link we can play")
	case errors.Is(err, playback.ErrDuplicateSubmission):
		renderJSONMessage(w, http.StatusConflict, "That link is already in the queue")
	case err != nil:
		slog.Error("Failed to submit item", slog.String("url", payload.URL), slog.String("error", err.Error()))
		renderJSONMessage(w, http.StatusInternalServerError, "Something went wrong adding that link")
	default:
		renderJSON(w, http.StatusCreated, item)
	}
}

func voteStream(w http.ResponseWriter, r *http.Request, ps playback.System) {
	id, ok := decodeStreamID(w, r)
	if !ok {
		return
	}
	votes, err := ps.Vote(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		// The item started playing or was removed while the vote was in flight
		renderJSON(w, http.StatusOK, models.ResponseVote{ID: id, Applied: false})
		return
	}
	if err != nil {
		slog.Error("Failed to record vote", slog.String("item_id", id), slog.String("error", err.Error()))
		renderJSONMessage(w, http.StatusInternalServerError, "Something went wrong recording that vote")
		return
	}
	renderJSON(w, http.StatusOK, models.ResponseVote{ID: id, Votes: votes, Applied: true})
}

func removeStream(w http.ResponseWriter, r *http.Request, ps playback.System, token string) {
	if token == "" {
		renderJSONMessage(w, http.StatusForbidden, "Moderation is not enabled")
		return
	}
	provided := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if provided == "" {
		provided = r.URL.Query().Get("token")
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
		renderJSONMessage(w, http.StatusUnauthorized, "Your request was not authorized")
		return
	}
	id, ok := decodeStreamID(w, r)
	if !ok {
		return
	}
	item, err := ps.RemoveItem(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		renderJSONMessage(w, http.StatusNotFound, "That item is not in the queue")
		return
	}
	if err != nil {
		slog.Error("Failed to remove item", slog.String("item_id", id), slog.String("error", err.Error()))
		renderJSONMessage(w, http.StatusInternalServerError, "Something went wrong trying to delete that item")
		return
	}
	renderJSON(w, http.StatusOK, item)
}

func finishStream(w http.ResponseWriter, r *http.Request, ps playback.System, secret string) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		renderJSONMessage(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if secret != "" {
		signature := r.Header.Get("X-Player-Signature")
		if signature == "" {
			renderJSONMessage(w, http.StatusUnauthorized, "No signature was provided")
			return
		}
		if err := hmacext.Validate(body, fmt.Sprintf("sha256=%s", signature), secret); err != nil {
			slog.With(slog.Any("error", err)).Warn("Failed signature validation")
			renderJSONMessage(w, http.StatusUnauthorized, "Signature failed validation")
			return
		}
	}

	var payload streamPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.StreamID == "" {
		renderJSONMessage(w, http.StatusBadRequest, "Request body must be JSON containing a streamId")
		return
	}
	if err := ps.SignalFinished(r.Context(), payload.StreamID); err != nil {
		slog.Error("Failed to advance queue", slog.String("item_id", payload.StreamID), slog.String("error", err.Error()))
		renderJSONMessage(w, http.StatusInternalServerError, "Something went wrong advancing the queue")
		return
	}
	renderJSONMessage(w, http.StatusAccepted, "Finished signal accepted")
}
