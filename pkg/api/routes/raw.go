package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/openprep/prepflow/pkg/api/services"
	"github.com/openprep/prepflow/pkg/api/services/data"
	"github.com/openprep/prepflow/pkg/lifecycle"
	"github.com/openprep/prepflow/pkg/plog"
)

// upgrader accepts any origin: browser clients connect from separate hosts
// and the bearer token is the access control.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterRawHandlers mounts the endpoints that move raw bytes or hold long
// lived connections, which the typed API layer does not model: multipart
// uploads, artifact downloads, and the job status websocket.
func RegisterRawHandlers(router chi.Router, svcs *services.Services, logger *plog.Logger) {
	if logger == nil {
		logger = plog.NewDefault()
	}

	router.Post("/api/v1/data/upload", uploadHandler(svcs, logger))
	router.Get("/api/v1/data/{artifactId}/download", downloadHandler(svcs))
	router.Get("/api/v1/ws/jobs/{jobId}", jobStatusHandler(svcs, logger))
}

func uploadHandler(svcs *services.Services, logger *plog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svcs.IAM.Authenticate(r); err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
			return
		}
		defer file.Close()

		artifact, err := svcs.Data.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
		if err != nil {
			switch {
			case errors.Is(err, data.ErrTooLarge):
				writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			case errors.Is(err, data.ErrBadFilename):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				logger.Warn("upload failed", "error", err)
				writeError(w, http.StatusInternalServerError, "upload failed")
			}
			return
		}

		writeJSON(w, http.StatusCreated, toArtifactResponse(artifact))
	}
}

func downloadHandler(svcs *services.Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svcs.IAM.Authenticate(r); err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "artifactId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid artifact ID")
			return
		}

		artifact, content, err := svcs.Data.Open(r.Context(), id)
		if err != nil {
			if errors.Is(err, data.ErrNotFound) {
				writeError(w, http.StatusNotFound, "artifact not found")
			} else {
				writeError(w, http.StatusInternalServerError, "download failed")
			}
			return
		}

		contentType := artifact.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
		_, _ = w.Write(content)
	}
}

// jobStatusHandler upgrades to a websocket and streams job status updates
// until the job reaches a terminal state or the client disconnects.
func jobStatusHandler(svcs *services.Services, logger *plog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svcs.IAM.Authenticate(r); err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "jobId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid job ID")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		ch, err := svcs.Hub.Subscribe(ctx, id)
		if err != nil {
			if errors.Is(err, lifecycle.ErrNotFound) {
				writeError(w, http.StatusNotFound, "job not found")
			} else {
				writeError(w, http.StatusInternalServerError, "subscription failed")
			}
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		// Drain client frames so pongs and close messages are processed;
		// any read error means the client went away.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for msg := range ch {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("websocket write failed", "job_id", id, "error", err)
				return
			}
		}

		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
