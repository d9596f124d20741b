package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/dto"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/ingest"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/middleware"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/progress"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/repository"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/service"
)

const defaultHeartbeat = 15 * time.Second

// IngestHandler exposes the admin image ingestion endpoints.
type IngestHandler struct {
	service   *service.IngestService
	broker    *progress.Broker
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewIngestHandler wires the ingestion endpoints.
func NewIngestHandler(service *service.IngestService, broker *progress.Broker, logger *zap.Logger) *IngestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestHandler{service: service, broker: broker, logger: logger, heartbeat: defaultHeartbeat}
}

// BatchUpload handles POST /api/admin/super-fast-batch-upload requests. The
// request returns once the batch has finished.
func (h *IngestHandler) BatchUpload(c echo.Context) error {
	var req dto.BatchUploadRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.RunBatch(c.Request().Context(), req)
	if err != nil {
		if handled, werr := validationFailed(c, err); handled {
			return werr
		}
		switch {
		case errors.Is(err, service.ErrJobRunning):
			return Error(c, http.StatusConflict, "an ingestion job is already running")
		case errors.Is(err, ingest.ErrPreflight):
			return ErrorWithData(c, http.StatusBadGateway, err.Error(), result)
		default:
			middleware.Logger(c, h.logger).Error("ingest batch failed", zap.Int("batch", req.BatchNumber), zap.Error(err))
			return ErrorWithData(c, http.StatusInternalServerError, "ingestion batch failed", result)
		}
	}

	return Success(c, http.StatusOK, fmt.Sprintf("batch %d %s", result.Job.BatchNumber, result.Job.State), result)
}

// ProgressStream handles GET /api/admin/progress-stream as a server-sent
// event stream of progress frames.
func (h *IngestHandler) ProgressStream(c echo.Context) error {
	frames, cancel := h.broker.Subscribe()
	defer cancel()
	middleware.Logger(c, h.logger).Debug("progress stream opened", zap.Int("subscribers", h.broker.Subscribers()))

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(frame)
			if err != nil {
				return fmt.Errorf("encode progress frame: %w", err)
			}
			if _, err := fmt.Fprintf(res, "data: %s\n\n", payload); err != nil {
				return nil
			}
			res.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

// Progress handles GET /api/admin/progress with the latest frame, for
// clients that poll instead of holding a stream open.
func (h *IngestHandler) Progress(c echo.Context) error {
	status := dto.ProgressStatus{Running: h.service.Running(), Subscribers: h.broker.Subscribers()}
	if frame, ok := h.broker.Latest(); ok {
		status.Latest = &frame
	}
	return Success(c, http.StatusOK, "progress retrieved", status)
}

// TestStore handles GET /api/admin/test-hostinger requests.
func (h *IngestHandler) TestStore(c echo.Context) error {
	result, err := h.service.Probe(c.Request().Context())
	if err != nil {
		return ErrorWithData(c, http.StatusBadGateway, "image store check failed", result)
	}
	return Success(c, http.StatusOK, "image store reachable", result)
}

// Jobs handles GET /api/admin/jobs requests.
func (h *IngestHandler) Jobs(c echo.Context) error {
	jobs, err := h.service.Recent(c.Request().Context(), parseIntDefault(c.QueryParam("limit"), 0))
	if err != nil {
		return Error(c, http.StatusInternalServerError, "failed to list jobs")
	}
	return Success(c, http.StatusOK, "jobs retrieved", jobs)
}

// Job handles GET /api/admin/jobs/:id requests.
func (h *IngestHandler) Job(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid job id")
	}
	job, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return Error(c, http.StatusNotFound, "job not found")
		}
		return Error(c, http.StatusInternalServerError, "failed to load job")
	}
	return Success(c, http.StatusOK, "job retrieved", job)
}

// CancelJob handles POST /api/admin/jobs/:id/cancel requests.
func (h *IngestHandler) CancelJob(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid job id")
	}
	if err := h.service.Cancel(c.Request().Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrJobNotFound):
			return Error(c, http.StatusNotFound, "job not found")
		case errors.Is(err, service.ErrJobNotRunning):
			return Error(c, http.StatusConflict, err.Error())
		default:
			return Error(c, http.StatusInternalServerError, "failed to cancel job")
		}
	}
	middleware.Logger(c, h.logger).Info("ingest job cancellation requested",
		zap.String("job_id", id.String()),
		zap.String("requested_by", middleware.Actor(c).Email),
	)
	return Success(c, http.StatusAccepted, "cancellation requested", map[string]string{"id": id.String()})
}

// StopSync handles POST /api/admin/stop-sync requests.
func (h *IngestHandler) StopSync(c echo.Context) error {
	stopped := h.service.StopAll()
	return Success(c, http.StatusOK, "stop requested", map[string]int{"stopped": stopped})
}
