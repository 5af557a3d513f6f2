package handler

import (
	"net/http"

	"haulbid/internal/finalizer/service"
	httputil "haulbid/pkg/http"
	"haulbid/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type WorkerStatusResponse struct {
	Running bool `json:"running"`
}

// WorkerHandler exposes lifecycle control over the finalizer worker for
// process supervisors and operators.
type WorkerHandler struct {
	worker service.FinalizerService
	log    *logger.Logger
}

func NewWorkerHandler(worker service.FinalizerService, log *logger.Logger) *WorkerHandler {
	return &WorkerHandler{
		worker: worker,
		log:    log,
	}
}

func (h *WorkerHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, WorkerStatusResponse{Running: h.worker.Running()}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Status", "error", err)
	}
}

func (h *WorkerHandler) Start(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.worker.Start()
	h.log.Info("Worker start requested via API")
	if err := httputil.WriteSuccess(w, WorkerStatusResponse{Running: h.worker.Running()}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Start", "error", err)
	}
}

func (h *WorkerHandler) Stop(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.worker.Stop()
	h.log.Info("Worker stop requested via API")
	if err := httputil.WriteSuccess(w, WorkerStatusResponse{Running: h.worker.Running()}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Stop", "error", err)
	}
}

func (h *WorkerHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/worker/status", h.Status)
	router.POST("/worker/start", h.Start)
	router.POST("/worker/stop", h.Stop)
}
