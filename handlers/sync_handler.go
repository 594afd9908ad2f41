package handlers

import (
	"context"
	"net/http"

	"github.com/Dosada05/roster-system/services"
)

type SyncRunner interface {
	Run(ctx context.Context) (*services.SyncReport, error)
}

type SyncHandler struct {
	sync SyncRunner
}

func NewSyncHandler(s SyncRunner) *SyncHandler {
	return &SyncHandler{sync: s}
}

// TriggerSync godoc
// @Summary Запустить синхронизацию с реестром федерации
// @Tags sync
// @Description Выполняет прогон синхронно и возвращает отчёт. ran=false, если синхронизация
// @Description выключена или уже выполняется.
// @Produce json
// @Success 200 {object} map[string]interface{} "Отчёт о прогоне"
// @Failure 403 {object} map[string]interface{} "Только для роли admin"
// @Failure 503 {object} map[string]interface{} "e503: реестр недоступен"
// @Security BearerAuth
// @Router /api/sync [post]
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	report, err := h.sync.Run(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
