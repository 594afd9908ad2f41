package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Dosada05/roster-system/middleware"
	"github.com/Dosada05/roster-system/models"
)

// RosterService is the roster use-case surface the handlers need.
type RosterService interface {
	CreateRoster(ctx context.Context, actorID int, input *models.Roster) (*models.Roster, error)
	UpdateRoster(ctx context.Context, actorID int, input *models.Roster) (*models.Roster, error)
	DeleteRoster(ctx context.Context, actorID, rosterID int) error
	GetRoster(ctx context.Context, rosterID int) (*models.Roster, error)
	AddPlayer(ctx context.Context, actorID, rosterID, federationNumber int) (*models.Player, error)
	RemovePlayer(ctx context.Context, actorID, rosterID, playerID int) error
	BlockingDates(ctx context.Context, actorID, rosterID int) ([]time.Time, error)
}

type RosterHandler struct {
	rosterService RosterService
}

func NewRosterHandler(rs RosterService) *RosterHandler {
	return &RosterHandler{rosterService: rs}
}

type rosterInput struct {
	TeamID       int                 `json:"team_id"`
	SeasonID     int                 `json:"season_id"`
	DivisionType models.DivisionType `json:"division_type"`
	DivisionAge  models.DivisionAge  `json:"division_age"`
	NameAddition string              `json:"name_addition"`
	ContextID    *int                `json:"context_id"`
	Version      int                 `json:"version"`
}

func (in rosterInput) toModel() *models.Roster {
	return &models.Roster{
		TeamID:       in.TeamID,
		SeasonID:     in.SeasonID,
		DivisionType: in.DivisionType,
		DivisionAge:  in.DivisionAge,
		NameAddition: in.NameAddition,
		ContextID:    in.ContextID,
		Version:      in.Version,
	}
}

type addPlayerInput struct {
	FederationNumber int `json:"federation_number"`
}

func currentActor(w http.ResponseWriter, r *http.Request) (int, bool) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return 0, false
	}
	return actorID, true
}

// CreateRoster godoc
// @Summary Создать ростер команды
// @Tags rosters
// @Accept json
// @Produce json
// @Param input body rosterInput true "Команда, сезон и дивизион"
// @Success 201 {object} map[string]interface{} "Ростер создан, version = 1"
// @Failure 400 {object} map[string]interface{} "Ошибка валидации"
// @Failure 403 {object} map[string]interface{} "e100: не администратор команды"
// @Failure 409 {object} map[string]interface{} "e101: ростер уже существует"
// @Security BearerAuth
// @Router /api/rosters [post]
func (h *RosterHandler) CreateRoster(w http.ResponseWriter, r *http.Request) {
	var input rosterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, ok := currentActor(w, r)
	if !ok {
		return
	}

	roster, err := h.rosterService.CreateRoster(r.Context(), actorID, input.toModel())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"roster": roster}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateRoster godoc
// @Summary Обновить ростер
// @Tags rosters
// @Description Сохраняет изменения, только если version совпадает с текущей версией ростера.
// @Accept json
// @Produce json
// @Param rosterID path int true "Roster ID"
// @Param input body rosterInput true "Ростер с текущей версией"
// @Success 200 {object} map[string]interface{} "Ростер с новой версией"
// @Failure 403 {object} map[string]interface{} "e100"
// @Failure 404 {object} map[string]interface{} "e404"
// @Failure 409 {object} map[string]interface{} "e101, e113"
// @Security BearerAuth
// @Router /api/rosters/{rosterID} [put]
func (h *RosterHandler) UpdateRoster(w http.ResponseWriter, r *http.Request) {
	rosterID, err := getIDFromURL(r, "rosterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input rosterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Version <= 0 {
		badRequestResponse(w, r, errors.New("version is required"))
		return
	}
	actorID, ok := currentActor(w, r)
	if !ok {
		return
	}

	roster := input.toModel()
	roster.ID = rosterID
	updated, err := h.rosterService.UpdateRoster(r.Context(), actorID, roster)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"roster": updated}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteRoster godoc
// @Summary Удалить ростер
// @Tags rosters
// @Param rosterID path int true "Roster ID"
// @Success 204 "Удалён"
// @Failure 403 {object} map[string]interface{} "e100"
// @Failure 409 {object} map[string]interface{} "e111: ростер заявлен на турнир"
// @Security BearerAuth
// @Router /api/rosters/{rosterID} [delete]
func (h *RosterHandler) DeleteRoster(w http.ResponseWriter, r *http.Request) {
	rosterID, err := getIDFromURL(r, "rosterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, ok := currentActor(w, r)
	if !ok {
		return
	}

	if err := h.rosterService.DeleteRoster(r.Context(), actorID, rosterID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRoster godoc
// @Summary Получить ростер с игроками
// @Tags rosters
// @Produce json
// @Param rosterID path int true "Roster ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "e404"
// @Security BearerAuth
// @Router /api/rosters/{rosterID} [get]
func (h *RosterHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	rosterID, err := getIDFromURL(r, "rosterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	roster, err := h.rosterService.GetRoster(r.Context(), rosterID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"roster": roster}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AddPlayer godoc
// @Summary Добавить игрока в ростер
// @Tags rosters
// @Description Игрок, которого ещё нет локально, сначала загружается из реестра федерации.
// @Accept json
// @Produce json
// @Param rosterID path int true "Roster ID"
// @Param input body addPlayerInput true "Номер в реестре федерации"
// @Success 201 {object} map[string]interface{} "Игрок добавлен"
// @Failure 403 {object} map[string]interface{} "e100"
// @Failure 404 {object} map[string]interface{} "e404"
// @Failure 409 {object} map[string]interface{} "e102-e109, e114"
// @Failure 422 {object} map[string]interface{} "e112: нет даты рождения"
// @Failure 503 {object} map[string]interface{} "e503: реестр недоступен"
// @Security BearerAuth
// @Router /api/rosters/{rosterID}/players [post]
func (h *RosterHandler) AddPlayer(w http.ResponseWriter, r *http.Request) {
	rosterID, err := getIDFromURL(r, "rosterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input addPlayerInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.FederationNumber <= 0 {
		badRequestResponse(w, r, errors.New("federation_number is required"))
		return
	}
	actorID, ok := currentActor(w, r)
	if !ok {
		return
	}

	player, err := h.rosterService.AddPlayer(r.Context(), actorID, rosterID, input.FederationNumber)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RemovePlayer godoc
// @Summary Убрать игрока из ростера
// @Tags rosters
// @Param rosterID path int true "Roster ID"
// @Param playerID path int true "Player ID"
// @Success 204 "Убран"
// @Failure 403 {object} map[string]interface{} "e100"
// @Failure 404 {object} map[string]interface{} "e404"
// @Failure 409 {object} map[string]interface{} "e110: официальный турнир уже начался"
// @Security BearerAuth
// @Router /api/rosters/{rosterID}/players/{playerID} [delete]
func (h *RosterHandler) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	rosterID, err := getIDFromURL(r, "rosterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, ok := currentActor(w, r)
	if !ok {
		return
	}

	if err := h.rosterService.RemovePlayer(r.Context(), actorID, rosterID, playerID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BlockingDates godoc
// @Summary Даты начала официальных турниров ростера
// @Tags rosters
// @Produce json
// @Param rosterID path int true "Roster ID"
// @Success 200 {object} map[string]interface{} "blocking_dates в формате YYYY-MM-DD"
// @Failure 403 {object} map[string]interface{} "e100"
// @Security BearerAuth
// @Router /api/rosters/{rosterID}/blocking-dates [get]
func (h *RosterHandler) BlockingDates(w http.ResponseWriter, r *http.Request) {
	rosterID, err := getIDFromURL(r, "rosterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, ok := currentActor(w, r)
	if !ok {
		return
	}

	dates, err := h.rosterService.BlockingDates(r.Context(), actorID, rosterID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	formatted := make([]string, len(dates))
	for i, d := range dates {
		formatted[i] = d.Format("2006-01-02")
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"blocking_dates": formatted}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
