package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kdimtricp/lostfound/internal/controller"
	"github.com/kdimtricp/lostfound/internal/media"
	"github.com/kdimtricp/lostfound/internal/models"
	"github.com/kdimtricp/lostfound/internal/presentation"
	"go.uber.org/zap"
)

type stateResponse struct {
	View           models.View             `json:"view"`
	Loading        bool                    `json:"loading"`
	LoadingMessage string                  `json:"loadingMessage"`
	Error          string                  `json:"error"`
	Matches        []presentation.CardView `json:"matches"`
}

func newStateResponse(s controller.State) stateResponse {
	resp := stateResponse{
		View:           s.View,
		Loading:        s.Loading,
		LoadingMessage: s.LoadingMessage,
		Error:          s.Error,
		Matches:        []presentation.CardView{},
	}
	if s.View == models.ViewMatching {
		page := presentation.BuildPage(s, nil, imageURL)
		resp.Matches = page.List.Cards
	}
	return resp
}

type navigateRequest struct {
	View string `json:"view"`
}

type navigateResponse struct {
	Changed bool          `json:"changed"`
	State   stateResponse `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (app *App) StateAPIHandler(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, http.StatusOK, newStateResponse(sessionFrom(r).Controller.Snapshot()))
}

func (app *App) ItemsAPIHandler(w http.ResponseWriter, r *http.Request) {
	items, err := sessionFrom(r).Store.ListAll(r.Context())
	if err != nil {
		app.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error loading items"})
		return
	}
	app.writeJSON(w, http.StatusOK, presentation.HistoryList(items, imageURL).Cards)
}

func (app *App) ReportAPIHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	report, err := app.parseReport(w, r)
	if errors.Is(err, errUploadTooLarge) {
		sess.Controller.Reject(msgUploadTooLarge)
		app.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: msgUploadTooLarge})
		return
	}
	if err != nil {
		app.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Malformed form"})
		return
	}

	state, err := sess.Controller.Submit(r.Context(), report)
	if err != nil {
		app.Logger.Info("Report not completed",
			zap.String("session_id", sess.ID),
			zap.String("error", err.Error()))
	}
	app.writeJSON(w, reportStatus(err), newStateResponse(state))
}

// reportStatus maps a submission outcome to an HTTP status.
func reportStatus(err error) int {
	var (
		verr *controller.ValidationError
		serr *controller.SubmissionError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, controller.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, media.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &serr) && serr.Stage == controller.StageStore:
		return http.StatusInternalServerError
	case errors.As(err, &serr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (app *App) NavigateAPIHandler(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		app.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	ctrl := sessionFrom(r).Controller
	changed, err := ctrl.Navigate(models.View(req.View))
	if err != nil {
		app.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Unknown view"})
		return
	}

	app.writeJSON(w, http.StatusOK, navigateResponse{
		Changed: changed,
		State:   newStateResponse(ctrl.Snapshot()),
	})
}

func (app *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.Logger.Warn("Error encoding response", zap.Error(err))
	}
}
