package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kdimtricp/lostfound/internal/controller"
	"github.com/kdimtricp/lostfound/internal/models"
	"github.com/kdimtricp/lostfound/internal/presentation"
	"github.com/kdimtricp/lostfound/internal/session"
	"github.com/kdimtricp/lostfound/internal/store"
	"go.uber.org/zap"
)

var (
	errUploadTooLarge = errors.New("upload too large")
	errMalformedForm  = errors.New("malformed form")
)

const msgUploadTooLarge = "Image size cannot exceed 4MB."

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func imageURL(id string) string {
	return "/items/" + url.PathEscape(id) + "/image"
}

func (app *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	app.renderPage(w, r, http.StatusOK, "")
}

// ReportHandler runs the submission synchronously and redirects back to the
// page, which then shows whatever view the controller ended up in.
func (app *App) ReportHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	report, err := app.parseReport(w, r)
	if errors.Is(err, errUploadTooLarge) {
		sess.Controller.Reject(msgUploadTooLarge)
		app.renderPage(w, r, http.StatusRequestEntityTooLarge, msgUploadTooLarge)
		return
	}
	if err != nil {
		http.Error(w, "Malformed form", http.StatusBadRequest)
		return
	}

	if _, err := sess.Controller.Submit(r.Context(), report); err != nil {
		app.Logger.Info("Report not completed",
			zap.String("session_id", sess.ID),
			zap.String("error", err.Error()))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (app *App) NavigateHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	if _, err := sess.Controller.Navigate(models.View(r.FormValue("view"))); err != nil {
		http.Error(w, "Unknown view", http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ImageHandler serves an item's photo from the caller's own session.
func (app *App) ImageHandler(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	if itemID == "" {
		http.NotFound(w, r)
		return
	}

	item, err := sessionFrom(r).Store.Find(r.Context(), itemID)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "Error loading image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", item.ImageMIMEType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, "", item.CreatedAt, bytes.NewReader(item.Image))
}

// parseReport reads the multipart form. A missing image is left for the
// controller to reject; only an oversized body is an error here.
func (app *App) parseReport(w http.ResponseWriter, r *http.Request) (controller.Report, error) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return controller.Report{}, errUploadTooLarge
		case !errors.Is(err, http.ErrNotMultipart):
			return controller.Report{}, errMalformedForm
		}
		// Plain form posts carry no image; the controller will say so.
	}

	report := controller.Report{
		Kind:        parseKind(r.FormValue("kind")),
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return report, nil
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return controller.Report{}, errMalformedForm
	}
	report.Image = data
	report.ImageMIMEType = header.Header.Get("Content-Type")
	return report, nil
}

// parseKind keeps unrecognised values as-is so the controller reports them.
func parseKind(raw string) models.ReportKind {
	kind, err := models.ParseReportKind(raw)
	if err != nil {
		return models.ReportKind(strings.TrimSpace(raw))
	}
	return kind
}

func (app *App) renderPage(w http.ResponseWriter, r *http.Request, status int, errOverride string) {
	sess := sessionFrom(r)

	page, err := buildPage(r, sess)
	if err != nil {
		app.Logger.Error("Failed to load items", zap.String("session_id", sess.ID), zap.Error(err))
		http.Error(w, "Error loading items", http.StatusInternalServerError)
		return
	}
	if errOverride != "" {
		page.View = models.ViewForm
		page.Nav = presentation.Navigation(models.ViewForm, len(page.Nav) > 1)
		page.List = nil
		page.Error = errOverride
	}

	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "page.html", page); err != nil {
		app.Logger.Error("Error rendering template", zap.Error(err))
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func buildPage(r *http.Request, sess *session.Session) (presentation.Page, error) {
	items, err := sess.Store.ListAll(r.Context())
	if err != nil {
		return presentation.Page{}, err
	}
	return presentation.BuildPage(sess.Controller.Snapshot(), items, imageURL), nil
}
