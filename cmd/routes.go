package main

import (
	"net/http"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teal-fm/beacon/session"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	// Batch trigger
	mux.HandleFunc("POST /api/update-presences", session.WithAPIAuth(apiUpdatePresences(app.refreshService, app.logger), app.apiPassword))

	// Admin API
	mux.HandleFunc("GET /api/v1/users/{id}", session.WithAPIAuth(apiGetUser(app.database, app.presenceClient, app.logger), app.apiPassword))
	mux.HandleFunc("PUT /api/v1/users/{id}/settings", session.WithAPIAuth(apiSaveSettings(app.settingsService, app.logger), app.apiPassword))

	mux.Handle("GET /metrics", promhttp.Handler())

	standard := alice.New(recoverPanic(app.logger), logRequest(app.logger))
	return standard.Then(mux)
}
