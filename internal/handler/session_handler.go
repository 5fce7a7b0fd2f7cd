/*
Package handler provides the HTTP handlers and routing setup for the relay.

This file contains the read-only session inspection endpoint.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jozu2/pianogod-server/internal/pkg/errs"
	"github.com/jozu2/pianogod-server/internal/pkg/resp"
)

// HandleGetSession returns the current participant snapshot for a slug.
func HandleGetSession(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if slug == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		participants := deps.Hub.Participants(slug)
		if participants == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrSessionNotFound))
			return
		}

		data := map[string]any{
			"slug":         slug,
			"participants": participants,
			"count":        len(participants),
		}
		resp.RespondSuccess(w, r, data)
	}
}
