package handler

import (
	"errors"
	"net"
	"net/http"

	"github.com/uiowa-coph/roomres/internal/http/middleware"
	"github.com/uiowa-coph/roomres/internal/http/response"
	"github.com/uiowa-coph/roomres/internal/pipeline"
)

// writeError maps the pipeline error taxonomy onto HTTP statuses. Every body
// names the failing stage so nothing surfaces as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *pipeline.ValidationError
	if errors.As(err, &vErr) {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "submission failed validation", map[string]any{
			"stage":  vErr.Stage,
			"fields": vErr.Fields,
		})
		return
	}
	var oErr *pipeline.OrphanedPackageError
	if errors.As(err, &oErr) {
		response.Error(w, r, http.StatusBadGateway, "ORPHANED_PACKAGE", oErr.Message, map[string]any{
			"stage":     oErr.Stage,
			"system":    oErr.System,
			"packageId": oErr.PackageID,
		})
		return
	}
	var uErr *pipeline.UpstreamError
	if errors.As(err, &uErr) {
		response.Error(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", uErr.Message, map[string]any{
			"stage":  uErr.Stage,
			"system": uErr.System,
		})
		return
	}
	if errors.Is(err, pipeline.ErrNotFound) {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "no such record", nil)
		return
	}
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
}

// sessionCaller builds the pipeline caller for the request. Requests passing
// the guard via a development-origin bypass have no session and get an empty
// caller.
func sessionCaller(r *http.Request) pipeline.Caller {
	c := pipeline.Caller{IP: clientIP(r)}
	if sess, ok := middleware.SessionFromContext(r.Context()); ok {
		c.Token = sess.UserAccessToken
		c.Email = sess.HawkID + "@uiowa.edu"
	}
	return c
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
