package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vampirenirmal/storyscope/internal/analysis"
	"github.com/vampirenirmal/storyscope/internal/insights"
	"github.com/vampirenirmal/storyscope/internal/narrative"
	"github.com/vampirenirmal/storyscope/internal/schema"
	"github.com/vampirenirmal/storyscope/internal/storage"
)

// AnalyzeResponse is the body returned by POST /api/analyze.
type AnalyzeResponse struct {
	Result      *analysis.Result      `json:"result"`
	ReportID    string                `json:"reportId,omitempty"`
	Suggestions []insights.Suggestion `json:"suggestions,omitempty"`
}

// ErrorResponse is returned for every failed request. Details lists snapshot
// validation failures.
type ErrorResponse struct {
	Error   string                       `json:"error"`
	Details []*narrative.ValidationError `json:"details,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	ctx := c.Request().Context()

	snap, err := narrative.Decode(c.Request().Body, narrative.FormatJSON)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	result, err := s.engine.Analyze(ctx, snap, s.sink)
	if err != nil {
		var verrs narrative.ValidationErrors
		if errors.As(err, &verrs) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   narrative.ErrInvalidSnapshot.Error(),
				Details: verrs,
			})
		}
		if ctx.Err() != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "request cancelled")
		}
		s.logger.Error("Analysis failed", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "analysis failed"})
	}

	resp := AnalyzeResponse{Result: result}

	if flag(c, "insights") {
		if s.insights == nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "insights are not enabled"})
		}
		resp.Result, resp.Suggestions = insights.Supplement(ctx, s.logger, s.insights, snap, result)
	}

	if flag(c, "save") {
		if s.reports == nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "report storage is not enabled"})
		}
		report, err := s.reports.Save(ctx, snap.ProjectID, resp.Result, resp.Suggestions)
		if err != nil {
			s.logger.Error("Saving report failed", "project_id", snap.ProjectID, "error", err)
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "saving report failed"})
		}
		resp.ReportID = report.ID
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSchema(c echo.Context) error {
	sch, err := schema.ByName(c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, sch)
}

func (s *Server) handleListReports(c echo.Context) error {
	if s.reports == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "report storage is not enabled"})
	}
	ids, err := s.reports.List(c.Request().Context(), c.Param("project"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string][]string{"reports": ids})
}

func (s *Server) handleGetReport(c echo.Context) error {
	if s.reports == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "report storage is not enabled"})
	}
	report, err := s.reports.Load(c.Request().Context(), c.Param("project"), c.Param("id"))
	if err != nil {
		return s.reportError(c, "loading report failed", err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleDeleteReport(c echo.Context) error {
	if s.reports == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "report storage is not enabled"})
	}
	if err := s.reports.Delete(c.Request().Context(), c.Param("project"), c.Param("id")); err != nil {
		return s.reportError(c, "deleting report failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) reportError(c echo.Context, msg string, err error) error {
	switch {
	case errors.Is(err, storage.ErrInvalidPath):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error(msg, "project", c.Param("project"), "id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msg})
	}
}

func flag(c echo.Context, name string) bool {
	v, _ := strconv.ParseBool(c.QueryParam(name))
	return v
}
