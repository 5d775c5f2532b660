// Package candidate serves the moderation API over course candidates.
package candidate

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/detection"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

type Queue interface {
	ListPending(ctx context.Context) []models.CourseCandidate
	ListBySource(ctx context.Context, source string) []models.CourseCandidate
	Get(ctx context.Context, id string) (*models.CourseCandidate, error)
}

type Transitioner interface {
	Approve(ctx context.Context, id string) (string, error)
	Reject(ctx context.Context, id string, reason string) error
}

type Submitter interface {
	Submit(ctx context.Context, course models.ScrapedCourse) (*models.CourseCandidate, error)
}

type Detector interface {
	DetectDuplicate(ctx context.Context, req detection.DetectRequest) models.DuplicateResult
	Rescan(ctx context.Context, store detection.PendingStore, limit int) (detection.RescanSummary, error)
}

// Settings carries the handler tunables resolved alongside the services.
type Settings struct {
	RescanLimit int
}

// Register registers candidate routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Submit)
	g.POST("/detect", Detect)
	g.POST("/rescan", Rescan)
	g.GET("/:id", Get)
	g.POST("/:id/approve", Approve)
	g.POST("/:id/reject", Reject)
}

type ListResponse struct {
	Items []models.CourseCandidate `json:"items"`
	Count int                      `json:"count"`
}

type ApproveResponse struct {
	PublishedCourseID string `json:"published_course_id"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type RejectResponse struct {
	Status string `json:"status"`
}

// List returns the pending backlog, or every candidate of ?source=.
// ?duplicates_only=true keeps flagged candidates at or above ?min_confidence=.
func List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "candidate_handler.List")
	defer span.End()

	ctx, queue, err := ectoinject.GetContext[Queue](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	var items []models.CourseCandidate
	if source := c.QueryParam("source"); source != "" {
		items = queue.ListBySource(ctx, source)
	} else {
		items = queue.ListPending(ctx)
	}

	if duplicatesOnly, _ := strconv.ParseBool(c.QueryParam("duplicates_only")); duplicatesOnly {
		minConfidence, _ := strconv.Atoi(c.QueryParam("min_confidence"))
		items = detection.PendingDuplicates(items, minConfidence)
	}

	return c.JSON(http.StatusOK, ListResponse{Items: items, Count: len(items)})
}

func Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "candidate_handler.Get")
	defer span.End()

	ctx, queue, err := ectoinject.GetContext[Queue](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	candidate, err := queue.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, candidate)
}

// Submit stores a scraped course as a pending candidate
func Submit(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "candidate_handler.Submit")
	defer span.End()

	req, err := utils.BindRequest[models.ScrapedCourse](c)
	if err != nil {
		return err
	}

	ctx, submitter, err := ectoinject.GetContext[Submitter](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	candidate, err := submitter.Submit(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, candidate)
}

// Detect scores a course without storing it
func Detect(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "candidate_handler.Detect")
	defer span.End()

	req, err := utils.BindRequest[detection.DetectRequest](c)
	if err != nil {
		return err
	}

	ctx, detector, err := ectoinject.GetContext[Detector](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	return c.JSON(http.StatusOK, detector.DetectDuplicate(ctx, req))
}

func Approve(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "candidate_handler.Approve")
	defer span.End()

	ctx, transitioner, err := ectoinject.GetContext[Transitioner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	courseID, err := transitioner.Approve(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ApproveResponse{PublishedCourseID: courseID})
}

func Reject(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "candidate_handler.Reject")
	defer span.End()

	req, err := utils.BindRequest[RejectRequest](c)
	if err != nil {
		return err
	}

	ctx, transitioner, err := ectoinject.GetContext[Transitioner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if err := transitioner.Reject(ctx, c.Param("id"), req.Reason); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, RejectResponse{Status: "rejected"})
}

// Rescan re-scores the pending backlog against the current thresholds
func Rescan(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "candidate_handler.Rescan")
	defer span.End()

	ctx, detector, err := ectoinject.GetContext[Detector](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	ctx, pending, err := ectoinject.GetContext[detection.PendingStore](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	ctx, settings, err := ectoinject.GetContext[Settings](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	summary, err := detector.Rescan(ctx, pending, settings.RescanLimit)
	if err != nil {
		ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
		if logger != nil {
			logger.WithContext(ctx).WithError(err).Error("Rescan failed")
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to rescan pending candidates")
	}
	return c.JSON(http.StatusOK, summary)
}
