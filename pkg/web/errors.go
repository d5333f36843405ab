package web

import (
	"errors"

	"github.com/dukex/callflow/pkg/condition"
	"github.com/dukex/callflow/pkg/services"
	"github.com/dukex/callflow/pkg/store"
	"github.com/dukex/callflow/pkg/validation"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// reportProblem is a problem document carrying validation findings.
type reportProblem struct {
	*problems.Problem

	Findings []validation.Finding `json:"findings"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service and store errors onto problem documents.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsNotFoundError(err):
		problemType := "workflow_not_found"

		switch {
		case errors.Is(err, store.ErrUnknownNode):
			problemType = "node_not_found"
		case errors.Is(err, store.ErrUnknownEdge):
			problemType = "edge_not_found"
		}

		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType(problemType).
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case services.IsUnprocessableError(err):
		problemType := "workflow_invalid"
		if errors.Is(err, condition.ErrNoRoute) {
			problemType = "no_route"
		}

		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType(problemType).
			WithDetail(err.Error())

		findings := []validation.Finding{}
		if report, ok := services.ReportFrom(err); ok {
			findings = report.Errors()
		}

		return c.Status(fiber.StatusUnprocessableEntity).JSON(reportProblem{
			Problem:  problem,
			Findings: findings,
		})

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		return internalError(c, err)
	}
}
