package main

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"claimflow/claim"
)

type submitClaimRequest struct {
	Period          string          `json:"period"`
	HoursWorked     decimal.Decimal `json:"hoursWorked"`
	HourlyRate      decimal.Decimal `json:"hourlyRate"`
	AdditionalNotes string          `json:"additionalNotes"`
}

type transitionBody struct {
	Notes  string `json:"notes"`
	Status string `json:"status"`
}

type bulkApproveRequest struct {
	IDs   []string `json:"ids"`
	Notes string   `json:"notes"`
}

func (s *Server) handleSubmitClaim(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	var req submitClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	period, err := claim.ParsePeriod(req.Period)
	if err != nil {
		return s.writeError(c, err)
	}

	created, err := s.claimService.Submit(c.UserContext(), claim.SubmitParams{
		LecturerID:      identity.UserID,
		Period:          period,
		HoursWorked:     req.HoursWorked,
		HourlyRate:      req.HourlyRate,
		AdditionalNotes: req.AdditionalNotes,
	})
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newClaimResponse(created, s.clock()))
}

func (s *Server) handleListClaims(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	filters := claim.Filters{
		Scope:     identity.Scope(),
		Lecturer:  c.Query("lecturer"),
		Page:      c.QueryInt("page", 1),
		PageSize:  c.QueryInt("pageSize", 20),
		SortKey:   c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if raw := c.Query("status"); raw != "" {
		st, err := claim.ParseStatus(raw)
		if err != nil {
			return s.writeError(c, err)
		}
		filters.Status = st
	}
	if raw := c.Query("period"); raw != "" {
		p, err := claim.ParsePeriod(raw)
		if err != nil {
			return s.writeError(c, err)
		}
		filters.Period = p
	}
	// Scope fields already set by the role always win over query parameters.
	if filters.Department == "" {
		filters.Department = c.Query("department")
	}
	if filters.LecturerID == "" {
		filters.LecturerID = c.Query("lecturerId")
	}

	result, err := s.claimService.List(c.UserContext(), filters)
	if err != nil {
		return s.writeError(c, err)
	}

	now := s.clock()
	items := make([]claimResponse, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, newClaimResponse(item, now))
	}
	return c.JSON(fiber.Map{"items": items, "total": result.Total})
}

func (s *Server) handleGetClaim(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	found, err := s.claimService.Get(c.UserContext(), c.Params("id"), identity.Scope())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(newClaimResponse(found, s.clock()))
}

func (s *Server) handleClaimSummary(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	summary, err := s.claimService.Summary(c.UserContext(), identity.Scope())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(newSummaryResponse(summary))
}

type transitionFunc func(s *Server, c *fiber.Ctx, req claim.TransitionRequest, body transitionBody) (claim.Result, error)

func (s *Server) transitionHandler(fn transitionFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, _ := identityFrom(c)

		var body transitionBody
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return badRequest(c, "invalid request body")
			}
		}

		req := claim.TransitionRequest{
			ClaimID: c.Params("id"),
			Scope:   identity.Scope(),
			Actor:   identity.Actor(),
			Notes:   strings.TrimSpace(body.Notes),
		}
		res, err := fn(s, c, req, body)
		if err != nil {
			return s.writeError(c, err)
		}
		return c.JSON(transitionResponse{
			Claim:     newClaimResponse(res.Claim, s.clock()),
			Redundant: res.Redundant,
		})
	}
}

func (s *Server) handleApprove(c *fiber.Ctx) error {
	return s.transitionHandler(func(s *Server, c *fiber.Ctx, req claim.TransitionRequest, _ transitionBody) (claim.Result, error) {
		return s.claimService.Approve(c.UserContext(), req)
	})(c)
}

func (s *Server) handleReject(c *fiber.Ctx) error {
	return s.transitionHandler(func(s *Server, c *fiber.Ctx, req claim.TransitionRequest, _ transitionBody) (claim.Result, error) {
		return s.claimService.Reject(c.UserContext(), req)
	})(c)
}

func (s *Server) handleSendForReview(c *fiber.Ctx) error {
	return s.transitionHandler(func(s *Server, c *fiber.Ctx, req claim.TransitionRequest, _ transitionBody) (claim.Result, error) {
		return s.claimService.SendForReview(c.UserContext(), req)
	})(c)
}

func (s *Server) handleRequestInformation(c *fiber.Ctx) error {
	return s.transitionHandler(func(s *Server, c *fiber.Ctx, req claim.TransitionRequest, _ transitionBody) (claim.Result, error) {
		return s.claimService.RequestInformation(c.UserContext(), req)
	})(c)
}

func (s *Server) handleUpdateStatus(c *fiber.Ctx) error {
	return s.transitionHandler(func(s *Server, c *fiber.Ctx, req claim.TransitionRequest, body transitionBody) (claim.Result, error) {
		to, err := claim.ParseStatus(body.Status)
		if err != nil {
			return claim.Result{}, err
		}
		return s.claimService.UpdateStatus(c.UserContext(), req, to)
	})(c)
}

func (s *Server) handleBulkApprove(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	var req bulkApproveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.IDs) == 0 {
		return badRequest(c, "ids are required")
	}
	if len(req.IDs) > 200 {
		return badRequest(c, "at most 200 claims per request")
	}

	outcomes := s.claimService.BulkApprove(c.UserContext(), req.IDs, identity.Scope(), identity.Actor(), strings.TrimSpace(req.Notes))

	items := make([]bulkOutcomeResponse, 0, len(outcomes))
	approved := 0
	for _, o := range outcomes {
		item := bulkOutcomeResponse{ClaimID: o.ClaimID, Redundant: o.Redundant}
		switch {
		case o.Err != nil:
			if statusFor(o.Err) == fiber.StatusInternalServerError {
				item.Error = "internal server error"
			} else {
				item.Error = o.Err.Error()
			}
		case o.Claim != nil:
			item.Status = string(o.Claim.Status())
			if !o.Redundant {
				approved++
			}
		}
		items = append(items, item)
	}
	return c.JSON(fiber.Map{"items": items, "approved": approved, "requested": len(req.IDs)})
}

func queryBool(c *fiber.Ctx, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
