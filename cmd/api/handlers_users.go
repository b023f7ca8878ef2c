package main

import (
	"github.com/gofiber/fiber/v2"

	"claimflow/auth"
	"claimflow/lecturer"
)

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req auth.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	result, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(loginResponse{
		Token:     result.Token,
		ExpiresAt: formatTime(result.ExpiresAt),
		User:      newUserResponse(result.User),
	})
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req auth.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	user, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newUserResponse(*user))
}

type updateLecturerRequest struct {
	Department *string `json:"department"`
	EmployeeID *string `json:"employeeId"`
	IsActive   *bool   `json:"isActive"`
}

func (s *Server) handleListLecturers(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	filters := lecturer.Filters{
		Department: c.Query("department"),
		ActiveOnly: queryBool(c, "activeOnly"),
		Limit:      c.QueryInt("limit", 0),
	}
	if identity.Role == auth.RoleProgrammeCoordinator {
		filters.Department = identity.Department
	}

	profiles, err := s.lecturerService.List(c.UserContext(), filters)
	if err != nil {
		return s.writeError(c, err)
	}
	items := make([]lecturerResponse, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, newLecturerResponse(p))
	}
	return c.JSON(fiber.Map{"items": items, "total": len(items)})
}

func (s *Server) handleGetLecturer(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	profile, err := s.lecturerService.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	if identity.Role == auth.RoleProgrammeCoordinator && profile.Department != identity.Department {
		return s.writeError(c, lecturer.ErrNotFound)
	}
	return c.JSON(newLecturerResponse(profile))
}

func (s *Server) handleUpdateLecturer(c *fiber.Ctx) error {
	var req updateLecturerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	profile, err := s.lecturerService.UpdateDetails(c.UserContext(), c.Params("id"), lecturer.UpdateParams{
		Department: req.Department,
		EmployeeID: req.EmployeeID,
		IsActive:   req.IsActive,
	})
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(newLecturerResponse(profile))
}
