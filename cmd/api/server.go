package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"claimflow/auth"
	"claimflow/claim"
	"claimflow/document"
	"claimflow/lecturer"
)

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (auth.Identity, error)
}

type claimService interface {
	Submit(ctx context.Context, params claim.SubmitParams) (*claim.Claim, error)
	Get(ctx context.Context, id string, scope claim.Scope) (*claim.Claim, error)
	List(ctx context.Context, filters claim.Filters) (claim.ListResult, error)
	Summary(ctx context.Context, scope claim.Scope) (claim.Summary, error)
	Approve(ctx context.Context, req claim.TransitionRequest) (claim.Result, error)
	Reject(ctx context.Context, req claim.TransitionRequest) (claim.Result, error)
	SendForReview(ctx context.Context, req claim.TransitionRequest) (claim.Result, error)
	RequestInformation(ctx context.Context, req claim.TransitionRequest) (claim.Result, error)
	UpdateStatus(ctx context.Context, req claim.TransitionRequest, to claim.Status) (claim.Result, error)
	BulkApprove(ctx context.Context, ids []string, scope claim.Scope, actor claim.Actor, notes string) []claim.BulkOutcome
}

type documentService interface {
	Upload(ctx context.Context, params document.UploadParams) (document.Document, error)
	List(ctx context.Context, claimID string) ([]document.Document, error)
	Get(ctx context.Context, id string) (document.Document, error)
	Open(ctx context.Context, id string) (document.Document, io.ReadCloser, error)
}

type lecturerService interface {
	Get(ctx context.Context, id string) (lecturer.Profile, error)
	List(ctx context.Context, filters lecturer.Filters) ([]lecturer.Profile, error)
	UpdateDetails(ctx context.Context, id string, params lecturer.UpdateParams) (lecturer.Profile, error)
}

// Server wires the services to the HTTP routes.
type Server struct {
	authService     authService
	claimService    claimService
	documentService documentService
	lecturerService lecturerService
	logger          *slog.Logger
	now             func() time.Time
	bodyLimit       int
	readTimeout     time.Duration
	writeTimeout    time.Duration
}

func (s *Server) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *Server) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

// App builds the fiber application with every route registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "claimflow",
		BodyLimit:    s.bodyLimit,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		ErrorHandler: s.handleFiberError,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Post("/auth/login", s.handleLogin)

	protected := api.Group("", s.authMiddleware)
	protected.Post("/users", requireRole(auth.RoleHR), s.handleRegister)

	reviewers := requireRole(auth.RoleProgrammeCoordinator, auth.RoleAcademicManager, auth.RoleHR)

	claims := protected.Group("/claims")
	claims.Get("/", s.handleListClaims)
	claims.Post("/", requireRole(auth.RoleLecturer), s.handleSubmitClaim)
	claims.Get("/summary", s.handleClaimSummary)
	claims.Post("/bulk-approve", reviewers, s.handleBulkApprove)
	claims.Get("/:id", s.handleGetClaim)
	claims.Post("/:id/approve", reviewers, s.handleApprove)
	claims.Post("/:id/reject", reviewers, s.handleReject)
	claims.Post("/:id/review", reviewers, s.handleSendForReview)
	claims.Post("/:id/request-info", reviewers, s.handleRequestInformation)
	claims.Post("/:id/status", reviewers, s.handleUpdateStatus)
	claims.Post("/:id/documents", requireRole(auth.RoleLecturer), s.handleUploadDocument)
	claims.Get("/:id/documents", s.handleListDocuments)

	protected.Get("/documents/:id", s.handleDownloadDocument)

	lecturers := protected.Group("/lecturers", requireRole(auth.RoleProgrammeCoordinator, auth.RoleAcademicManager, auth.RoleHR))
	lecturers.Get("/", s.handleListLecturers)
	lecturers.Get("/:id", s.handleGetLecturer)
	lecturers.Put("/:id", requireRole(auth.RoleHR), s.handleUpdateLecturer)

	return app
}
