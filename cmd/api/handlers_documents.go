package main

import (
	"github.com/gofiber/fiber/v2"

	"claimflow/auth"
	"claimflow/document"
)

func (s *Server) handleUploadDocument(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return s.writeError(c, err)
	}
	defer f.Close()

	doc, err := s.documentService.Upload(c.UserContext(), document.UploadParams{
		ClaimID:     c.Params("id"),
		UploaderID:  identity.UserID,
		FileName:    fh.Filename,
		Size:        fh.Size,
		Description: c.FormValue("description"),
		Body:        f,
	})
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newDocumentResponse(doc))
}

func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	// Loading the claim under the caller's scope is the access check.
	owner, err := s.claimService.Get(c.UserContext(), c.Params("id"), identity.Scope())
	if err != nil {
		return s.writeError(c, err)
	}

	docs, err := s.documentService.List(c.UserContext(), owner.ID)
	if err != nil {
		return s.writeError(c, err)
	}
	items := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, newDocumentResponse(d))
	}
	return c.JSON(fiber.Map{"items": items, "total": len(items)})
}

func (s *Server) handleDownloadDocument(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	ref, err := s.documentService.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	if err := s.authorizeClaim(c, identity, ref.ClaimID); err != nil {
		return s.writeError(c, err)
	}

	doc, rc, err := s.documentService.Open(c.UserContext(), ref.ID)
	if err != nil {
		return s.writeError(c, err)
	}

	if doc.IsImage() && c.Query("inline") != "" {
		c.Set(fiber.HeaderContentDisposition, "inline")
	} else {
		c.Attachment(doc.OriginalName)
	}
	c.Set(fiber.HeaderContentType, doc.ContentType)
	// fasthttp closes rc once the body has been written.
	return c.SendStream(rc, int(doc.Size))
}

// authorizeClaim hides documents of claims outside the caller's scope.
func (s *Server) authorizeClaim(c *fiber.Ctx, identity auth.Identity, claimID string) error {
	_, err := s.claimService.Get(c.UserContext(), claimID, identity.Scope())
	return err
}
