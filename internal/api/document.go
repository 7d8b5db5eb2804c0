package api

import (
	"net/http" // HTTP status codes

	"inspection_system/internal/domain"  // Importing domain models
	"inspection_system/internal/service" // Signature service

	"github.com/gin-gonic/gin" // Gin web framework
)

// SignRequest is one party's signature submission
type SignRequest struct {
	Role           string            `json:"role" binding:"required,oneof=inspector customer dealer"` // Slot being signed
	SignatureImage string            `json:"signature_image" binding:"required"`                      // Base64 PNG or JPEG
	Metadata       map[string]string `json:"metadata"`                                                // Optional client metadata
}

// RejectSignatureRequest reopens a slot
type RejectSignatureRequest struct {
	Reason string `json:"reason" binding:"required,max=255"` // Why the signature was rejected
}

// documentView is a document without its raw content
func documentView(doc *domain.InspectionDocument) gin.H {
	return gin.H{
		"id":            doc.ID,
		"inspection_id": doc.InspectionID,
		"status":        doc.Status,
		"document_hash": doc.DocumentHash,
		"version":       doc.Version,
		"generated_at":  doc.GeneratedAt,
		"signed_at":     doc.SignedAt,
		"signatures":    doc.Signatures,
	}
}

// GenerateDocumentHandler builds the document of a completed inspection
func GenerateDocumentHandler(signatures *service.Signatures) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		doc, err := signatures.GenerateDocument(c.Request.Context(), id, userID, role)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Document ready", documentView(doc))
	}
}

// GetDocumentHandler returns a document and its signature slots
func GetDocumentHandler(signatures *service.Signatures) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		doc, err := signatures.Document(c.Request.Context(), id, userID, role)
		if err != nil {
			respondError(c, err)
			return
		}
		view := documentView(doc)
		if c.Query("include") == "content" {
			view["content"] = doc.Content
		}
		ok(c, http.StatusOK, "Document retrieved", view)
	}
}

// SignDocumentHandler records the caller's signature for one role
func SignDocumentHandler(signatures *service.Signatures) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var req SignRequest
		if !bindJSON(c, &req) {
			return
		}
		userAgent := c.Request.UserAgent()
		if ua := req.Metadata["user_agent"]; userAgent == "" && ua != "" {
			userAgent = ua
		}
		result, err := signatures.SubmitSignature(c.Request.Context(), service.SubmitSignatureInput{
			DocumentID:     id,
			Role:           domain.SignatoryRole(req.Role),
			SignerID:       userID,
			SignatureImage: req.SignatureImage,
			IPAddress:      c.ClientIP(),
			UserAgent:      userAgent,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		message := "Signature recorded"
		if result.DocumentStatus == domain.DocumentSigned {
			message = "Document fully signed"
		}
		ok(c, http.StatusOK, message, result)
	}
}

// RejectSignatureHandler reopens a slot; the rejection is a normal outcome
func RejectSignatureHandler(signatures *service.Signatures) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var req RejectSignatureRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err := signatures.RejectSignature(c.Request.Context(), id, userID, role, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, Response{
			Success: true,
			Code:    string(domain.KindSignatureRejected),
			Message: "Signature rejected",
			Data:    result,
		})
	}
}

// ResendSignatureHandler records a reminder to a pending signatory
func ResendSignatureHandler(signatures *service.Signatures) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		result, err := signatures.ResendSignature(c.Request.Context(), id, userID, role)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Signature request resent", result)
	}
}

// AuditTrailHandler replays the signature events of a document
func AuditTrailHandler(signatures *service.Signatures) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, authed := currentUser(c)
		if !authed {
			return
		}
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		events, err := signatures.AuditTrail(c.Request.Context(), id, userID, role)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Audit trail retrieved", events)
	}
}
