package service

import (
	"context"         // Request scoping
	"crypto/sha256"   // Content and signature hashes
	"encoding/base64" // Signature image decoding
	"encoding/hex"    // Hash encoding
	"encoding/json"   // Canonical document content
	"errors"          // Error inspection
	"net/http"        // Content sniffing
	"strings"         // Data URL parsing
	"time"            // Timestamps

	"inspection_system/internal/domain" // Models and errors

	"github.com/sirupsen/logrus" // Structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// maxSignatureBytes bounds a decoded signature image
const maxSignatureBytes = 2 << 20

// Signatures runs document generation and the multi-party signing protocol
type Signatures struct {
	db  *gorm.DB // Database handle
	now Clock    // Time source
}

// NewSignatures returns the signature service
func NewSignatures(db *gorm.DB) *Signatures {
	return &Signatures{db: db, now: time.Now}
}

// SubmitSignatureInput is one party's signature with its audit metadata
type SubmitSignatureInput struct {
	DocumentID     uint
	Role           domain.SignatoryRole
	SignerID       uint
	SignatureImage string // Base64, optionally a data URL
	IPAddress      string
	UserAgent      string
}

// SignatureResult reports the slot and document after a change
type SignatureResult struct {
	Signature        domain.DigitalSignature `json:"signature"`
	DocumentStatus   domain.DocumentStatus   `json:"document_status"`
	InspectionStatus domain.InspectionStatus `json:"inspection_status"`
	Outstanding      []domain.SignatoryRole  `json:"outstanding"`
	Result           string                  `json:"result"`
}

// documentContent is the canonical body the document hash covers
type documentContent struct {
	InspectionID    uint                   `json:"inspection_id"`
	Type            domain.InspectionType  `json:"type"`
	CustomerID      uint                   `json:"customer_id"`
	DealerID        uint                   `json:"dealer_id"`
	InspectorID     uint                   `json:"inspector_id"`
	Vehicle         string                 `json:"vehicle"`
	VIN             string                 `json:"vin"`
	Findings        string                 `json:"findings"`
	ConditionRating int                    `json:"condition_rating"`
	Photos          []string               `json:"photos"`
	Fee             string                 `json:"fee"`
	Currency        string                 `json:"currency"`
	CompletedAt     *time.Time             `json:"completed_at"`
	Signatories     []domain.SignatoryRole `json:"signatories"`
	Version         int                    `json:"version"`
}

// GenerateDocument builds the document of a completed inspection and opens one
// pending slot per required signatory. Calling it again returns the existing document.
func (s *Signatures) GenerateDocument(ctx context.Context, inspectionID, actorID uint, actorRole domain.Role) (*domain.InspectionDocument, error) {
	var doc domain.InspectionDocument
	created := false
	err := retryOnConflict(ctx, "document", func() error {
		created = false
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var insp domain.VehicleInspection
			if err := findLocked(tx, &insp, inspectionID, "inspection"); err != nil {
				return err
			}
			if actorRole != domain.RoleAdmin && insp.InspectorID != actorID {
				return domain.NewError(domain.KindForbidden, "only the assigned inspector can generate the document")
			}
			if err := insp.RequirePaid(); err != nil {
				return err
			}
			err := tx.Preload("Signatures").Where("inspection_id = ?", insp.ID).First(&doc).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if insp.Status != domain.InspectionCompleted {
				return domain.NewError(domain.KindInvalidTransition, "document can only be generated for a completed inspection").
					WithDetail("status", insp.Status)
			}
			doc = domain.InspectionDocument{InspectionID: insp.ID, Status: domain.DocumentGenerating, Version: 1}
			if err := tx.Create(&doc).Error; err != nil {
				return mapDBError(err, "document")
			}
			content, err := s.render(tx, &insp, doc.Version)
			if err != nil {
				return err
			}
			now := s.now()
			sum := sha256.Sum256(content)
			doc.Content = string(content)
			doc.DocumentHash = hex.EncodeToString(sum[:])
			doc.Status = domain.DocumentReady
			doc.GeneratedAt = &now
			if err := tx.Model(&doc).Updates(map[string]any{
				"content":       doc.Content,
				"document_hash": doc.DocumentHash,
				"status":        doc.Status,
				"generated_at":  now,
			}).Error; err != nil {
				return err
			}
			for _, role := range insp.Type.RequiredSignatories() {
				sig := domain.DigitalSignature{
					DocumentID: doc.ID,
					Role:       role,
					SignerID:   insp.SignerFor(role),
					Status:     domain.SignaturePending,
				}
				if err := tx.Create(&sig).Error; err != nil {
					return mapDBError(err, "signature slot")
				}
				if err := appendEvent(tx, &sig, domain.EventCreated, actorID, "", now); err != nil {
					return err
				}
				doc.Signatures = append(doc.Signatures, sig)
			}
			created = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if created {
		logrus.WithFields(logrus.Fields{
			"inspection_id": inspectionID,
			"document_id":   doc.ID,
			"hash":          doc.DocumentHash,
			"slots":         len(doc.Signatures),
		}).Info("Inspection document generated")
	}
	return &doc, nil
}

// Document loads a document with its slots for a party of the inspection
func (s *Signatures) Document(ctx context.Context, id, viewerID uint, viewerRole domain.Role) (*domain.InspectionDocument, error) {
	var doc domain.InspectionDocument
	if err := s.db.WithContext(ctx).Preload("Signatures").First(&doc, id).Error; err != nil {
		return nil, mapDBError(err, "document")
	}
	var insp domain.VehicleInspection
	if err := s.db.WithContext(ctx).First(&insp, doc.InspectionID).Error; err != nil {
		return nil, mapDBError(err, "inspection")
	}
	if err := canView(&insp, viewerID, viewerRole); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SubmitSignature records one party's signature. When it is the last required
// one, the document and the inspection both become signed in the same unit.
func (s *Signatures) SubmitSignature(ctx context.Context, in SubmitSignatureInput) (*SignatureResult, error) {
	image, err := decodeSignatureImage(in.SignatureImage)
	if err != nil {
		return nil, err
	}
	var result *SignatureResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The document lock serializes the "all signed" check across roles
		var doc domain.InspectionDocument
		if err := findLocked(tx, &doc, in.DocumentID, "document"); err != nil {
			return err
		}
		var insp domain.VehicleInspection
		if err := findLocked(tx, &insp, doc.InspectionID, "inspection"); err != nil {
			return err
		}
		if err := insp.RequirePaid(); err != nil {
			return err
		}
		if doc.Status != domain.DocumentReady {
			return domain.NewError(domain.KindInvalidTransition, "document is %s and cannot be signed", doc.Status)
		}
		var sig domain.DigitalSignature
		err := forUpdate(tx).Where("document_id = ? AND role = ?", doc.ID, in.Role).First(&sig).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ValidationError("%s is not a required signatory for this document", in.Role).
				WithCode("signatory_not_required")
		}
		if err != nil {
			return err
		}
		if sig.Status == domain.SignatureSigned {
			return domain.NewError(domain.KindInvalidTransition, "the %s signature is already signed", in.Role).
				WithCode("signature_already_signed")
		}
		if sig.SignerID != in.SignerID {
			return domain.NewError(domain.KindForbidden, "you are not the %s of this inspection", in.Role)
		}

		now := s.now()
		hash := signatureHash(image, in.IPAddress, in.UserAgent, now)
		sig.Status = domain.SignatureSigned
		sig.SignatureHash = hash
		sig.SignedAt = &now
		sig.IPAddress = truncate(in.IPAddress, 64)
		sig.UserAgent = truncate(in.UserAgent, 255)
		// The image decoded as PNG or JPEG above
		sig.IsVerified = true
		sig.RejectionReason = ""
		if err := tx.Model(&sig).Updates(map[string]any{
			"status":           sig.Status,
			"signature_hash":   sig.SignatureHash,
			"signed_at":        now,
			"ip_address":       sig.IPAddress,
			"user_agent":       sig.UserAgent,
			"is_verified":      sig.IsVerified,
			"rejection_reason": "",
		}).Error; err != nil {
			return err
		}
		if err := appendEventWithMeta(tx, &sig, domain.EventSigned, in.SignerID, "", now); err != nil {
			return err
		}

		outstanding, err := outstandingRoles(tx, doc.ID)
		if err != nil {
			return err
		}
		if len(outstanding) == 0 {
			if err := insp.TransitionTo(domain.InspectionSigned, now); err != nil {
				return err
			}
			doc.Status = domain.DocumentSigned
			doc.SignedAt = &now
			if err := tx.Model(&doc).Updates(map[string]any{"status": doc.Status, "signed_at": now}).Error; err != nil {
				return err
			}
			if err := tx.Model(&insp).Updates(map[string]any{"status": insp.Status, "signed_at": now}).Error; err != nil {
				return err
			}
		}
		result = &SignatureResult{
			Signature:        sig,
			DocumentStatus:   doc.Status,
			InspectionStatus: insp.Status,
			Outstanding:      outstanding,
			Result:           string(domain.SignatureSigned),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"document_id":     in.DocumentID,
		"role":            in.Role,
		"signer_id":       in.SignerID,
		"document_status": result.DocumentStatus,
	}).Info("Signature submitted")
	return result, nil
}

// RejectSignature reopens a slot with a reason; the document does not advance
func (s *Signatures) RejectSignature(ctx context.Context, signatureID, actorID uint, actorRole domain.Role, reason string) (*SignatureResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ValidationError("a rejection reason is required")
	}
	return s.changeSlot(ctx, signatureID, actorID, actorRole, func(tx *gorm.DB, sig *domain.DigitalSignature, now time.Time) (string, error) {
		sig.Status = domain.SignaturePending
		sig.IsVerified = false
		sig.SignatureHash = ""
		sig.SignedAt = nil
		sig.RejectionReason = truncate(reason, 255)
		if err := tx.Model(sig).Updates(map[string]any{
			"status":           sig.Status,
			"is_verified":      false,
			"signature_hash":   "",
			"signed_at":        nil,
			"rejection_reason": sig.RejectionReason,
		}).Error; err != nil {
			return "", err
		}
		logrus.WithFields(logrus.Fields{"signature_id": sig.ID, "role": sig.Role, "reason": reason}).Warn("Signature rejected")
		return string(domain.SignatureRejected), appendEvent(tx, sig, domain.EventRejected, actorID, sig.RejectionReason, now)
	})
}

// ResendSignature records a reminder to a pending signatory
func (s *Signatures) ResendSignature(ctx context.Context, signatureID, actorID uint, actorRole domain.Role) (*SignatureResult, error) {
	return s.changeSlot(ctx, signatureID, actorID, actorRole, func(tx *gorm.DB, sig *domain.DigitalSignature, now time.Time) (string, error) {
		if sig.Status != domain.SignaturePending {
			return "", domain.NewError(domain.KindInvalidTransition, "only pending signatures can be resent")
		}
		logrus.WithFields(logrus.Fields{"signature_id": sig.ID, "role": sig.Role, "signer_id": sig.SignerID}).Info("Signature request resent")
		return "resent", appendEvent(tx, sig, domain.EventResent, actorID, "", now)
	})
}

// AuditTrail replays the stored events of a document in order
func (s *Signatures) AuditTrail(ctx context.Context, documentID, viewerID uint, viewerRole domain.Role) ([]domain.SignatureEvent, error) {
	if _, err := s.Document(ctx, documentID, viewerID, viewerRole); err != nil {
		return nil, err
	}
	var events []domain.SignatureEvent
	err := s.db.WithContext(ctx).Where("document_id = ?", documentID).
		Order("occurred_at asc, id asc").Find(&events).Error
	return events, err
}

// changeSlot locks document and slot, checks the actor may manage it, and applies fn
func (s *Signatures) changeSlot(ctx context.Context, signatureID, actorID uint, actorRole domain.Role,
	fn func(tx *gorm.DB, sig *domain.DigitalSignature, now time.Time) (string, error)) (*SignatureResult, error) {
	var result *SignatureResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner domain.DigitalSignature
		if err := tx.Select("id", "document_id").First(&owner, signatureID).Error; err != nil {
			return mapDBError(err, "signature")
		}
		var doc domain.InspectionDocument
		if err := findLocked(tx, &doc, owner.DocumentID, "document"); err != nil {
			return err
		}
		var insp domain.VehicleInspection
		if err := tx.First(&insp, doc.InspectionID).Error; err != nil {
			return mapDBError(err, "inspection")
		}
		if actorRole != domain.RoleAdmin && insp.InspectorID != actorID {
			return domain.NewError(domain.KindForbidden, "only the inspector or an admin can manage signatures")
		}
		if doc.Status != domain.DocumentReady {
			return domain.NewError(domain.KindInvalidTransition, "document is %s", doc.Status)
		}
		var sig domain.DigitalSignature
		if err := findLocked(tx, &sig, signatureID, "signature"); err != nil {
			return err
		}
		outcome, err := fn(tx, &sig, s.now())
		if err != nil {
			return err
		}
		outstanding, err := outstandingRoles(tx, doc.ID)
		if err != nil {
			return err
		}
		result = &SignatureResult{
			Signature:        sig,
			DocumentStatus:   doc.Status,
			InspectionStatus: insp.Status,
			Outstanding:      outstanding,
			Result:           outcome,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// render serializes the inspection into the canonical document body
func (s *Signatures) render(tx *gorm.DB, insp *domain.VehicleInspection, version int) ([]byte, error) {
	var photos []domain.InspectionPhoto
	if err := tx.Where("inspection_id = ?", insp.ID).Order("id asc").Find(&photos).Error; err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(photos))
	for _, p := range photos {
		urls = append(urls, p.URL)
	}
	return json.Marshal(documentContent{
		InspectionID:    insp.ID,
		Type:            insp.Type,
		CustomerID:      insp.CustomerID,
		DealerID:        insp.DealerID,
		InspectorID:     insp.InspectorID,
		Vehicle:         strings.TrimSpace(insp.VehicleMake + " " + insp.VehicleModel),
		VIN:             insp.VIN,
		Findings:        insp.Findings,
		ConditionRating: insp.ConditionRating,
		Photos:          urls,
		Fee:             insp.InspectionFee.StringFixed(2),
		Currency:        insp.Currency,
		CompletedAt:     insp.CompletedAt,
		Signatories:     insp.Type.RequiredSignatories(),
		Version:         version,
	})
}

// outstandingRoles lists the slots that are not yet signed and verified
func outstandingRoles(tx *gorm.DB, documentID uint) ([]domain.SignatoryRole, error) {
	var sigs []domain.DigitalSignature
	if err := tx.Where("document_id = ?", documentID).Order("id asc").Find(&sigs).Error; err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, domain.NewError(domain.KindIntegrityViolation, "document %d has no signature slots", documentID)
	}
	outstanding := []domain.SignatoryRole{}
	for _, sig := range sigs {
		if !sig.Complete() {
			outstanding = append(outstanding, sig.Role)
		}
	}
	return outstanding, nil
}

// appendEvent writes one audit entry
func appendEvent(tx *gorm.DB, sig *domain.DigitalSignature, ev domain.SignatureEventType, actorID uint, reason string, at time.Time) error {
	return tx.Create(&domain.SignatureEvent{
		DocumentID:  sig.DocumentID,
		SignatureID: sig.ID,
		Role:        sig.Role,
		Event:       ev,
		ActorID:     actorID,
		Reason:      reason,
		OccurredAt:  at,
	}).Error
}

// appendEventWithMeta writes an audit entry carrying the submission metadata
func appendEventWithMeta(tx *gorm.DB, sig *domain.DigitalSignature, ev domain.SignatureEventType, actorID uint, reason string, at time.Time) error {
	return tx.Create(&domain.SignatureEvent{
		DocumentID:    sig.DocumentID,
		SignatureID:   sig.ID,
		Role:          sig.Role,
		Event:         ev,
		ActorID:       actorID,
		Reason:        reason,
		IPAddress:     sig.IPAddress,
		UserAgent:     sig.UserAgent,
		SignatureHash: sig.SignatureHash,
		OccurredAt:    at,
	}).Error
}

// decodeSignatureImage accepts base64 PNG or JPEG, bare or as a data URL
func decodeSignatureImage(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.ValidationError("signature_image is required")
	}
	if strings.HasPrefix(raw, "data:") {
		comma := strings.IndexByte(raw, ',')
		if comma < 0 || !strings.HasSuffix(raw[:comma], ";base64") {
			return nil, domain.ValidationError("signature_image data URL must be base64 encoded")
		}
		raw = raw[comma+1:]
	}
	image, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, domain.ValidationError("signature_image is not valid base64")
	}
	if len(image) == 0 || len(image) > maxSignatureBytes {
		return nil, domain.ValidationError("signature_image must be between 1 byte and 2 MiB")
	}
	switch http.DetectContentType(image) {
	case "image/png", "image/jpeg":
		return image, nil
	}
	return nil, domain.ValidationError("signature_image must be a PNG or JPEG")
}

// signatureHash binds the image to the submission metadata
func signatureHash(image []byte, ip, userAgent string, at time.Time) string {
	h := sha256.New()
	h.Write(image)
	h.Write([]byte{0})
	h.Write([]byte(ip))
	h.Write([]byte{0})
	h.Write([]byte(userAgent))
	h.Write([]byte{0})
	h.Write([]byte(at.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}
