package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	httpmiddleware "github.com/eduzen/cascadesign/internal/http"
	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/signing"
)

// maxSubmitBytes bounds a signature submission, the PNG image included.
const maxSubmitBytes = 5 << 20

// SignerView is returned to a signer opening their link.
type SignerView struct {
	ProcessID     string `json:"process_id"`
	Title         string `json:"title"`
	SignerName    string `json:"signer_name"`
	Position      int    `json:"position"`
	Total         int    `json:"total"`
	PositionLabel string `json:"position_label"`
	DocumentURL   string `json:"document_url"`
	ExpiresIn     int    `json:"expires_in"`
}

// DocumentURL is a short-lived read URL for the document to sign.
type DocumentURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

// SubmitSignatureRequest is the body of POST /sign/{token}.
type SubmitSignatureRequest struct {
	Signature   string              `json:"signature" validate:"required"`
	Attestation bool                `json:"attestation"`
	Fingerprint string              `json:"fingerprint,omitempty" validate:"max=512"`
	Geolocation *models.Geolocation `json:"geolocation,omitempty"`
}

// SubmitSignatureResponse is returned once a signature is accepted.
type SubmitSignatureResponse struct {
	ProcessID        string `json:"process_id"`
	Completed        bool   `json:"completed"`
	Position         int    `json:"position"`
	PDFHash          string `json:"pdf_hash"`
	NotificationSent bool   `json:"notification_sent"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SignerHandlers serve the token-authenticated routes used by signatories.
type SignerHandlers struct {
	orchestrator *signing.Orchestrator
	validate     *validator.Validate
	translator   ut.Translator
}

func NewSignerHandlers(orchestrator *signing.Orchestrator) *SignerHandlers {
	validate, translator := newValidator()
	return &SignerHandlers{
		orchestrator: orchestrator,
		validate:     validate,
		translator:   translator,
	}
}

// Register mounts the signer routes on mux.
func (h *SignerHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /sign/{token}", h.View)
	mux.HandleFunc("GET /sign/{token}/document", h.Document)
	mux.HandleFunc("POST /sign/{token}", h.Submit)
}

func (h *SignerHandlers) View(w http.ResponseWriter, r *http.Request) {
	doc, err := h.orchestrator.GetCurrentDocumentForSigner(r.Context(), r.PathValue("token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SignerView{
		ProcessID:     doc.ProcessID.String(),
		Title:         doc.Title,
		SignerName:    doc.SignerName,
		Position:      doc.Position,
		Total:         doc.Total,
		PositionLabel: fmt.Sprintf("%d/%d", doc.Position+1, doc.Total),
		DocumentURL:   doc.URL,
		ExpiresIn:     doc.ExpiresIn,
	})
}

func (h *SignerHandlers) Document(w http.ResponseWriter, r *http.Request) {
	doc, err := h.orchestrator.GetCurrentDocumentForSigner(r.Context(), r.PathValue("token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, DocumentURL{URL: doc.URL, ExpiresIn: doc.ExpiresIn})
}

func (h *SignerHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var body SubmitSignatureRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBytes))
	if err := dec.Decode(&body); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: malformed body", signing.ErrValidation))
		return
	}
	if err := h.validate.Struct(body); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %s", signing.ErrValidation, validationMessage(err, h.translator)))
		return
	}

	md := httpmiddleware.MetadataFromContext(r.Context())
	res, err := h.orchestrator.SubmitSignature(r.Context(), signing.SubmitRequest{
		Token:       r.PathValue("token"),
		Signature:   body.Signature,
		Attestation: body.Attestation,
		IP:          md.ClientIP,
		UserAgent:   md.UserAgent,
		Fingerprint: body.Fingerprint,
		Geolocation: body.Geolocation,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SubmitSignatureResponse{
		ProcessID:        res.ProcessID.String(),
		Completed:        res.Completed,
		Position:         res.Position,
		PDFHash:          res.PDFHash,
		NotificationSent: res.NotificationSent,
	})
}

func (h *SignerHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := httpStatus(err)
	switch {
	case status >= http.StatusInternalServerError:
		log.Ctx(r.Context()).Error().Err(err).Msg("Signer request failed")
	case errors.Is(err, signing.ErrSealing):
		log.Ctx(r.Context()).Error().Err(err).Msg("Signature could not be sealed")
	default:
		log.Ctx(r.Context()).Debug().Err(err).Int("status", status).Msg("Signer request rejected")
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
