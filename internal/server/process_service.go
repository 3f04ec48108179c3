package server

import (
	"context"
	"errors"
	"strings"

	"connectrpc.com/connect"
	cascadev1 "github.com/eduzen/cascadesign/api/cascade/v1"
	"github.com/eduzen/cascadesign/api/cascade/v1/cascadev1connect"
	"github.com/eduzen/cascadesign/internal/auth"
	"github.com/eduzen/cascadesign/internal/models"
	"github.com/eduzen/cascadesign/internal/signing"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var _ cascadev1connect.ProcessServiceHandler = (*ProcessServiceServer)(nil)

// ProcessServiceServer serves the member API. Every call is scoped to the
// organization of the authenticated member.
type ProcessServiceServer struct {
	orchestrator *signing.Orchestrator
	validate     *validator.Validate
	translator   ut.Translator
}

func NewProcessServiceServer(orchestrator *signing.Orchestrator) *ProcessServiceServer {
	validate, translator := newValidator()
	return &ProcessServiceServer{
		orchestrator: orchestrator,
		validate:     validate,
		translator:   translator,
	}
}

func (s *ProcessServiceServer) CreateProcess(
	ctx context.Context,
	req *connect.Request[cascadev1.CreateProcessRequest],
) (*connect.Response[cascadev1.CreateProcessResponse], error) {
	member, err := auth.RequirePermission(ctx, auth.PermProcessesCreate)
	if err != nil {
		return nil, err
	}
	if err := s.check(req.Msg); err != nil {
		return nil, err
	}

	signatories := make([]signing.SignatoryInput, 0, len(req.Msg.Signatories))
	for _, sig := range req.Msg.Signatories {
		signatories = append(signatories, signing.SignatoryInput{
			Email:      strings.TrimSpace(sig.Email),
			Name:       strings.TrimSpace(sig.Name),
			OrderIndex: sig.OrderIndex,
			ZoneID:     sig.ZoneID,
		})
	}

	res, err := s.orchestrator.CreateProcess(ctx, signing.CreateProcessRequest{
		OrgID:       member.OrgID,
		DocumentID:  uuid.MustParse(req.Msg.DocumentID),
		CreatedBy:   member.MemberID,
		Title:       strings.TrimSpace(req.Msg.Title),
		Signatories: signatories,
		ExpiresAt:   req.Msg.ExpiresAt,
	})
	if err != nil {
		return nil, s.fail(ctx, "CreateProcess", err)
	}

	return connect.NewResponse(&cascadev1.CreateProcessResponse{
		Process:        toProcess(res.Process),
		FirstEmailSent: res.FirstEmailSent,
	}), nil
}

func (s *ProcessServiceServer) GetProcess(
	ctx context.Context,
	req *connect.Request[cascadev1.GetProcessRequest],
) (*connect.Response[cascadev1.GetProcessResponse], error) {
	member, err := auth.RequirePermission(ctx, auth.PermProcessesRead)
	if err != nil {
		return nil, err
	}
	if err := s.check(req.Msg); err != nil {
		return nil, err
	}
	processID := uuid.MustParse(req.Msg.ProcessID)

	process, err := s.orchestrator.GetProcess(ctx, member.OrgID, processID)
	if err != nil {
		return nil, s.fail(ctx, "GetProcess", err)
	}

	resp := &cascadev1.GetProcessResponse{Process: toProcess(process)}
	if req.Msg.IncludeEvidence {
		evidence, err := s.orchestrator.ListEvidence(ctx, member.OrgID, processID)
		if err != nil {
			return nil, s.fail(ctx, "GetProcess", err)
		}
		for _, e := range evidence {
			resp.Evidence = append(resp.Evidence, toEvidence(e))
		}
	}

	return connect.NewResponse(resp), nil
}

func (s *ProcessServiceServer) ResendInvitation(
	ctx context.Context,
	req *connect.Request[cascadev1.ResendInvitationRequest],
) (*connect.Response[cascadev1.ResendInvitationResponse], error) {
	member, err := auth.RequirePermission(ctx, auth.PermProcessesManage)
	if err != nil {
		return nil, err
	}
	if err := s.check(req.Msg); err != nil {
		return nil, err
	}

	sent, err := s.orchestrator.ResendInvitation(ctx, member.OrgID, uuid.MustParse(req.Msg.ProcessID))
	if err != nil {
		return nil, s.fail(ctx, "ResendInvitation", err)
	}

	return connect.NewResponse(&cascadev1.ResendInvitationResponse{Sent: sent}), nil
}

func (s *ProcessServiceServer) CancelProcess(
	ctx context.Context,
	req *connect.Request[cascadev1.CancelProcessRequest],
) (*connect.Response[cascadev1.CancelProcessResponse], error) {
	member, err := auth.RequirePermission(ctx, auth.PermProcessesManage)
	if err != nil {
		return nil, err
	}
	if err := s.check(req.Msg); err != nil {
		return nil, err
	}
	processID := uuid.MustParse(req.Msg.ProcessID)

	if err := s.orchestrator.CancelProcess(ctx, member.OrgID, processID); err != nil {
		return nil, s.fail(ctx, "CancelProcess", err)
	}

	process, err := s.orchestrator.GetProcess(ctx, member.OrgID, processID)
	if err != nil {
		return nil, s.fail(ctx, "CancelProcess", err)
	}

	return connect.NewResponse(&cascadev1.CancelProcessResponse{Process: toProcess(process)}), nil
}

// check validates a request message against its struct tags.
func (s *ProcessServiceServer) check(msg any) error {
	if err := s.validate.Struct(msg); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, errors.New(validationMessage(err, s.translator)))
	}
	return nil
}

func (s *ProcessServiceServer) fail(ctx context.Context, op string, err error) error {
	cerr := connectError(err)
	if cerr.Code() == connect.CodeInternal {
		log.Ctx(ctx).Error().Err(err).Str("op", op).Msg("Member API call failed")
	}
	return cerr
}

func toProcess(p *models.SigningProcess) *cascadev1.Process {
	out := &cascadev1.Process{
		ProcessID:        p.ProcessID.String(),
		DocumentID:       p.DocumentID.String(),
		Title:            p.Title,
		Status:           p.DisplayStatus(),
		CurrentPosition:  p.CurrentPosition,
		TotalSignatories: len(p.Signatories),
		IntermediateHash: p.IntermediateHash,
		ExpiresAt:        p.ExpiresAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		Signatories:      make([]*cascadev1.Signatory, 0, len(p.Signatories)),
	}
	if p.CreatedBy != uuid.Nil {
		out.CreatedBy = p.CreatedBy.String()
	}
	for _, sig := range p.Signatories {
		out.Signatories = append(out.Signatories, &cascadev1.Signatory{
			SignatoryID: sig.SignatoryID.String(),
			Email:       sig.Email,
			Name:        sig.Name,
			OrderIndex:  sig.OrderIndex,
			ZoneID:      sig.ZoneID,
			SignedAt:    sig.SignedAt,
		})
	}
	return out
}

func toEvidence(e *models.Evidence) *cascadev1.Evidence {
	return &cascadev1.Evidence{
		SignatoryID:   e.SignatoryID.String(),
		Position:      e.Position,
		SignerEmail:   e.SignerEmail,
		IP:            e.Metadata.IP,
		UserAgent:     e.Metadata.UserAgent,
		PDFHash:       e.PDFHash,
		IntegrityHash: e.IntegrityHash,
		CreatedAt:     e.CreatedAt,
	}
}

