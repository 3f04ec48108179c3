package signing

import (
	"context"

	"github.com/eduzen/cascadesign/internal/models"
	"github.com/rs/zerolog/log"
)

// resolveZone picks where a signatory's signature goes. Zones carried by the
// document win over the organization's default template for the document type;
// a nil zone selects the fallback stamp.
func (o *Orchestrator) resolveZone(ctx context.Context, doc *models.Document, sig *models.Signatory) *models.SignZone {
	if sig.ZoneID == "" {
		return nil
	}

	if len(doc.SignZones) > 0 {
		if z, ok := models.FindZone(doc.SignZones, sig.ZoneID); ok {
			return &z
		}
		return nil
	}

	if o.templates == nil || doc.Type == "" {
		return nil
	}

	zones, err := o.templates.DefaultSignZones(ctx, doc.OrgID, doc.Type)
	if err != nil {
		log.Warn().Err(err).
			Str("org_id", doc.OrgID.String()).
			Str("doc_type", doc.Type).
			Msg("Failed to load template sign zones, using fallback")
		return nil
	}
	if z, ok := models.FindZone(zones, sig.ZoneID); ok {
		return &z
	}
	return nil
}
