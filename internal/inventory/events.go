package inventory

import (
	"strconv"
	"time"

	"github.com/odyssey-erp/labstock/internal/shared"
)

// auditRecord describes a posted document for the audit trail.
func auditRecord(p Posting, meta map[string]any) shared.AuditLog {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["warehouse_id"] = p.WarehouseID
	meta["reference"] = p.Reference
	meta["saga_id"] = p.SagaID
	return shared.AuditLog{
		Action:   "inventory.post_" + string(p.Document),
		Entity:   string(p.Document),
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta:     meta,
		At:       time.Now().UTC(),
	}
}
