package voucher

import (
	"strings"

	"github.com/google/uuid"
)

// Anomaly codes reported by lineage validation
const (
	AnomalyMissingOwner      = "missing_owner_reference"
	AnomalyMissingAllocation = "missing_allocation_reference"
	AnomalyMissingProduct    = "missing_product_reference"
)

// VoucherData is the lineage-relevant view of a voucher or of voucher issuance input
type VoucherData struct {
	OwnerID      string    `validate:"required" anomaly:"missing_owner_reference"`
	AllocationID uuid.UUID `validate:"required" anomaly:"missing_allocation_reference"`
	SkuRef       string    `validate:"required" anomaly:"missing_product_reference"`
}

// DataOf extracts the validation view of a voucher
func DataOf(v *Voucher) VoucherData {
	return VoucherData{
		OwnerID:      v.OwnerID,
		AllocationID: v.AllocationID,
		SkuRef:       v.SkuRef,
	}
}

// ValidationResult is the outcome of validating voucher data
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// QuarantineReason joins anomaly codes into a single attention reason
func QuarantineReason(codes []string) string {
	return strings.Join(codes, ",")
}

// ReasonCodes splits an attention reason back into anomaly codes
func ReasonCodes(reason string) []string {
	if reason == "" {
		return nil
	}
	return strings.Split(reason, ",")
}
