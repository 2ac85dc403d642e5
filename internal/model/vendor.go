package model

import "time"

// Vendor statuses and risk levels accepted by the API.
const (
	VendorActive   = "active"
	VendorInactive = "inactive"
	VendorPending  = "pending"

	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Vendor represents a row of the `vendors` table.  CreatedBy references the
// users.id of whoever created the record.
type Vendor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Website     string    `json:"website"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Zip         string    `json:"zip"`
	Country     string    `json:"country"`
	Industry    string    `json:"industry"`
	Category    string    `json:"category"`
	TaxID       string    `json:"tax_id"`
	Status      string    `json:"status"`
	RiskLevel   string    `json:"risk_level"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryCount is one row of the vendors-by-category breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// RiskCount is one row of the vendors-by-risk-level breakdown.
type RiskCount struct {
	RiskLevel string `json:"risk_level"`
	Count     int64  `json:"count"`
}

// VendorMetrics aggregates counts over the vendors table.
type VendorMetrics struct {
	TotalVendors       int64           `json:"totalVendors"`
	ActiveVendors      int64           `json:"activeVendors"`
	InactiveVendors    int64           `json:"inactiveVendors"`
	VendorsByCategory  []CategoryCount `json:"vendorsByCategory"`
	VendorsByRiskLevel []RiskCount     `json:"vendorsByRiskLevel"`
}
