package handler

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vendor-vault/internal/config"
	"github.com/iliyamo/vendor-vault/internal/middleware"
	"github.com/iliyamo/vendor-vault/internal/model"
	"github.com/iliyamo/vendor-vault/internal/queue"
	"github.com/iliyamo/vendor-vault/internal/repository"
)

// VendorStore is the slice of *repository.VendorRepo the vendor endpoints use.
type VendorStore interface {
	Create(ctx context.Context, v *model.Vendor) error
	GetByID(ctx context.Context, id string) (*model.Vendor, error)
	Update(ctx context.Context, id string, set []repository.Assignment) (*model.Vendor, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f repository.VendorFilter) ([]model.Vendor, int64, error)
	Metrics(ctx context.Context) (model.VendorMetrics, error)
}

var (
	vendorStatuses = []string{model.VendorActive, model.VendorInactive, model.VendorPending}
	riskLevels     = []string{model.RiskLow, model.RiskMedium, model.RiskHigh}
)

// VendorHandler serves /api/vendors.
type VendorHandler struct {
	Cfg     config.Config
	Vendors VendorStore
	Events  EventPublisher
}

func NewVendorHandler(cfg config.Config, v VendorStore, ev EventPublisher) *VendorHandler {
	return &VendorHandler{Cfg: cfg, Vendors: v, Events: ev}
}

// vendorReq carries create and update bodies.  Absent fields stay nil so an
// update only touches what the client sent.
type vendorReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Website     *string `json:"website"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Zip         *string `json:"zip"`
	Country     *string `json:"country"`
	Industry    *string `json:"industry"`
	Category    *string `json:"category"`
	TaxID       *string `json:"tax_id"`
	Status      *string `json:"status"`
	RiskLevel   *string `json:"risk_level"`
}

// assignments returns the fields present in the body in column order.
func (r vendorReq) assignments() []repository.Assignment {
	var out []repository.Assignment
	add := func(col string, v *string) {
		if v != nil {
			out = append(out, repository.Assignment{Column: col, Value: strings.TrimSpace(*v)})
		}
	}
	add("name", r.Name)
	add("description", r.Description)
	add("website", r.Website)
	add("email", r.Email)
	add("phone", r.Phone)
	add("address", r.Address)
	add("city", r.City)
	add("state", r.State)
	add("zip", r.Zip)
	add("country", r.Country)
	add("industry", r.Industry)
	add("category", r.Category)
	add("tax_id", r.TaxID)
	add("status", r.Status)
	add("risk_level", r.RiskLevel)
	return out
}

func (r vendorReq) validate(creating bool) []fieldError {
	var errs []fieldError
	if creating && (r.Name == nil || strings.TrimSpace(*r.Name) == "") {
		errs = append(errs, fieldError{Field: "name", Message: "vendor name is required"})
	}
	if !creating && r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errs = append(errs, fieldError{Field: "name", Message: "vendor name cannot be empty"})
	}
	if r.Email != nil && *r.Email != "" && !validEmail(strings.TrimSpace(*r.Email)) {
		errs = append(errs, fieldError{Field: "email", Message: "please include a valid email"})
	}
	if r.Status != nil && !slices.Contains(vendorStatuses, *r.Status) {
		errs = append(errs, fieldError{Field: "status", Message: "status must be one of active, inactive, pending"})
	}
	if r.RiskLevel != nil && !slices.Contains(riskLevels, *r.RiskLevel) {
		errs = append(errs, fieldError{Field: "risk_level", Message: "risk_level must be one of low, medium, high"})
	}
	return errs
}

func (r vendorReq) vendor() *model.Vendor {
	v := &model.Vendor{}
	for _, a := range r.assignments() {
		s := a.Value.(string)
		switch a.Column {
		case "name":
			v.Name = s
		case "description":
			v.Description = s
		case "website":
			v.Website = s
		case "email":
			v.Email = s
		case "phone":
			v.Phone = s
		case "address":
			v.Address = s
		case "city":
			v.City = s
		case "state":
			v.State = s
		case "zip":
			v.Zip = s
		case "country":
			v.Country = s
		case "industry":
			v.Industry = s
		case "category":
			v.Category = s
		case "tax_id":
			v.TaxID = s
		case "status":
			v.Status = s
		case "risk_level":
			v.RiskLevel = s
		}
	}
	return v
}

// List handles GET /api/vendors.
func (h *VendorHandler) List(c echo.Context) error {
	page, limit := pageParams(c.QueryParam("page"), c.QueryParam("limit"))
	f := repository.VendorFilter{
		Name:      strings.TrimSpace(c.QueryParam("name")),
		Status:    c.QueryParam("status"),
		Category:  c.QueryParam("category"),
		RiskLevel: c.QueryParam("risk_level"),
		Industry:  c.QueryParam("industry"),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
		Page:      page,
		Limit:     limit,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	vendors, total, err := h.Vendors.List(ctx, f)
	if err != nil {
		return serverError(c, h.Cfg.IsDevelopment(), err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"vendors":    vendors,
		"pagination": model.NewPagination(page, limit, total),
	})
}

// Metrics handles GET /api/vendors/metrics.
func (h *VendorHandler) Metrics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	m, err := h.Vendors.Metrics(ctx)
	if err != nil {
		return serverError(c, h.Cfg.IsDevelopment(), err)
	}
	return c.JSON(http.StatusOK, m)
}

// Get handles GET /api/vendors/:id.
func (h *VendorHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	v, err := h.Vendors.GetByID(ctx, c.Param("id"))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Create handles POST /api/vendors.
func (h *VendorHandler) Create(c echo.Context) error {
	var req vendorReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if errs := req.validate(true); len(errs) > 0 {
		return validationFailed(c, errs)
	}
	claims, _ := middleware.ClaimsFrom(c)

	v := req.vendor()
	if claims != nil {
		v.CreatedBy = claims.UserID
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Vendors.Create(ctx, v); err != nil {
		return serverError(c, h.Cfg.IsDevelopment(), err)
	}
	h.changed(c, v.ID, "created")
	return c.JSON(http.StatusCreated, v)
}

// Update handles PUT /api/vendors/:id.
func (h *VendorHandler) Update(c echo.Context) error {
	var req vendorReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if errs := req.validate(false); len(errs) > 0 {
		return validationFailed(c, errs)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	id := c.Param("id")
	v, err := h.Vendors.Update(ctx, id, req.assignments())
	if err != nil {
		return h.storeError(c, err)
	}
	h.changed(c, id, "updated")
	return c.JSON(http.StatusOK, v)
}

// Delete handles DELETE /api/vendors/:id (admin only).
func (h *VendorHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	id := c.Param("id")
	if err := h.Vendors.Delete(ctx, id); err != nil {
		return h.storeError(c, err)
	}
	h.changed(c, id, "deleted")
	return c.JSON(http.StatusOK, echo.Map{"message": "vendor removed"})
}

func (h *VendorHandler) storeError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrVendorNotFound) {
		return notFound(c, "vendor not found")
	}
	return serverError(c, h.Cfg.IsDevelopment(), err)
}

func (h *VendorHandler) changed(c echo.Context, id, action string) {
	var actor string
	if claims, ok := middleware.ClaimsFrom(c); ok {
		actor = claims.UserID
	}
	publishEvent(c, h.Events, queue.EventVendorChanged, queue.VendorChangedEvent{
		VendorID: id,
		Action:   action,
		ActorID:  actor,
		At:       time.Now().UTC(),
	})
}
