package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gartstein/onboard/internal/onboarding/auth"
	"github.com/gartstein/onboard/internal/onboarding/controller"
	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"github.com/gartstein/onboard/internal/onboarding/validation"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

// VendorController defines the vendor operations the HTTP API invokes.
type VendorController interface {
	CreateVendor(ctx context.Context, p *models.Principal, in *models.NewVendor, verified, business *models.Photo) (*controller.CreateResult, error)
	ListMyVendors(ctx context.Context, p *models.Principal, status models.VendorStatus) ([]models.Vendor, error)
	ListPendingVendors(ctx context.Context, salespersonEmail string) ([]models.Vendor, error)
	ListAllVendors(ctx context.Context, salespersonEmail string) ([]models.Vendor, error)
	GroupedVendors(ctx context.Context, scope controller.Scope) ([]models.SalespersonGroup, error)
	Salespeople(ctx context.Context) ([]string, error)
	Approve(ctx context.Context, approver *models.Principal, id uuid.UUID, count int, notes string) (*models.Vendor, error)
	Reject(ctx context.Context, approver *models.Principal, id uuid.UUID, reason, notes string) (*models.Vendor, error)
}

type RoleController interface {
	RequireAdmin(ctx context.Context, p *models.Principal) error
	Set(ctx context.Context, userID string, role models.Role, email string) (*models.UserRole, error)
	List(ctx context.Context) ([]models.UserRole, error)
}

type EarningsController interface {
	Summary(ctx context.Context, p *models.Principal) (*models.EarningsSummary, error)
}

type SessionController interface {
	Resolve(ctx context.Context, p *models.Principal) (*controller.Session, error)
	SignOut(ctx context.Context, p *models.Principal) error
}

type CategoryController interface {
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, name, description string) (*models.Category, error)
}

// Services bundles the controllers behind the API.
type Services struct {
	Vendors    VendorController
	Roles      RoleController
	Earnings   EarningsController
	Sessions   SessionController
	Categories CategoryController
}

// API serves the onboarding JSON endpoints.
type API struct {
	svc           Services
	maxPhotoBytes int64
	logger        *zap.Logger
}

// NewAPI constructs the API. maxPhotoBytes bounds each uploaded photo.
func NewAPI(svc Services, maxPhotoBytes int64, logger *zap.Logger) *API {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = validation.DefaultMaxPhotoBytes
	}
	return &API{svc: svc, maxPhotoBytes: maxPhotoBytes, logger: logger.Named("http_handler")}
}

type route struct {
	method  string
	pattern string
	handler runtime.HandlerFunc
}

func (a *API) routes() []route {
	return []route{
		{http.MethodGet, "/v1/session", a.getSession},
		{http.MethodPost, "/v1/session/sign-out", a.signOut},
		{http.MethodGet, "/v1/earnings", a.getEarnings},
		{http.MethodGet, "/v1/vendors", a.listMyVendors},
		{http.MethodPost, "/v1/vendors", a.createVendor},
		{http.MethodGet, "/v1/categories", a.listCategories},
		{http.MethodPost, "/v1/admin/categories", a.admin(a.createCategory)},
		{http.MethodGet, "/v1/admin/vendors", a.admin(a.listAllVendors)},
		{http.MethodGet, "/v1/admin/vendors/pending", a.admin(a.listPendingVendors)},
		{http.MethodGet, "/v1/admin/vendors/grouped", a.admin(a.groupedVendors)},
		{http.MethodGet, "/v1/admin/salespeople", a.admin(a.listSalespeople)},
		{http.MethodPost, "/v1/admin/vendors/{id}/approve", a.admin(a.approveVendor)},
		{http.MethodPost, "/v1/admin/vendors/{id}/reject", a.admin(a.rejectVendor)},
		{http.MethodGet, "/v1/admin/roles", a.admin(a.listRoles)},
		{http.MethodPut, "/v1/admin/roles/{user_id}", a.admin(a.setRole)},
	}
}

// Register adds every API route to mux.
func (a *API) Register(mux *runtime.ServeMux) error {
	for _, rt := range a.routes() {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return fmt.Errorf("register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return nil
}

// admin requires an authenticated administrator before calling next.
func (a *API) admin(next runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		p, _ := auth.PrincipalFromContext(r.Context())
		if err := a.svc.Roles.RequireAdmin(r.Context(), p); err != nil {
			a.fail(w, r, err)
			return
		}
		next(w, r, params)
	}
}

// principal returns the caller or writes a 401.
func (a *API) principal(w http.ResponseWriter, r *http.Request) (*models.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		a.fail(w, r, e.ErrUnauthenticated)
		return nil, false
	}
	return p, true
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	p, _ := auth.PrincipalFromContext(r.Context())
	session, err := a.svc.Sessions.Resolve(r.Context(), p)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) signOut(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.svc.Sessions.SignOut(r.Context(), p); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getEarnings(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	summary, err := a.svc.Earnings.Summary(r.Context(), p)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) listMyVendors(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	status := models.VendorStatus(r.URL.Query().Get("status"))
	if status == "all" {
		status = ""
	}
	vendors, err := a.svc.Vendors.ListMyVendors(r.Context(), p, status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendorsOrEmpty(vendors))
}

func (a *API) createVendor(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}

	var (
		in                 *models.NewVendor
		verified, business *models.Photo
		err                error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		in, verified, business, err = a.parseVendorForm(w, r)
	} else {
		in = &models.NewVendor{}
		err = decodeJSON(w, r, in, 1<<20)
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}

	result, err := a.svc.Vendors.CreateVendor(r.Context(), p, in, verified, business)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// maxFormFieldBytes bounds each non-file value of the add-vendor form.
const maxFormFieldBytes = 64 << 10

// photoFields maps the form's file fields to their photo kinds.
var photoFields = map[string]models.PhotoKind{
	validation.FieldVerifiedPhoto: models.VerifiedPhoto,
	validation.FieldBusinessPhoto: models.BusinessPhoto,
}

// parseVendorForm streams the add-vendor form part by part, so nothing is
// spooled to disk. Each photo keeps at most maxPhotoBytes+1 bytes in memory
// and the rest is only counted, which lets validation report oversized
// photos per field. If the body cap is hit inside a photo, that photo and
// any oversized photo before it are reported the same way.
func (a *API) parseVendorForm(w http.ResponseWriter, r *http.Request) (*models.NewVendor, *models.Photo, *models.Photo, error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.formLimit())
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: malformed form: %v", e.ErrInvalidInput, err)
	}

	values := map[string]string{}
	photos := map[string]*models.Photo{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, a.formError(err, photos, "")
		}

		name := part.FormName()
		if _, isPhoto := photoFields[name]; isPhoto && part.FileName() != "" {
			if _, seen := photos[name]; !seen {
				photo, err := a.readPhoto(part)
				if err != nil {
					_ = part.Close()
					return nil, nil, nil, a.formError(err, photos, name)
				}
				photos[name] = photo
			}
		} else if _, seen := values[name]; !seen && name != "" {
			data, err := io.ReadAll(io.LimitReader(part, maxFormFieldBytes))
			if err != nil {
				_ = part.Close()
				return nil, nil, nil, a.formError(err, photos, "")
			}
			values[name] = string(data)
		}
		_ = part.Close()
	}

	in := &models.NewVendor{
		Name:        values[validation.FieldName],
		CategoryID:  values[validation.FieldType],
		PhoneNumber: values[validation.FieldPhone],
		Address:     values[validation.FieldAddress],
	}
	count, err := validation.ParseCount(validation.FieldListingCount, values[validation.FieldListingCount])
	if err != nil {
		return nil, nil, nil, err
	}
	in.ListingCount = count
	return in, photos[validation.FieldVerifiedPhoto], photos[validation.FieldBusinessPhoto], nil
}

// formLimit caps the whole multipart body.
func (a *API) formLimit() int64 {
	return 4*(a.maxPhotoBytes+1) + 1<<20
}

// readPhoto buffers up to maxPhotoBytes+1 bytes of part and counts the rest.
func (a *API) readPhoto(part *multipart.Part) (*models.Photo, error) {
	data, err := io.ReadAll(io.LimitReader(part, a.maxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	rest, err := io.Copy(io.Discard, part)
	if err != nil {
		return nil, err
	}
	return &models.Photo{
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Size:        int64(len(data)) + rest,
		Data:        data,
	}, nil
}

// formError converts a read failure into a response error. Hitting the body
// cap while reading photo field current, or with oversized photos already
// read, becomes a per-field validation error.
func (a *API) formError(err error, photos map[string]*models.Photo, current string) error {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: malformed form: %v", e.ErrInvalidInput, err)
	}

	var verr e.ValidationError
	for field, kind := range photoFields {
		p, read := photos[field]
		if field == current || (read && p.Size > a.maxPhotoBytes) {
			verr.Add(field, validation.PhotoTooLargeMessage(kind, a.maxPhotoBytes))
		}
	}
	if len(verr.Fields) == 0 {
		return e.NewStoreError(e.KindTooLarge, "read form", err)
	}
	return &verr
}

func (a *API) listCategories(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if _, ok := a.principal(w, r); !ok {
		return
	}
	categories, err := a.svc.Categories.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) createCategory(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req, 64<<10); err != nil {
		a.fail(w, r, err)
		return
	}
	category, err := a.svc.Categories.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (a *API) listAllVendors(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	vendors, err := a.svc.Vendors.ListAllVendors(r.Context(), salespersonFilter(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendorsOrEmpty(vendors))
}

func (a *API) listPendingVendors(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	vendors, err := a.svc.Vendors.ListPendingVendors(r.Context(), salespersonFilter(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendorsOrEmpty(vendors))
}

func (a *API) groupedVendors(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	groups, err := a.svc.Vendors.GroupedVendors(r.Context(), controller.Scope(r.URL.Query().Get("scope")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (a *API) listSalespeople(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	emails, err := a.svc.Vendors.Salespeople(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emails)
}

type approveRequest struct {
	ApprovedListingCount json.Number `json:"approved_listing_count"`
	AdminNotes           string      `json:"admin_notes"`
}

func (a *API) approveVendor(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := uuid.Parse(params["id"])
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: invalid vendor ID", e.ErrInvalidInput))
		return
	}
	var req approveRequest
	if err := decodeJSON(w, r, &req, 64<<10); err != nil {
		a.fail(w, r, err)
		return
	}
	count, err := validation.ParseCount("approved_listing_count", req.ApprovedListingCount.String())
	if err != nil {
		a.fail(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	vendor, err := a.svc.Vendors.Approve(r.Context(), p, id, count, req.AdminNotes)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendor)
}

type rejectRequest struct {
	RejectionReason string `json:"rejection_reason"`
	AdminNotes      string `json:"admin_notes"`
}

func (a *API) rejectVendor(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := uuid.Parse(params["id"])
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: invalid vendor ID", e.ErrInvalidInput))
		return
	}
	var req rejectRequest
	if err := decodeJSON(w, r, &req, 64<<10); err != nil {
		a.fail(w, r, err)
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	vendor, err := a.svc.Vendors.Reject(r.Context(), p, id, req.RejectionReason, req.AdminNotes)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendor)
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	roles, err := a.svc.Roles.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if roles == nil {
		roles = []models.UserRole{}
	}
	writeJSON(w, http.StatusOK, roles)
}

type roleRequest struct {
	Role  models.Role `json:"role"`
	Email string      `json:"email"`
}

func (a *API) setRole(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req roleRequest
	if err := decodeJSON(w, r, &req, 64<<10); err != nil {
		a.fail(w, r, err)
		return
	}
	row, err := a.svc.Roles.Set(r.Context(), params["user_id"], req.Role, req.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// fail logs err at a level matching its status and writes the error body.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapServiceError(err)
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", fields...)
	} else {
		a.logger.Debug("request rejected", fields...)
	}
	writeJSON(w, status, body)
}

func salespersonFilter(r *http.Request) string {
	email := strings.TrimSpace(r.URL.Query().Get("salesperson"))
	if email == "all" {
		return ""
	}
	return email
}

func vendorsOrEmpty(v []models.Vendor) []models.Vendor {
	if v == nil {
		return []models.Vendor{}
	}
	return v
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, limit int64) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return e.NewStoreError(e.KindTooLarge, "read body", err)
		}
		return fmt.Errorf("%w: malformed JSON body: %v", e.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
