// Package handler содержит HTTP-обработчики API сервиса управления жилым комплексом.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/livewell/tenancy-system/internal/middleware"
	"github.com/livewell/tenancy-system/internal/model"
	"github.com/livewell/tenancy-system/internal/repository"
	"github.com/livewell/tenancy-system/internal/service"
	"github.com/livewell/tenancy-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	ListApartments(ctx context.Context, page, limit int, minRent, maxRent int64) (*model.ApartmentPage, error)
	ListFeaturedApartments(ctx context.Context) ([]model.Apartment, error)
	CreateAgreement(ctx context.Context, a *model.Agreement) (*model.Agreement, error)
	GetAgreementByEmail(ctx context.Context, email string) (*model.Agreement, error)
	ListAgreements(ctx context.Context) ([]model.Agreement, error)
	ListPendingAgreements(ctx context.Context) ([]model.Agreement, error)
	AcceptAgreement(ctx context.Context, id int64) error
	RejectAgreement(ctx context.Context, id int64) error
	ValidateCoupon(ctx context.Context, code string) (*model.Coupon, error)
	VerifyCoupon(ctx context.Context, code string, rent float64) (*model.Coupon, float64, error)
	ListCoupons(ctx context.Context) ([]model.Coupon, error)
	CreateCoupon(ctx context.Context, c *model.Coupon) (int64, error)
	SetCouponActive(ctx context.Context, id int64, active bool) error
	DeleteCoupon(ctx context.Context, id int64) error
	RecordPayment(ctx context.Context, p *model.Payment) (int64, error)
	ListPayments(ctx context.Context, email string) ([]model.Payment, error)
	CreatePaymentIntent(ctx context.Context, amount float64) (string, error)
	EnsureUser(ctx context.Context, email, displayName, photoURL string) (bool, error)
	GetRole(ctx context.Context, email string) (model.Role, error)
	ListMembers(ctx context.Context) ([]model.User, error)
	RemoveMembership(ctx context.Context, id int64) error
	AdminStats(ctx context.Context, adminEmail string) (*model.AdminStats, error)
	PostAnnouncement(ctx context.Context, title, description string) (int64, error)
	ListAnnouncements(ctx context.Context) ([]model.Announcement, error)
}

// Handler реализует HTTP-обработчики API сервиса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Заголовки уже отправлены, менять статус поздно.
		return
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

// Live отвечает на проверку доступности сервиса.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Building Management Server is running"))
}

type apartmentResponse struct {
	ID       int64  `json:"id"`
	Floor    int    `json:"floor"`
	Block    string `json:"block"`
	Number   string `json:"apartmentNo"`
	Rent     int64  `json:"rent"`
	Featured bool   `json:"featured"`
}

func toApartmentResponses(items []model.Apartment) []apartmentResponse {
	res := make([]apartmentResponse, 0, len(items))
	for _, a := range items {
		res = append(res, apartmentResponse{
			ID:       a.ID,
			Floor:    a.Floor,
			Block:    a.Block,
			Number:   a.Number,
			Rent:     a.Rent,
			Featured: a.Featured,
		})
	}
	return res
}

type apartmentsPageResponse struct {
	Apartments []apartmentResponse `json:"apartments"`
	Total      int64               `json:"total"`
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

// ListApartments возвращает страницу каталога квартир с фильтром по аренде.
// Невалидные параметры запроса заменяются значениями по умолчанию.
func (h *Handler) ListApartments(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page")
	limit := queryInt(r, "limit")
	minRent := int64(queryInt(r, "min"))
	maxRent := int64(queryInt(r, "max"))

	pageData, err := h.service.ListApartments(r.Context(), page, limit, minRent, maxRent)
	if err != nil {
		h.logger.Error("list apartments error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, apartmentsPageResponse{
		Apartments: toApartmentResponses(pageData.Items),
		Total:      pageData.Total,
	})
}

// ListFeaturedApartments возвращает квартиры с признаком featured.
func (h *Handler) ListFeaturedApartments(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListFeaturedApartments(r.Context())
	if err != nil {
		h.logger.Error("list featured apartments error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toApartmentResponses(items))
}

type createAgreementRequest struct {
	ApartmentID int64  `json:"apartmentId"`
	Rent        int64  `json:"rent"`
	UserName    string `json:"userName"`
}

type agreementResponse struct {
	ID            int64  `json:"id"`
	UserEmail     string `json:"userEmail"`
	UserName      string `json:"userName,omitempty"`
	ApartmentID   int64  `json:"apartmentId"`
	Rent          int64  `json:"rent"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
	AgreementDate string `json:"agreementDate,omitempty"`
}

func toAgreementResponse(a *model.Agreement) agreementResponse {
	res := agreementResponse{
		ID:          a.ID,
		UserEmail:   a.UserEmail,
		UserName:    a.UserName,
		ApartmentID: a.ApartmentID,
		Rent:        a.Rent,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
	if a.AgreementDate != nil {
		res.AgreementDate = a.AgreementDate.Format(time.RFC3339)
	}
	return res
}

// CreateAgreement создаёт заявку на аренду от имени текущего пользователя.
func (h *Handler) CreateAgreement(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.ApartmentID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	a := &model.Agreement{
		UserEmail:   email,
		UserName:    req.UserName,
		ApartmentID: req.ApartmentID,
		Rent:        req.Rent,
	}

	created, err := h.service.CreateAgreement(r.Context(), a)
	if err != nil {
		if errors.Is(err, repository.ErrAgreementExists) {
			writeJSON(w, http.StatusConflict, messageResponse{Message: "User already has an agreement"})
			return
		}
		h.logger.Error("create agreement error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, toAgreementResponse(created))
}

// GetAgreement возвращает заявку пользователя по email из пути.
func (h *Handler) GetAgreement(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	a, err := h.service.GetAgreementByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrAgreementNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get agreement error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toAgreementResponse(a))
}

func (h *Handler) writeAgreements(w http.ResponseWriter, agreements []model.Agreement) {
	res := make([]agreementResponse, 0, len(agreements))
	for i := range agreements {
		res = append(res, toAgreementResponse(&agreements[i]))
	}
	writeJSON(w, http.StatusOK, res)
}

// ListAgreements возвращает все заявки.
func (h *Handler) ListAgreements(w http.ResponseWriter, r *http.Request) {
	agreements, err := h.service.ListAgreements(r.Context())
	if err != nil {
		h.logger.Error("list agreements error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeAgreements(w, agreements)
}

// ListPendingAgreements возвращает заявки, ожидающие решения.
func (h *Handler) ListPendingAgreements(w http.ResponseWriter, r *http.Request) {
	agreements, err := h.service.ListPendingAgreements(r.Context())
	if err != nil {
		h.logger.Error("list pending agreements error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeAgreements(w, agreements)
}

func agreementID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// AcceptAgreement принимает заявку и повышает роль пользователя до member.
func (h *Handler) AcceptAgreement(w http.ResponseWriter, r *http.Request) {
	id, err := agreementID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.AcceptAgreement(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrAgreementNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("accept agreement error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Agreement accepted and user role updated"})
}

// RejectAgreement отклоняет заявку, роль пользователя не меняется.
func (h *Handler) RejectAgreement(w http.ResponseWriter, r *http.Request) {
	id, err := agreementID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RejectAgreement(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrAgreementNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("reject agreement error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Agreement rejected"})
}

type validateCouponRequest struct {
	CouponCode string `json:"couponCode"`
}

type validateCouponResponse struct {
	Valid              bool    `json:"valid"`
	DiscountPercentage float64 `json:"discountPercentage,omitempty"`
	Description        *string `json:"description,omitempty"`
	Message            string  `json:"message,omitempty"`
}

// ValidateCoupon проверяет код купона без учёта регистра.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CouponCode == "" {
		writeJSON(w, http.StatusBadRequest, validateCouponResponse{Message: "Coupon code is required"})
		return
	}

	c, err := h.service.ValidateCoupon(r.Context(), req.CouponCode)
	if err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			writeJSON(w, http.StatusNotFound, validateCouponResponse{Message: "Invalid or inactive coupon"})
			return
		}
		h.logger.Error("validate coupon error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, validateCouponResponse{
		Valid:              true,
		DiscountPercentage: c.Discount,
		Description:        &c.Description,
	})
}

type verifyCouponRequest struct {
	CouponCode string   `json:"couponCode"`
	Rent       *float64 `json:"rent"`
}

type verifyCouponResponse struct {
	Valid              bool    `json:"valid"`
	DiscountPercentage float64 `json:"discountPercentage,omitempty"`
	DiscountedAmount   float64 `json:"discountedAmount,omitempty"`
	Message            string  `json:"message,omitempty"`
}

// VerifyCoupon проверяет купон и возвращает сумму аренды после скидки.
func (h *Handler) VerifyCoupon(w http.ResponseWriter, r *http.Request) {
	var req verifyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CouponCode == "" || req.Rent == nil {
		writeJSON(w, http.StatusBadRequest, verifyCouponResponse{Message: "Coupon code and rent are required"})
		return
	}

	c, discounted, err := h.service.VerifyCoupon(r.Context(), req.CouponCode, *req.Rent)
	if err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			writeJSON(w, http.StatusNotFound, verifyCouponResponse{Message: "Invalid or inactive coupon"})
			return
		}
		h.logger.Error("verify coupon error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, verifyCouponResponse{
		Valid:              true,
		DiscountPercentage: c.Discount,
		DiscountedAmount:   discounted,
	})
}

type couponResponse struct {
	ID          int64   `json:"id"`
	Code        string  `json:"code"`
	Discount    float64 `json:"discount"`
	Description string  `json:"description"`
	Active      bool    `json:"active"`
}

// ListCoupons возвращает все купоны.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.service.ListCoupons(r.Context())
	if err != nil {
		h.logger.Error("list coupons error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	res := make([]couponResponse, 0, len(coupons))
	for _, c := range coupons {
		res = append(res, couponResponse{
			ID:          c.ID,
			Code:        c.Code,
			Discount:    c.Discount,
			Description: c.Description,
			Active:      c.Active,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

type createCouponRequest struct {
	Code               string   `json:"code"`
	DiscountPercentage *float64 `json:"discountPercentage"`
	Description        string   `json:"description"`
	Active             *bool    `json:"active"`
}

// CreateCoupon сохраняет новый купон. Признак active по умолчанию включён.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Code == "" || req.DiscountPercentage == nil || *req.DiscountPercentage <= 0 {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid coupon data"})
		return
	}

	c := &model.Coupon{
		Code:        req.Code,
		Discount:    *req.DiscountPercentage,
		Description: req.Description,
		Active:      req.Active == nil || *req.Active,
	}

	id, err := h.service.CreateCoupon(r.Context(), c)
	if err != nil {
		h.logger.Error("create coupon error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	c.ID = id
	writeJSON(w, http.StatusCreated, couponResponse{
		ID:          c.ID,
		Code:        c.Code,
		Discount:    c.Discount,
		Description: c.Description,
		Active:      c.Active,
	})
}

type setCouponActiveRequest struct {
	Active *bool `json:"active"`
}

// SetCouponActive включает либо выключает купон.
func (h *Handler) SetCouponActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req setCouponActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetCouponActive(r.Context(), id, *req.Active); err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("set coupon active error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Coupon updated"})
}

// DeleteCoupon удаляет купон.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteCoupon(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete coupon error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Coupon deleted"})
}

type recordPaymentRequest struct {
	AgreementID int64    `json:"agreementId"`
	Month       string   `json:"month"`
	Rent        int64    `json:"rent"`
	FinalAmount *float64 `json:"finalAmount"`
}

type recordPaymentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

// RecordPayment фиксирует платёж текущего пользователя за расчётный месяц.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.AgreementID <= 0 || !validation.IsValidMonth(req.Month) || req.FinalAmount == nil {
		writeJSON(w, http.StatusBadRequest, recordPaymentResponse{Message: "Invalid payment data"})
		return
	}

	p := &model.Payment{
		Email:       email,
		AgreementID: req.AgreementID,
		Month:       req.Month,
		Rent:        req.Rent,
		FinalAmount: *req.FinalAmount,
		Status:      model.PaymentStatusPaid,
	}

	id, err := h.service.RecordPayment(r.Context(), p)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			writeJSON(w, http.StatusConflict, recordPaymentResponse{Message: "Payment already recorded for this month"})
			return
		}
		h.logger.Error("record payment error", zap.Error(err), zap.String("email", email))
		writeJSON(w, http.StatusInternalServerError, recordPaymentResponse{Message: "Payment failed"})
		return
	}

	writeJSON(w, http.StatusCreated, recordPaymentResponse{
		Success: true,
		Message: "Payment recorded",
		ID:      id,
	})
}

type paymentResponse struct {
	ID          int64   `json:"id"`
	Email       string  `json:"email"`
	AgreementID int64   `json:"agreementId"`
	Month       string  `json:"month"`
	Rent        int64   `json:"rent"`
	FinalAmount float64 `json:"finalAmount"`
	Status      string  `json:"status"`
	Date        string  `json:"date"`
}

// ListPayments возвращает платежи пользователя. Запрошенный email должен
// совпадать с email аутентифицированного пользователя.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	authEmail, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if email != authEmail {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	payments, err := h.service.ListPayments(r.Context(), email)
	if err != nil {
		h.logger.Error("list payments error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	res := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		res = append(res, paymentResponse{
			ID:          p.ID,
			Email:       p.Email,
			AgreementID: p.AgreementID,
			Month:       p.Month,
			Rent:        p.Rent,
			FinalAmount: p.FinalAmount,
			Status:      p.Status,
			Date:        p.Date.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, res)
}

type paymentIntentRequest struct {
	Amount *float64 `json:"amount"`
}

type paymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// CreatePaymentIntent создаёт платёжное намерение у внешнего провайдера.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req paymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount == nil || *req.Amount <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	secret, err := h.service.CreatePaymentIntent(r.Context(), *req.Amount)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("create payment intent error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, paymentIntentResponse{ClientSecret: secret})
}

type ensureUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// EnsureUser создаёт запись пользователя при первом входе. Повторный вызов
// идемпотентен.
func (h *Handler) EnsureUser(w http.ResponseWriter, r *http.Request) {
	var req ensureUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	created, err := h.service.EnsureUser(r.Context(), req.Email, req.DisplayName, req.PhotoURL)
	if err != nil {
		h.logger.Error("ensure user error", zap.Error(err), zap.String("email", req.Email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if !created {
		writeJSON(w, http.StatusOK, messageResponse{Message: "User already exists"})
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{Message: "User created"})
}

type roleResponse struct {
	Role string `json:"role"`
}

// GetRoleByEmail возвращает роль пользователя по email из пути.
func (h *Handler) GetRoleByEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	role, err := h.service.GetRole(r.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get role error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, roleResponse{Role: string(role)})
}

type userResponse struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// ListMembers возвращает пользователей с ролью member.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context())
	if err != nil {
		h.logger.Error("list members error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	res := make([]userResponse, 0, len(members))
	for _, u := range members {
		res = append(res, userResponse{
			ID:          u.ID,
			Email:       u.Email,
			Role:        string(u.Role),
			DisplayName: u.DisplayName,
			PhotoURL:    u.PhotoURL,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

// RemoveMembership сбрасывает роль member обратно в user.
func (h *Handler) RemoveMembership(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RemoveMembership(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("remove membership error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Membership removed"})
}

// AdminStats возвращает сводную статистику для панели администратора.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	stats, err := h.service.AdminStats(r.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrNotAdmin) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("admin stats error", zap.Error(err), zap.String("email", email))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

type postAnnouncementRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type postAnnouncementResponse struct {
	Message    string `json:"message"`
	InsertedID int64  `json:"insertedId"`
}

// PostAnnouncement публикует объявление администрации.
func (h *Handler) PostAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req postAnnouncementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Title == "" || req.Description == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Title and description required"})
		return
	}

	id, err := h.service.PostAnnouncement(r.Context(), req.Title, req.Description)
	if err != nil {
		h.logger.Error("post announcement error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, postAnnouncementResponse{
		Message:    "Announcement posted",
		InsertedID: id,
	})
}

type announcementResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// ListAnnouncements возвращает объявления, новые первыми.
func (h *Handler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	announcements, err := h.service.ListAnnouncements(r.Context())
	if err != nil {
		h.logger.Error("list announcements error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	res := make([]announcementResponse, 0, len(announcements))
	for _, a := range announcements {
		res = append(res, announcementResponse{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Date:        a.Date.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, res)
}
