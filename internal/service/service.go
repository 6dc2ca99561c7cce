// Package service реализует бизнес-логику сервиса управления жилым комплексом.
package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/livewell/tenancy-system/internal/model"
	"github.com/livewell/tenancy-system/internal/payment"
	"github.com/livewell/tenancy-system/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 6
	// Верхняя граница аренды по умолчанию, как и отсутствие параметра max в запросе.
	defaultMaxRent = 999999
)

// ErrNotAdmin возвращается, когда статистику запрашивает не администратор.
var ErrNotAdmin = errors.New("caller is not an admin")

// ErrInvalidAmount возвращается при неположительной сумме платёжного намерения.
var ErrInvalidAmount = errors.New("amount must be positive")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	ListApartments(ctx context.Context, offset, limit int, minRent, maxRent int64) ([]model.Apartment, int64, error)
	ListFeaturedApartments(ctx context.Context) ([]model.Apartment, error)
	CreateAgreement(ctx context.Context, a *model.Agreement) (int64, error)
	GetAgreementByEmail(ctx context.Context, email string) (*model.Agreement, error)
	GetAgreementByID(ctx context.Context, id int64) (*model.Agreement, error)
	ListAgreements(ctx context.Context) ([]model.Agreement, error)
	ListPendingAgreements(ctx context.Context) ([]model.Agreement, error)
	MarkAgreementChecked(ctx context.Context, id int64, agreementDate *time.Time) error
	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	SetUserRoleByEmail(ctx context.Context, email string, role model.Role) error
	ListMembers(ctx context.Context) ([]model.User, error)
	DemoteMember(ctx context.Context, id int64) error
	GetActiveCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	ListCoupons(ctx context.Context) ([]model.Coupon, error)
	CreateCoupon(ctx context.Context, c *model.Coupon) (int64, error)
	SetCouponActive(ctx context.Context, id int64, active bool) error
	DeleteCoupon(ctx context.Context, id int64) error
	HasPaidPayment(ctx context.Context, agreementID int64, month string) (bool, error)
	CreatePayment(ctx context.Context, p *model.Payment) (int64, error)
	ListPaymentsByEmail(ctx context.Context, email string) ([]model.Payment, error)
	CreateAnnouncement(ctx context.Context, a *model.Announcement) (int64, error)
	ListAnnouncements(ctx context.Context) ([]model.Announcement, error)
	CountApartments(ctx context.Context) (int64, error)
	CountAgreementApartments(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CountUsersByRole(ctx context.Context, role model.Role) (int64, error)
}

// IntentCreator описывает контракт платёжного провайдера.
type IntentCreator interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string) (string, error)
}

// Service содержит бизнес-логику сервиса управления жилым комплексом.
type Service struct {
	repo          Repository
	paymentClient IntentCreator
	now           func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и платёжным клиентом.
func NewService(repo Repository, paymentClient *payment.Client) *Service {
	s := &Service{
		repo: repo,
		now:  time.Now,
	}
	if paymentClient != nil {
		s.paymentClient = paymentClient
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// ListApartments возвращает страницу каталога квартир с фильтром по аренде.
// Невалидные параметры заменяются значениями по умолчанию.
func (s *Service) ListApartments(ctx context.Context, page, limit int, minRent, maxRent int64) (*model.ApartmentPage, error) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if minRent < 0 {
		minRent = 0
	}
	if maxRent <= 0 {
		maxRent = defaultMaxRent
	}

	items, total, err := s.repo.ListApartments(ctx, (page-1)*limit, limit, minRent, maxRent)
	if err != nil {
		return nil, err
	}

	return &model.ApartmentPage{Items: items, Total: total}, nil
}

// ListFeaturedApartments возвращает квартиры с признаком featured.
func (s *Service) ListFeaturedApartments(ctx context.Context) ([]model.Apartment, error) {
	return s.repo.ListFeaturedApartments(ctx)
}

// CreateAgreement создаёт заявку на аренду и возвращает сохранённую запись.
// У одного email может быть только одна заявка.
func (s *Service) CreateAgreement(ctx context.Context, a *model.Agreement) (*model.Agreement, error) {
	_, err := s.repo.GetAgreementByEmail(ctx, a.UserEmail)
	if err == nil {
		return nil, repository.ErrAgreementExists
	}
	if !errors.Is(err, repository.ErrAgreementNotFound) {
		return nil, err
	}

	a.Status = model.AgreementStatusPending
	a.CreatedAt = s.now()

	id, err := s.repo.CreateAgreement(ctx, a)
	if err != nil {
		return nil, err
	}

	a.ID = id
	return a, nil
}

// GetAgreementByEmail возвращает заявку пользователя.
func (s *Service) GetAgreementByEmail(ctx context.Context, email string) (*model.Agreement, error) {
	return s.repo.GetAgreementByEmail(ctx, email)
}

// ListAgreements возвращает все заявки.
func (s *Service) ListAgreements(ctx context.Context) ([]model.Agreement, error) {
	return s.repo.ListAgreements(ctx)
}

// ListPendingAgreements возвращает заявки, ожидающие решения.
func (s *Service) ListPendingAgreements(ctx context.Context) ([]model.Agreement, error) {
	return s.repo.ListPendingAgreements(ctx)
}

// AcceptAgreement принимает заявку: переводит её в статус checked, проставляет
// дату соглашения и повышает роль пользователя до member. Обновление статуса и
// обновление роли — две независимые записи без общей транзакции.
func (s *Service) AcceptAgreement(ctx context.Context, id int64) error {
	a, err := s.repo.GetAgreementByID(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	if err := s.repo.MarkAgreementChecked(ctx, id, &now); err != nil {
		return err
	}

	// Если записи пользователя ещё нет, обновление роли не затронет ни одной строки.
	return s.repo.SetUserRoleByEmail(ctx, a.UserEmail, model.RoleMember)
}

// RejectAgreement отклоняет заявку: переводит её в статус checked, роль не меняется.
func (s *Service) RejectAgreement(ctx context.Context, id int64) error {
	if _, err := s.repo.GetAgreementByID(ctx, id); err != nil {
		return err
	}
	return s.repo.MarkAgreementChecked(ctx, id, nil)
}

// ValidateCoupon ищет активный купон по коду без учёта регистра.
func (s *Service) ValidateCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	return s.repo.GetActiveCouponByCode(ctx, strings.ToUpper(code))
}

// VerifyCoupon проверяет купон и возвращает его вместе с суммой аренды после скидки.
func (s *Service) VerifyCoupon(ctx context.Context, code string, rent float64) (*model.Coupon, float64, error) {
	c, err := s.ValidateCoupon(ctx, code)
	if err != nil {
		return nil, 0, err
	}

	discounted := rent - rent*c.Discount/100
	return c, discounted, nil
}

// ListCoupons возвращает все купоны.
func (s *Service) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	return s.repo.ListCoupons(ctx)
}

// CreateCoupon сохраняет купон, приводя код к верхнему регистру.
func (s *Service) CreateCoupon(ctx context.Context, c *model.Coupon) (int64, error) {
	c.Code = strings.ToUpper(c.Code)
	return s.repo.CreateCoupon(ctx, c)
}

// SetCouponActive включает либо выключает купон.
func (s *Service) SetCouponActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetCouponActive(ctx, id, active)
}

// DeleteCoupon удаляет купон.
func (s *Service) DeleteCoupon(ctx context.Context, id int64) error {
	return s.repo.DeleteCoupon(ctx, id)
}

// RecordPayment фиксирует платёж. Повторный платёж по той же заявке за тот же
// месяц отклоняется. Сумма не пересчитывается: сервис доверяет данным вызывающего.
func (s *Service) RecordPayment(ctx context.Context, p *model.Payment) (int64, error) {
	exists, err := s.repo.HasPaidPayment(ctx, p.AgreementID, p.Month)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, repository.ErrDuplicatePayment
	}

	if p.Date.IsZero() {
		p.Date = s.now()
	}
	return s.repo.CreatePayment(ctx, p)
}

// ListPayments возвращает платежи пользователя, новые первыми.
func (s *Service) ListPayments(ctx context.Context, email string) ([]model.Payment, error) {
	return s.repo.ListPaymentsByEmail(ctx, email)
}

// CreatePaymentIntent создаёт платёжное намерение у внешнего провайдера.
// Сумма принимается в основных единицах валюты и конвертируется в минорные.
func (s *Service) CreatePaymentIntent(ctx context.Context, amount float64) (string, error) {
	amountMinor := int64(math.Round(amount * 100))
	if amountMinor <= 0 {
		return "", ErrInvalidAmount
	}
	if s.paymentClient == nil {
		return "", errors.New("payment provider not configured")
	}
	return s.paymentClient.CreateIntent(ctx, amountMinor, "usd")
}

// EnsureUser создаёт запись пользователя при первом входе. Повторный вызов
// для существующего email ничего не меняет и возвращает false.
func (s *Service) EnsureUser(ctx context.Context, email, displayName, photoURL string) (bool, error) {
	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return false, err
	}

	_, err = s.repo.CreateUser(ctx, &model.User{
		Email:       email,
		Role:        model.RoleUser,
		DisplayName: displayName,
		PhotoURL:    photoURL,
	})
	if errors.Is(err, repository.ErrUserExists) {
		// Параллельный запрос успел первым.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetRole возвращает роль пользователя по email.
func (s *Service) GetRole(ctx context.Context, email string) (model.Role, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

// ListMembers возвращает пользователей с ролью member.
func (s *Service) ListMembers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListMembers(ctx)
}

// RemoveMembership сбрасывает роль member обратно в user.
func (s *Service) RemoveMembership(ctx context.Context, id int64) error {
	return s.repo.DemoteMember(ctx, id)
}

// AdminStats возвращает сводную статистику. Квартира считается занятой, если на
// неё есть хотя бы одна заявка, независимо от статуса заявки.
func (s *Service) AdminStats(ctx context.Context, adminEmail string) (*model.AdminStats, error) {
	u, err := s.repo.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleAdmin {
		return nil, ErrNotAdmin
	}

	totalApartments, err := s.repo.CountApartments(ctx)
	if err != nil {
		return nil, err
	}

	unavailable, err := s.repo.CountAgreementApartments(ctx)
	if err != nil {
		return nil, err
	}

	available := totalApartments - unavailable
	if available < 0 {
		available = 0
	}

	stats := &model.AdminStats{
		TotalApartments: totalApartments,
		Available:       available,
		Unavailable:     unavailable,
	}
	if totalApartments > 0 {
		stats.AvailablePercent = float64(available) / float64(totalApartments) * 100
		stats.UnavailablePercent = float64(unavailable) / float64(totalApartments) * 100
	}

	stats.TotalUsers, err = s.repo.CountUsers(ctx)
	if err != nil {
		return nil, err
	}

	stats.TotalMembers, err = s.repo.CountUsersByRole(ctx, model.RoleMember)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// PostAnnouncement публикует объявление с текущим временем.
func (s *Service) PostAnnouncement(ctx context.Context, title, description string) (int64, error) {
	return s.repo.CreateAnnouncement(ctx, &model.Announcement{
		Title:       title,
		Description: description,
		Date:        s.now(),
	})
}

// ListAnnouncements возвращает объявления, новые первыми.
func (s *Service) ListAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	return s.repo.ListAnnouncements(ctx)
}
