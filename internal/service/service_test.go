package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/livewell/tenancy-system/internal/model"
	"github.com/livewell/tenancy-system/internal/repository"
)

type stubRepo struct {
	agreementByEmail    *model.Agreement
	agreementByEmailErr error

	agreementByID    *model.Agreement
	agreementByIDErr error

	createdAgreement *model.Agreement

	markedID   int64
	markedDate *time.Time

	roleEmail string
	roleSet   model.Role

	user    *model.User
	userErr error

	createdUser *model.User

	demoteErr error

	coupon     *model.Coupon
	couponErr  error
	couponCode string

	hasPaid    bool
	hasPaidErr error

	createdPayment *model.Payment

	listArgs struct {
		offset, limit    int
		minRent, maxRent int64
	}

	apartmentCount int64
	agreementCount int64
	userCount      int64
	memberCount    int64
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) ListApartments(ctx context.Context, offset, limit int, minRent, maxRent int64) ([]model.Apartment, int64, error) {
	s.listArgs.offset = offset
	s.listArgs.limit = limit
	s.listArgs.minRent = minRent
	s.listArgs.maxRent = maxRent
	return nil, 0, nil
}

func (s *stubRepo) ListFeaturedApartments(ctx context.Context) ([]model.Apartment, error) {
	return nil, nil
}

func (s *stubRepo) CreateAgreement(ctx context.Context, a *model.Agreement) (int64, error) {
	s.createdAgreement = a
	return 7, nil
}

func (s *stubRepo) GetAgreementByEmail(ctx context.Context, email string) (*model.Agreement, error) {
	return s.agreementByEmail, s.agreementByEmailErr
}

func (s *stubRepo) GetAgreementByID(ctx context.Context, id int64) (*model.Agreement, error) {
	return s.agreementByID, s.agreementByIDErr
}

func (s *stubRepo) ListAgreements(ctx context.Context) ([]model.Agreement, error) {
	return nil, nil
}

func (s *stubRepo) ListPendingAgreements(ctx context.Context) ([]model.Agreement, error) {
	return nil, nil
}

func (s *stubRepo) MarkAgreementChecked(ctx context.Context, id int64, agreementDate *time.Time) error {
	s.markedID = id
	s.markedDate = agreementDate
	return nil
}

func (s *stubRepo) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	s.createdUser = u
	return 1, nil
}

func (s *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) SetUserRoleByEmail(ctx context.Context, email string, role model.Role) error {
	s.roleEmail = email
	s.roleSet = role
	return nil
}

func (s *stubRepo) ListMembers(ctx context.Context) ([]model.User, error) { return nil, nil }

func (s *stubRepo) DemoteMember(ctx context.Context, id int64) error { return s.demoteErr }

func (s *stubRepo) GetActiveCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	s.couponCode = code
	return s.coupon, s.couponErr
}

func (s *stubRepo) ListCoupons(ctx context.Context) ([]model.Coupon, error) { return nil, nil }

func (s *stubRepo) CreateCoupon(ctx context.Context, c *model.Coupon) (int64, error) {
	return 1, nil
}

func (s *stubRepo) SetCouponActive(ctx context.Context, id int64, active bool) error { return nil }

func (s *stubRepo) DeleteCoupon(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) HasPaidPayment(ctx context.Context, agreementID int64, month string) (bool, error) {
	return s.hasPaid, s.hasPaidErr
}

func (s *stubRepo) CreatePayment(ctx context.Context, p *model.Payment) (int64, error) {
	s.createdPayment = p
	return 3, nil
}

func (s *stubRepo) ListPaymentsByEmail(ctx context.Context, email string) ([]model.Payment, error) {
	return nil, nil
}

func (s *stubRepo) CreateAnnouncement(ctx context.Context, a *model.Announcement) (int64, error) {
	return 1, nil
}

func (s *stubRepo) ListAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	return nil, nil
}

func (s *stubRepo) CountApartments(ctx context.Context) (int64, error) {
	return s.apartmentCount, nil
}

func (s *stubRepo) CountAgreementApartments(ctx context.Context) (int64, error) {
	return s.agreementCount, nil
}

func (s *stubRepo) CountUsers(ctx context.Context) (int64, error) { return s.userCount, nil }

func (s *stubRepo) CountUsersByRole(ctx context.Context, role model.Role) (int64, error) {
	return s.memberCount, nil
}

func TestCreateAgreement_SecondAgreementConflicts(t *testing.T) {
	repo := &stubRepo{
		agreementByEmail: &model.Agreement{ID: 1, UserEmail: "user@example.com"},
	}
	svc := NewService(repo, nil)

	_, err := svc.CreateAgreement(context.Background(), &model.Agreement{UserEmail: "user@example.com"})
	if !errors.Is(err, repository.ErrAgreementExists) {
		t.Fatalf("expected ErrAgreementExists, got %v", err)
	}
	if repo.createdAgreement != nil {
		t.Fatalf("agreement must not be inserted on conflict")
	}
}

func TestCreateAgreement_InsertsPending(t *testing.T) {
	repo := &stubRepo{
		agreementByEmailErr: repository.ErrAgreementNotFound,
	}
	svc := NewService(repo, nil)

	stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return stamp }

	created, err := svc.CreateAgreement(context.Background(), &model.Agreement{UserEmail: "user@example.com", ApartmentID: 5})
	if err != nil {
		t.Fatalf("CreateAgreement error: %v", err)
	}
	if created.ID != 7 {
		t.Fatalf("id = %d, want 7", created.ID)
	}
	if created.Status != model.AgreementStatusPending {
		t.Fatalf("status = %q, want pending", created.Status)
	}
	if !created.CreatedAt.Equal(stamp) {
		t.Fatalf("createdAt = %v, want %v", created.CreatedAt, stamp)
	}
	if repo.createdAgreement == nil || repo.createdAgreement.Status != model.AgreementStatusPending {
		t.Fatalf("inserted agreement must have pending status, got %+v", repo.createdAgreement)
	}
	if !repo.createdAgreement.CreatedAt.Equal(stamp) {
		t.Fatalf("inserted createdAt = %v, want %v", repo.createdAgreement.CreatedAt, stamp)
	}
}

func TestAcceptAgreement_UnknownID(t *testing.T) {
	repo := &stubRepo{
		agreementByIDErr: repository.ErrAgreementNotFound,
	}
	svc := NewService(repo, nil)

	err := svc.AcceptAgreement(context.Background(), 99)
	if !errors.Is(err, repository.ErrAgreementNotFound) {
		t.Fatalf("expected ErrAgreementNotFound, got %v", err)
	}
}

func TestAcceptAgreement_ChecksAndPromotes(t *testing.T) {
	repo := &stubRepo{
		agreementByID: &model.Agreement{ID: 3, UserEmail: "user@example.com"},
	}
	svc := NewService(repo, nil)

	if err := svc.AcceptAgreement(context.Background(), 3); err != nil {
		t.Fatalf("AcceptAgreement error: %v", err)
	}
	if repo.markedID != 3 {
		t.Fatalf("marked id = %d, want 3", repo.markedID)
	}
	if repo.markedDate == nil {
		t.Fatalf("agreement date must be stamped on accept")
	}
	if repo.roleEmail != "user@example.com" || repo.roleSet != model.RoleMember {
		t.Fatalf("role update = (%q, %q), want (user@example.com, member)", repo.roleEmail, repo.roleSet)
	}
}

func TestRejectAgreement_ChecksWithoutRoleChange(t *testing.T) {
	repo := &stubRepo{
		agreementByID: &model.Agreement{ID: 4, UserEmail: "user@example.com"},
	}
	svc := NewService(repo, nil)

	if err := svc.RejectAgreement(context.Background(), 4); err != nil {
		t.Fatalf("RejectAgreement error: %v", err)
	}
	if repo.markedID != 4 {
		t.Fatalf("marked id = %d, want 4", repo.markedID)
	}
	if repo.markedDate != nil {
		t.Fatalf("agreement date must not be stamped on reject")
	}
	if repo.roleEmail != "" {
		t.Fatalf("role must not change on reject, updated %q", repo.roleEmail)
	}
}

func TestValidateCoupon_CaseInsensitive(t *testing.T) {
	repo := &stubRepo{
		coupon: &model.Coupon{Code: "SAVE10", Discount: 10, Active: true},
	}
	svc := NewService(repo, nil)

	c, err := svc.ValidateCoupon(context.Background(), "save10")
	if err != nil {
		t.Fatalf("ValidateCoupon error: %v", err)
	}
	if repo.couponCode != "SAVE10" {
		t.Fatalf("lookup code = %q, want SAVE10", repo.couponCode)
	}
	if c.Discount != 10 {
		t.Fatalf("discount = %v, want 10", c.Discount)
	}
}

func TestVerifyCoupon_ComputesDiscountedAmount(t *testing.T) {
	repo := &stubRepo{
		coupon: &model.Coupon{Code: "SAVE10", Discount: 10, Active: true},
	}
	svc := NewService(repo, nil)

	_, discounted, err := svc.VerifyCoupon(context.Background(), "SAVE10", 1000)
	if err != nil {
		t.Fatalf("VerifyCoupon error: %v", err)
	}
	if discounted != 900 {
		t.Fatalf("discounted = %v, want 900", discounted)
	}
}

func TestRecordPayment_DuplicateMonth(t *testing.T) {
	repo := &stubRepo{hasPaid: true}
	svc := NewService(repo, nil)

	_, err := svc.RecordPayment(context.Background(), &model.Payment{
		AgreementID: 1,
		Month:       "2024-01",
		Status:      model.PaymentStatusPaid,
	})
	if !errors.Is(err, repository.ErrDuplicatePayment) {
		t.Fatalf("expected ErrDuplicatePayment, got %v", err)
	}
	if repo.createdPayment != nil {
		t.Fatalf("payment must not be inserted on duplicate")
	}
}

func TestRecordPayment_StampsDate(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)

	id, err := svc.RecordPayment(context.Background(), &model.Payment{
		AgreementID: 1,
		Month:       "2024-02",
		Status:      model.PaymentStatusPaid,
	})
	if err != nil {
		t.Fatalf("RecordPayment error: %v", err)
	}
	if id != 3 {
		t.Fatalf("id = %d, want 3", id)
	}
	if repo.createdPayment == nil || repo.createdPayment.Date.IsZero() {
		t.Fatalf("payment date must be stamped")
	}
}

type stubIntentCreator struct {
	amountMinor int64
	currency    string
	secret      string
	err         error
}

func (s *stubIntentCreator) CreateIntent(ctx context.Context, amountMinor int64, currency string) (string, error) {
	s.amountMinor = amountMinor
	s.currency = currency
	return s.secret, s.err
}

func TestCreatePaymentIntent_InvalidAmount(t *testing.T) {
	svc := &Service{now: time.Now}

	if _, err := svc.CreatePaymentIntent(context.Background(), 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.CreatePaymentIntent(context.Background(), -5); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative amount, got %v", err)
	}
}

func TestCreatePaymentIntent_ConvertsToMinorUnits(t *testing.T) {
	creator := &stubIntentCreator{secret: "pi_secret"}
	svc := &Service{paymentClient: creator, now: time.Now}

	secret, err := svc.CreatePaymentIntent(context.Background(), 10.5)
	if err != nil {
		t.Fatalf("CreatePaymentIntent error: %v", err)
	}
	if secret != "pi_secret" {
		t.Fatalf("secret = %q, want pi_secret", secret)
	}
	if creator.amountMinor != 1050 {
		t.Fatalf("amount minor = %d, want 1050", creator.amountMinor)
	}
	if creator.currency != "usd" {
		t.Fatalf("currency = %q, want usd", creator.currency)
	}
}

func TestCreatePaymentIntent_NoProvider(t *testing.T) {
	svc := NewService(&stubRepo{}, nil)

	if _, err := svc.CreatePaymentIntent(context.Background(), 10); err == nil {
		t.Fatalf("expected error without payment provider")
	}
}

func TestListApartments_Defaults(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)

	if _, err := svc.ListApartments(context.Background(), 0, 0, -1, 0); err != nil {
		t.Fatalf("ListApartments error: %v", err)
	}
	if repo.listArgs.offset != 0 || repo.listArgs.limit != 6 {
		t.Fatalf("offset/limit = %d/%d, want 0/6", repo.listArgs.offset, repo.listArgs.limit)
	}
	if repo.listArgs.minRent != 0 || repo.listArgs.maxRent != 999999 {
		t.Fatalf("rent range = [%d, %d], want [0, 999999]", repo.listArgs.minRent, repo.listArgs.maxRent)
	}
}

func TestListApartments_Offset(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)

	if _, err := svc.ListApartments(context.Background(), 3, 4, 100, 500); err != nil {
		t.Fatalf("ListApartments error: %v", err)
	}
	if repo.listArgs.offset != 8 || repo.listArgs.limit != 4 {
		t.Fatalf("offset/limit = %d/%d, want 8/4", repo.listArgs.offset, repo.listArgs.limit)
	}
	if repo.listArgs.minRent != 100 || repo.listArgs.maxRent != 500 {
		t.Fatalf("rent range = [%d, %d], want [100, 500]", repo.listArgs.minRent, repo.listArgs.maxRent)
	}
}

func TestEnsureUser_Idempotent(t *testing.T) {
	repo := &stubRepo{
		user: &model.User{ID: 1, Email: "user@example.com", Role: model.RoleUser},
	}
	svc := NewService(repo, nil)

	created, err := svc.EnsureUser(context.Background(), "user@example.com", "User", "")
	if err != nil {
		t.Fatalf("EnsureUser error: %v", err)
	}
	if created {
		t.Fatalf("existing user must not be created again")
	}
	if repo.createdUser != nil {
		t.Fatalf("no insert expected for existing user")
	}
}

func TestEnsureUser_CreatesWithDefaultRole(t *testing.T) {
	repo := &stubRepo{userErr: repository.ErrUserNotFound}
	svc := NewService(repo, nil)

	created, err := svc.EnsureUser(context.Background(), "new@example.com", "New", "")
	if err != nil {
		t.Fatalf("EnsureUser error: %v", err)
	}
	if !created {
		t.Fatalf("expected user to be created")
	}
	if repo.createdUser == nil || repo.createdUser.Role != model.RoleUser {
		t.Fatalf("created user must have default role, got %+v", repo.createdUser)
	}
}

func TestRemoveMembership_NotMember(t *testing.T) {
	repo := &stubRepo{demoteErr: repository.ErrMemberNotFound}
	svc := NewService(repo, nil)

	err := svc.RemoveMembership(context.Background(), 5)
	if !errors.Is(err, repository.ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}

func TestAdminStats_NotAdmin(t *testing.T) {
	repo := &stubRepo{
		user: &model.User{Email: "user@example.com", Role: model.RoleUser},
	}
	svc := NewService(repo, nil)

	_, err := svc.AdminStats(context.Background(), "user@example.com")
	if !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
}

func TestAdminStats_Computed(t *testing.T) {
	repo := &stubRepo{
		user:           &model.User{Email: "admin@example.com", Role: model.RoleAdmin},
		apartmentCount: 10,
		agreementCount: 4,
		userCount:      20,
		memberCount:    3,
	}
	svc := NewService(repo, nil)

	stats, err := svc.AdminStats(context.Background(), "admin@example.com")
	if err != nil {
		t.Fatalf("AdminStats error: %v", err)
	}
	if stats.Available != 6 || stats.Unavailable != 4 {
		t.Fatalf("available/unavailable = %d/%d, want 6/4", stats.Available, stats.Unavailable)
	}
	if stats.AvailablePercent != 60 || stats.UnavailablePercent != 40 {
		t.Fatalf("percentages = %v/%v, want 60/40", stats.AvailablePercent, stats.UnavailablePercent)
	}
	if stats.TotalUsers != 20 || stats.TotalMembers != 3 {
		t.Fatalf("users/members = %d/%d, want 20/3", stats.TotalUsers, stats.TotalMembers)
	}
}
