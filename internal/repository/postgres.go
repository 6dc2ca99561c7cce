// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/livewell/tenancy-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrAgreementExists возвращается при попытке создать вторую заявку для одного email.
var (
	ErrAgreementExists = errors.New("agreement already exists")
	// ErrAgreementNotFound возвращается, если заявка не найдена.
	ErrAgreementNotFound = errors.New("agreement not found")
	// ErrUserExists возвращается при попытке создать пользователя с уже существующим email.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrMemberNotFound возвращается, если пользователь с ролью member не найден.
	ErrMemberNotFound = errors.New("member not found")
	// ErrCouponNotFound возвращается, если купон не найден или неактивен.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrDuplicatePayment возвращается при повторном платеже за тот же месяц по той же заявке.
	ErrDuplicatePayment = errors.New("payment already recorded for this month")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// ListApartments возвращает страницу квартир с арендой в диапазоне [minRent, maxRent]
// и общее число квартир, попадающих под фильтр.
func (r *PostgresRepository) ListApartments(ctx context.Context, offset, limit int, minRent, maxRent int64) ([]model.Apartment, int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, floor, block, apartment_no, rent, featured
		 FROM apartments
		 WHERE rent >= $1 AND rent <= $2
		 ORDER BY id
		 OFFSET $3 LIMIT $4`,
		minRent, maxRent, offset, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select apartments: %w", err)
	}
	defer rows.Close()

	var items []model.Apartment
	for rows.Next() {
		var a model.Apartment
		if err := rows.Scan(&a.ID, &a.Floor, &a.Block, &a.Number, &a.Rent, &a.Featured); err != nil {
			return nil, 0, fmt.Errorf("scan apartment: %w", err)
		}
		items = append(items, a)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	var total int64
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM apartments WHERE rent >= $1 AND rent <= $2`,
		minRent, maxRent,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count apartments: %w", err)
	}

	return items, total, nil
}

// ListFeaturedApartments возвращает все квартиры с признаком featured.
func (r *PostgresRepository) ListFeaturedApartments(ctx context.Context) ([]model.Apartment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, floor, block, apartment_no, rent, featured
		 FROM apartments
		 WHERE featured
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select featured apartments: %w", err)
	}
	defer rows.Close()

	var items []model.Apartment
	for rows.Next() {
		var a model.Apartment
		if err := rows.Scan(&a.ID, &a.Floor, &a.Block, &a.Number, &a.Rent, &a.Featured); err != nil {
			return nil, fmt.Errorf("scan apartment: %w", err)
		}
		items = append(items, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// CreateAgreement сохраняет новую заявку и возвращает её идентификатор.
func (r *PostgresRepository) CreateAgreement(ctx context.Context, a *model.Agreement) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO agreements (user_email, user_name, apartment_id, rent, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		a.UserEmail, a.UserName, a.ApartmentID, a.Rent, string(a.Status), a.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert agreement: %w", err)
	}
	return id, nil
}

func scanAgreement(row pgx.Row) (*model.Agreement, error) {
	var a model.Agreement
	var status string
	err := row.Scan(&a.ID, &a.UserEmail, &a.UserName, &a.ApartmentID, &a.Rent, &status, &a.CreatedAt, &a.AgreementDate)
	if err != nil {
		return nil, err
	}
	a.Status = model.AgreementStatus(status)
	return &a, nil
}

const agreementColumns = `id, user_email, user_name, apartment_id, rent, status, created_at, agreement_date`

// GetAgreementByEmail возвращает заявку пользователя по email.
func (r *PostgresRepository) GetAgreementByEmail(ctx context.Context, email string) (*model.Agreement, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+agreementColumns+` FROM agreements WHERE user_email = $1`,
		email,
	)

	a, err := scanAgreement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgreementNotFound
		}
		return nil, fmt.Errorf("get agreement: %w", err)
	}

	return a, nil
}

// GetAgreementByID возвращает заявку по идентификатору.
func (r *PostgresRepository) GetAgreementByID(ctx context.Context, id int64) (*model.Agreement, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+agreementColumns+` FROM agreements WHERE id = $1`,
		id,
	)

	a, err := scanAgreement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgreementNotFound
		}
		return nil, fmt.Errorf("get agreement: %w", err)
	}

	return a, nil
}

func (r *PostgresRepository) listAgreements(ctx context.Context, query string, args ...any) ([]model.Agreement, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select agreements: %w", err)
	}
	defer rows.Close()

	var res []model.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agreement: %w", err)
		}
		res = append(res, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListAgreements возвращает все заявки.
func (r *PostgresRepository) ListAgreements(ctx context.Context) ([]model.Agreement, error) {
	return r.listAgreements(ctx,
		`SELECT `+agreementColumns+` FROM agreements ORDER BY created_at DESC`,
	)
}

// ListPendingAgreements возвращает заявки в статусе pending.
func (r *PostgresRepository) ListPendingAgreements(ctx context.Context) ([]model.Agreement, error) {
	return r.listAgreements(ctx,
		`SELECT `+agreementColumns+` FROM agreements WHERE status = $1 ORDER BY created_at DESC`,
		string(model.AgreementStatusPending),
	)
}

// MarkAgreementChecked переводит заявку в статус checked. Дата соглашения
// проставляется только при принятии заявки.
func (r *PostgresRepository) MarkAgreementChecked(ctx context.Context, id int64, agreementDate *time.Time) error {
	var err error
	if agreementDate != nil {
		_, err = r.pool.Exec(ctx,
			`UPDATE agreements SET status = $2, agreement_date = $3 WHERE id = $1`,
			id, string(model.AgreementStatusChecked), *agreementDate,
		)
	} else {
		_, err = r.pool.Exec(ctx,
			`UPDATE agreements SET status = $2 WHERE id = $1`,
			id, string(model.AgreementStatusChecked),
		)
	}
	if err != nil {
		return fmt.Errorf("update agreement: %w", err)
	}
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, role, display_name, photo_url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		u.Email, string(u.Role), u.DisplayName, u.PhotoURL,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, role, display_name, photo_url, created_at FROM users WHERE email = $1`,
		email,
	)

	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &role, &u.DisplayName, &u.PhotoURL, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)

	return &u, nil
}

// SetUserRoleByEmail устанавливает роль пользователя по email.
// Отсутствие подходящей строки не считается ошибкой.
func (r *PostgresRepository) SetUserRoleByEmail(ctx context.Context, email string, role model.Role) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2 WHERE email = $1`,
		email, string(role),
	)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return nil
}

// ListMembers возвращает пользователей с ролью member.
func (r *PostgresRepository) ListMembers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, role, display_name, photo_url, created_at
		 FROM users
		 WHERE role = $1
		 ORDER BY id`,
		string(model.RoleMember),
	)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		var u model.User
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &role, &u.DisplayName, &u.PhotoURL, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		u.Role = model.Role(role)
		res = append(res, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// DemoteMember сбрасывает роль member в user по идентификатору пользователя.
func (r *PostgresRepository) DemoteMember(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2 WHERE id = $1 AND role = $3`,
		id, string(model.RoleUser), string(model.RoleMember),
	)
	if err != nil {
		return fmt.Errorf("demote member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// GetActiveCouponByCode возвращает активный купон по коду. Код должен быть
// приведён к верхнему регистру до вызова.
func (r *PostgresRepository) GetActiveCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, code, discount, description, active FROM coupons WHERE code = $1 AND active`,
		code,
	)

	var c model.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.Discount, &c.Description, &c.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}

	return &c, nil
}

// ListCoupons возвращает все купоны.
func (r *PostgresRepository) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, discount, description, active FROM coupons ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select coupons: %w", err)
	}
	defer rows.Close()

	var res []model.Coupon
	for rows.Next() {
		var c model.Coupon
		if err := rows.Scan(&c.ID, &c.Code, &c.Discount, &c.Description, &c.Active); err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateCoupon сохраняет новый купон и возвращает его идентификатор.
func (r *PostgresRepository) CreateCoupon(ctx context.Context, c *model.Coupon) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO coupons (code, discount, description, active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		c.Code, c.Discount, c.Description, c.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert coupon: %w", err)
	}
	return id, nil
}

// SetCouponActive включает либо выключает купон.
func (r *PostgresRepository) SetCouponActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE coupons SET active = $2 WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("update coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCouponNotFound
	}
	return nil
}

// DeleteCoupon удаляет купон по идентификатору.
func (r *PostgresRepository) DeleteCoupon(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM coupons WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCouponNotFound
	}
	return nil
}

// HasPaidPayment сообщает, есть ли проведённый платёж по заявке за указанный месяц.
func (r *PostgresRepository) HasPaidPayment(ctx context.Context, agreementID int64, month string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM payments WHERE agreement_id = $1 AND month = $2 AND status = $3
		 )`,
		agreementID, month, model.PaymentStatusPaid,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check payment: %w", err)
	}
	return exists, nil
}

// CreatePayment сохраняет платёж и возвращает его идентификатор.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p *model.Payment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payments (email, agreement_id, month, rent, final_amount, status, paid_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		p.Email, p.AgreementID, p.Month, p.Rent, p.FinalAmount, p.Status, p.Date,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}
	return id, nil
}

// ListPaymentsByEmail возвращает платежи пользователя, новые первыми.
func (r *PostgresRepository) ListPaymentsByEmail(ctx context.Context, email string) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, agreement_id, month, rent, final_amount, status, paid_at
		 FROM payments
		 WHERE email = $1
		 ORDER BY paid_at DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.Email, &p.AgreementID, &p.Month, &p.Rent, &p.FinalAmount, &p.Status, &p.Date); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateAnnouncement сохраняет объявление и возвращает его идентификатор.
func (r *PostgresRepository) CreateAnnouncement(ctx context.Context, a *model.Announcement) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO announcements (title, description, posted_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		a.Title, a.Description, a.Date,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert announcement: %w", err)
	}
	return id, nil
}

// ListAnnouncements возвращает все объявления, новые первыми.
func (r *PostgresRepository) ListAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, posted_at
		 FROM announcements
		 ORDER BY posted_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select announcements: %w", err)
	}
	defer rows.Close()

	var res []model.Announcement
	for rows.Next() {
		var a model.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Date); err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CountApartments возвращает общее число квартир.
func (r *PostgresRepository) CountApartments(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM apartments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count apartments: %w", err)
	}
	return n, nil
}

// CountAgreementApartments возвращает число различных квартир, на которые
// когда-либо подавалась заявка, независимо от её статуса.
func (r *PostgresRepository) CountAgreementApartments(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT apartment_id) FROM agreements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count agreement apartments: %w", err)
	}
	return n, nil
}

// CountUsers возвращает общее число пользователей.
func (r *PostgresRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CountUsersByRole возвращает число пользователей с указанной ролью.
func (r *PostgresRepository) CountUsersByRole(ctx context.Context, role model.Role) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return n, nil
}
