// Package model содержит доменные сущности сервиса управления жилым комплексом.
package model

import "time"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleUser   Role = "user"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// AgreementStatus описывает статус заявки на аренду.
type AgreementStatus string

const (
	AgreementStatusPending AgreementStatus = "pending"
	AgreementStatusChecked AgreementStatus = "checked"
)

// PaymentStatusPaid обозначает успешно проведённый платёж.
const PaymentStatusPaid = "paid"

// Apartment представляет квартиру в каталоге жилого комплекса.
type Apartment struct {
	ID       int64
	Floor    int
	Block    string
	Number   string
	Rent     int64
	Featured bool
}

// Agreement описывает заявку пользователя на аренду квартиры.
type Agreement struct {
	ID            int64
	UserEmail     string
	UserName      string
	ApartmentID   int64
	Rent          int64
	Status        AgreementStatus
	CreatedAt     time.Time
	AgreementDate *time.Time
}

// User представляет зарегистрированного пользователя.
type User struct {
	ID          int64
	Email       string
	Role        Role
	DisplayName string
	PhotoURL    string
	CreatedAt   time.Time
}

// Coupon описывает процентную скидку на аренду. Код хранится в верхнем регистре.
type Coupon struct {
	ID          int64
	Code        string
	Discount    float64
	Description string
	Active      bool
}

// Payment описывает зафиксированный платёж по заявке за расчётный месяц.
type Payment struct {
	ID          int64
	Email       string
	AgreementID int64
	Month       string
	Rent        int64
	FinalAmount float64
	Status      string
	Date        time.Time
}

// Announcement представляет объявление администрации.
type Announcement struct {
	ID          int64
	Title       string
	Description string
	Date        time.Time
}

// ApartmentPage содержит страницу каталога и общее число квартир под фильтром.
type ApartmentPage struct {
	Items []Apartment
	Total int64
}

// AdminStats содержит сводную статистику для панели администратора.
type AdminStats struct {
	TotalApartments    int64   `json:"totalApartments"`
	Available          int64   `json:"available"`
	Unavailable        int64   `json:"unavailable"`
	AvailablePercent   float64 `json:"availablePercent"`
	UnavailablePercent float64 `json:"unavailablePercent"`
	TotalUsers         int64   `json:"totalUsers"`
	TotalMembers       int64   `json:"totalMembers"`
}
