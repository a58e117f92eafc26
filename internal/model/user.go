package model

import "github.com/shopspring/decimal"

// Role names carried in access tokens.
const (
	RoleCustomer = "CUSTOMER"
	RoleOwner    = "OWNER"
	RoleAdmin    = "ADMIN"
)

// UserGrade is a customer tier granting a deposit discount.  The grade
// applied to a reservation is copied onto it at booking time.
//
// Fields:
//  ID                     – primary key identifier.
//  Name                   – unique grade name.
//  Code                   – optional short code.
//  DepositDiscountPercent – discount applied to the deposit.
//  Priority               – ordering among default grades (lowest wins).
//  IsDefault              – whether the grade is a system default.
type UserGrade struct {
	ID                     uint64          // user_grades.id
	Name                   string          // user_grades.grade_name
	Code                   *string         // user_grades.grade_code (nullable)
	DepositDiscountPercent decimal.Decimal // user_grades.deposit_discount_percent
	Priority               int             // user_grades.priority
	IsDefault              bool            // user_grades.is_default
}
