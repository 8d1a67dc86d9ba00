package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transportation"
	CategoryEntertainment Category = "Entertainment"
	CategoryShopping      Category = "Shopping"
	CategoryBills         Category = "Bills"
	CategoryHealthcare    Category = "Healthcare"
	CategoryEducation     Category = "Education"
	CategoryTravel        Category = "Travel"
	CategoryOther         Category = "Other"
)

const (
	PaymentCash          PaymentMethod = "Cash"
	PaymentCreditCard    PaymentMethod = "Credit Card"
	PaymentDebitCard     PaymentMethod = "Debit Card"
	PaymentBankTransfer  PaymentMethod = "Bank Transfer"
	PaymentDigitalWallet PaymentMethod = "Digital Wallet"
	PaymentOther         PaymentMethod = "Other"
)

type (
	// Category is the closed set of expense categories. Anything outside
	// Categories() fails validation before reaching the store.
	Category string

	// PaymentMethod is the closed set of payment methods.
	PaymentMethod string

	Expense struct {
		ID            uuid.UUID     `json:"id"`
		OwnerID       uuid.UUID     `json:"-"`
		Title         string        `json:"title"`
		Amount        Money         `json:"amount"`
		Category      Category      `json:"category"`
		Description   string        `json:"description,omitempty"`
		Date          time.Time     `json:"date"`
		PaymentMethod PaymentMethod `json:"paymentMethod"`
		Tags          []string      `json:"tags"`
		IsRecurring   bool          `json:"isRecurring"`
		CreatedAt     time.Time     `json:"createdAt"`
		UpdatedAt     time.Time     `json:"updatedAt"`
	}

	User struct {
		ID           uuid.UUID `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		// Total is the running ledger: the sum of Amount over all of the
		// user's currently existing expenses.
		Total     Money     `json:"totalExpenses"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
)

var (
	ErrEmptyTitle           = errors.New("title is required")
	ErrTitleTooLong         = errors.New("title cannot exceed 100 characters")
	ErrDescriptionTooLong   = errors.New("description cannot exceed 500 characters")
	ErrInvalidAmount        = errors.New("amount must be greater than 0 with at most 2 decimal places")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrZeroDate             = errors.New("date cannot be zero")
)

// Categories returns the valid expense categories in declaration order.
func Categories() []Category {
	return []Category{
		CategoryFood, CategoryTransport, CategoryEntertainment,
		CategoryShopping, CategoryBills, CategoryHealthcare,
		CategoryEducation, CategoryTravel, CategoryOther,
	}
}

// PaymentMethods returns the valid payment methods in declaration order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentCash, PaymentCreditCard, PaymentDebitCard,
		PaymentBankTransfer, PaymentDigitalWallet, PaymentOther,
	}
}

func (c Category) Valid() bool {
	for _, v := range Categories() {
		if c == v {
			return true
		}
	}
	return false
}

func (p PaymentMethod) Valid() bool {
	for _, v := range PaymentMethods() {
		if p == v {
			return true
		}
	}
	return false
}

// ParseCategory validates a raw category string.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if !c.Valid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

// ParsePaymentMethod validates a raw payment method string. An empty
// string defaults to Cash.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PaymentCash, nil
	}
	p := PaymentMethod(s)
	if !p.Valid() {
		return "", ErrInvalidPaymentMethod
	}
	return p, nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 100 {
		return ErrTitleTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if len(e.Description) > 500 {
		return ErrDescriptionTooLong
	}
	if e.Date.IsZero() {
		return ErrZeroDate
	}
	if !e.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	return nil
}
