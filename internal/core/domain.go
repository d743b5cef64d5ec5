package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	CategoryCOGSOther ExpenseCategory = "COGS-Other"
	CategoryPayroll   ExpenseCategory = "Payroll"
	CategoryRent      ExpenseCategory = "Rent"
	CategoryUtilities ExpenseCategory = "Utilities"
	CategorySupplies  ExpenseCategory = "Supplies"
	CategoryMarketing ExpenseCategory = "Marketing"
	CategoryMisc      ExpenseCategory = "Misc"
)

type (
	ExpenseCategory string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	FoodItem struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Price       Money  `json:"price"`      // selling price
		CostPrice   Money  `json:"cost_price"` // unit cost
		Available   bool   `json:"available"`
		// Image is a URL or site path to a picture of the dish; "" when none.
		Image       string `json:"image"`
	}

	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		IsStudent    bool      `json:"is_student"`
		IsManager    bool      `json:"is_manager"`
		IsSuperuser  bool      `json:"-"`
		DueAmount    Money     `json:"due_amount"`
		DateJoined   time.Time `json:"-"`
	}

	Order struct {
		ID         int64     `json:"id"`
		StudentID  int64     `json:"student"`
		FoodID     int64     `json:"-"`
		Food       *FoodItem `json:"food"`
		Quantity   int       `json:"quantity"`
		TotalPrice Money     `json:"total_price"`
		OrderedAt  time.Time `json:"ordered_at"`
		Cleared    bool      `json:"cleared"`
	}

	Expense struct {
		ID       int64           `json:"id"`
		Title    string          `json:"title"`
		Category ExpenseCategory `json:"category"`
		Amount   Money           `json:"amount"`
		Date     Date            `json:"date"`
		Notes    string          `json:"notes"`
	}

	// Identity is the caller as seen by the access boundary.
	Identity struct {
		UserID      int64
		Username    string
		IsStudent   bool
		IsManager   bool
		IsSuperuser bool
	}
)

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrZeroDate      = errors.New("date cannot be zero")
)

// ExpenseCategories lists the accepted expense categories in display order.
func ExpenseCategories() []ExpenseCategory {
	return []ExpenseCategory{
		CategoryCOGSOther,
		CategoryPayroll,
		CategoryRent,
		CategoryUtilities,
		CategorySupplies,
		CategoryMarketing,
		CategoryMisc,
	}
}

// Valid reports whether c is one of the fixed expense categories.
func (c ExpenseCategory) Valid() bool {
	for _, known := range ExpenseCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns the human readable name of the category.
func (c ExpenseCategory) Label() string {
	switch c {
	case CategoryCOGSOther:
		return "COGS - other"
	case CategoryMisc:
		return "Miscellaneous"
	default:
		return string(c)
	}
}

// CanManage reports whether the caller holds the manager capability.
// Superusers are always managers.
func (id Identity) CanManage() bool {
	return id.IsManager || id.IsSuperuser
}

// Identity returns the access-boundary view of the user.
func (u User) Identity() Identity {
	return Identity{
		UserID:      u.ID,
		Username:    u.Username,
		IsStudent:   u.IsStudent,
		IsManager:   u.IsManager,
		IsSuperuser: u.IsSuperuser,
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// MonthKey returns the zero-padded "YYYY-MM" bucket of the date.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// StartIn returns midnight of d in loc.
func (d Date) StartIn(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return &ValidationError{Field: "date", Message: "Date has wrong format. Use YYYY-MM-DD."}
	}
	*d = parsed
	return nil
}

func (f FoodItem) Validate() error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "This field may not be blank."}
	}
	if len(name) > 100 {
		return &ValidationError{Field: "name", Message: "Ensure this field has no more than 100 characters."}
	}
	if f.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "Ensure this value is greater than or equal to 0."}
	}
	if f.CostPrice.IsNegative() {
		return &ValidationError{Field: "cost_price", Message: "Ensure this value is greater than or equal to 0."}
	}
	if f.Image != "" {
		if len(f.Image) > 100 {
			return &ValidationError{Field: "image", Message: "Ensure this field has no more than 100 characters."}
		}
		if !strings.HasPrefix(f.Image, "/") && !strings.HasPrefix(f.Image, "http://") && !strings.HasPrefix(f.Image, "https://") {
			return &ValidationError{Field: "image", Message: "Enter a valid URL or an absolute path."}
		}
	}
	return nil
}

func (e Expense) Validate() error {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return &ValidationError{Field: "title", Message: "This field may not be blank."}
	}
	if len(title) > 120 {
		return &ValidationError{Field: "title", Message: "Ensure this field has no more than 120 characters."}
	}
	if !e.Category.Valid() {
		return &ValidationError{Field: "category", Message: `"` + string(e.Category) + `" is not a valid choice.`}
	}
	if e.Amount.Cents <= 0 {
		return &ValidationError{Field: "amount", Message: ErrInvalidAmount.Error()}
	}
	if err := e.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Message: err.Error()}
	}
	return nil
}

const (
	// MaxQuantity is the largest quantity a single order may carry.
	MaxQuantity = 1<<31 - 1
	// MaxOrderTotalCents bounds an order total to eight digits, 999999.99.
	MaxOrderTotalCents = 99_999_999
)

// ValidateQuantity rejects quantities outside 1..MaxQuantity.
func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return &ValidationError{Field: "quantity", Message: "Ensure this value is greater than or equal to 1."}
	}
	if quantity > MaxQuantity {
		return &ValidationError{Field: "quantity", Message: fmt.Sprintf("Ensure this value is less than or equal to %d.", MaxQuantity)}
	}
	return nil
}

// OrderFilter narrows an order listing. Nil fields do not filter.
type OrderFilter struct {
	StudentID *int64
	FoodID    *int64
	Cleared   *bool
}

// Matches reports whether o passes every set filter field.
func (f OrderFilter) Matches(o Order) bool {
	if f.StudentID != nil && o.StudentID != *f.StudentID {
		return false
	}
	if f.FoodID != nil && o.FoodID != *f.FoodID {
		return false
	}
	if f.Cleared != nil && o.Cleared != *f.Cleared {
		return false
	}
	return true
}

// ExpenseFilter narrows an expense listing. Zero values do not filter.
type ExpenseFilter struct {
	Category ExpenseCategory
	Start    Date
	End      Date
}

func (f ExpenseFilter) Matches(e Expense) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.Start.IsZero() && e.Date.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && f.End.Before(e.Date) {
		return false
	}
	return true
}
