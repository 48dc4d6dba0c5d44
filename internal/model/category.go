package model

// CategoryType classifies what kind of money movement a category covers.
type CategoryType string

const (
	// CategoryTypeIncome represents incoming money (salary, interest).
	CategoryTypeIncome CategoryType = "income"
	// CategoryTypeExpense represents general spending.
	CategoryTypeExpense CategoryType = "expense"
	// CategoryTypeBill represents recurring obligations (rent, utilities).
	CategoryTypeBill CategoryType = "bill"
	// CategoryTypeSaving represents transfers into savings or investments.
	CategoryTypeSaving CategoryType = "saving"
)

// IsValid reports whether t is a known category type.
func (t CategoryType) IsValid() bool {
	switch t {
	case CategoryTypeIncome, CategoryTypeExpense, CategoryTypeBill, CategoryTypeSaving:
		return true
	}
	return false
}
