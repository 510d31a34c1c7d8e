package model

// Reserved categories are created on demand for every user and assigned by
// the committer according to a row's linkage.
const (
	CategoryUncategorized = "Uncategorized"
	CategoryInternal      = "Internal"
	CategoryReimbursement = "Reimbursement"
)

type ReservedCategory struct {
	Name  string
	Color string
	Icon  string
}

var ReservedCategories = []ReservedCategory{
	{Name: CategoryUncategorized, Color: "#9ca3af", Icon: "label"},
	{Name: CategoryInternal, Color: "#9ca3af", Icon: "arrow-left-right"},
	{Name: CategoryReimbursement, Color: "#22c55e", Icon: "receipt"},
}

// ReservedCategoryFor names the reserved category forced by a linkage type,
// or "" when the type does not force one.
func ReservedCategoryFor(t LinkageType) string {
	switch t {
	case LinkageInternal:
		return CategoryInternal
	case LinkageReimbursement:
		return CategoryReimbursement
	}
	return ""
}
