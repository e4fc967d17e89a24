package user

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Role     Role   `json:"role"`

	// Provider-side customer ids, filled in lazily the first time a saved
	// instrument flow runs against that provider.
	StripeCustomerID      *string `json:"-"`
	FlutterwaveCustomerID *string `json:"-"`
}
