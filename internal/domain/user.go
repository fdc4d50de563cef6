package domain

// User is the authenticated customer handed over by the auth provider.
type User struct {
	ID        string `json:"id" validate:"required"`
	Nombre    string `json:"nombre" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Direccion string `json:"direccion,omitempty"`
}

// ShippingAddress returns the stored address or "" when none was given.
func (u *User) ShippingAddress() string {
	if u == nil {
		return ""
	}
	return u.Direccion
}
