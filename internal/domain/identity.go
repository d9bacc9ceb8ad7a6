package domain

// Identity is the authenticated principal a cart is scoped to.
// A nil *Identity means signed out.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}
