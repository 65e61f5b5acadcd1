// Package view renders the HTML pages. The components are written in .templ
// files; run `templ generate` after editing them.
package view

import "strconv"

// SignupForm holds the values echoed back when signup fails.
type SignupForm struct {
	Username string
	Email    string
}

// OrderForm holds the values echoed back when placing an order fails.
type OrderForm struct {
	Pickup string
	Drop   string
}

// deletePath is the form target that removes the order at index i.
func deletePath(i int) string {
	return "/orders/" + strconv.Itoa(i) + "/delete"
}
