package view_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/msomdec/trackitnow/internal/domain"
	"github.com/msomdec/trackitnow/internal/view"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestOrderListFragment_RendersRowsWithIndices(t *testing.T) {
	html := render(t, view.OrderListFragment([]domain.Order{
		{Pickup: "12 Oak St", Drop: "99 Elm Ave"},
		{Pickup: "1 Main", Drop: "2 Main"},
	}, ""))

	if !strings.HasPrefix(html, `<section id="orders">`) {
		t.Fatalf("fragment must start with the orders section, got %q", html[:40])
	}
	for _, want := range []string{"12 Oak St", "99 Elm Ave", `action="/orders/0/delete"`, `action="/orders/1/delete"`, `data-on:submit__prevent="@post(&#39;/orders/1/delete&#39;)"`} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

func TestOrderListFragment_Empty(t *testing.T) {
	html := render(t, view.OrderListFragment(nil, ""))
	if !strings.Contains(html, "No orders yet") {
		t.Fatalf("expected empty state, got %s", html)
	}
}

func TestPages_EscapeUserInput(t *testing.T) {
	evil := `<script>alert(1)</script>`
	pages := map[string]templ.Component{
		"orders": view.OrdersPage("bob", []domain.Order{{Pickup: evil, Drop: "x"}}, ""),
		"ship":   view.ShipPage("bob", view.OrderForm{Pickup: evil}, evil),
		"signup": view.SignupPage(view.SignupForm{Username: evil}, ""),
		"track":  view.TrackPage(evil),
	}
	for name, page := range pages {
		html := render(t, page)
		if strings.Contains(html, evil) {
			t.Errorf("%s: user input rendered unescaped", name)
		}
		if !strings.Contains(html, "&lt;script&gt;") {
			t.Errorf("%s: expected escaped input", name)
		}
	}
}

func TestLayout_NavigationDependsOnLogin(t *testing.T) {
	anon := render(t, view.LoginPage("", "Invalid username or password."))
	if strings.Contains(anon, "Log out") {
		t.Error("anonymous page should not offer logout")
	}
	if !strings.Contains(anon, "Invalid username or password.") {
		t.Error("expected error message")
	}

	authed := render(t, view.TrackPage("alice"))
	if !strings.Contains(authed, "Log out") || !strings.Contains(authed, "datastar") {
		t.Error("expected logout link and datastar script for signed-in user")
	}
}

func TestTextInput_OptionalAttributes(t *testing.T) {
	html := render(t, view.ShipPage("bob", view.OrderForm{Pickup: "12 Oak St"}, ""))
	if !strings.Contains(html, `name="pickup_location" required maxlength="150" value="12 Oak St"`) {
		t.Fatalf("expected pickup input with maxlength and echoed value, got %s", html)
	}
	if !strings.Contains(html, `name="drop_location" required maxlength="150">`) {
		t.Fatalf("expected empty drop input without a value attribute, got %s", html)
	}
}

func TestErrorPage(t *testing.T) {
	html := render(t, view.ErrorPage("", "Service Unavailable", "Orders are temporarily unavailable."))
	if !strings.Contains(html, "<h1>Service Unavailable</h1>") || !strings.Contains(html, "Orders are temporarily unavailable.") {
		t.Fatalf("unexpected error page: %s", html)
	}
	if strings.Contains(html, "Log out") {
		t.Fatal("anonymous error page should not offer logout")
	}
}

func TestOrdersPage_Warning(t *testing.T) {
	html := render(t, view.OrdersPage("bob", nil, "Some orders could not be shown."))
	if !strings.Contains(html, "Some orders could not be shown.") {
		t.Fatal("expected warning to be shown")
	}
}
