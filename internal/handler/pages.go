package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/trackitnow/internal/domain"
	"github.com/msomdec/trackitnow/internal/service"
	"github.com/msomdec/trackitnow/internal/view"
)

// PageHandler serves the HTML pages.
type PageHandler struct {
	auth         *service.AuthService
	ledger       *service.LedgerService
	notify       *service.NotificationService
	cookieSecure bool
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(auth *service.AuthService, ledger *service.LedgerService, notify *service.NotificationService, cookieSecure bool) *PageHandler {
	return &PageHandler{auth: auth, ledger: ledger, notify: notify, cookieSecure: cookieSecure}
}

// HandleLoginPage renders the login form, or sends signed-in users on.
// GET /
func (h *PageHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/track", http.StatusSeeOther)
		return
	}
	view.LoginPage("", "").Render(r.Context(), w)
}

// HandleLogin checks credentials and sets the session cookie.
// POST /login
func (h *PageHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	token, err := h.auth.Login(r.Context(), username, r.FormValue("password"))
	if err != nil {
		status := http.StatusUnauthorized
		msg := "Invalid username or password."
		if !errors.Is(err, domain.ErrUnauthorized) {
			slog.ErrorContext(r.Context(), "login user", "error", err)
			status, msg = errorStatus(err)
		}
		w.WriteHeader(status)
		view.LoginPage(username, msg).Render(r.Context(), w)
		return
	}

	setAuthCookie(w, token, h.cookieSecure)
	http.Redirect(w, r, "/track", http.StatusSeeOther)
}

// HandleSignupPage renders the signup form.
// GET /signup
func (h *PageHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	view.SignupPage(view.SignupForm{}, "").Render(r.Context(), w)
}

// HandleSignup creates the account, subscribes the email to order
// notifications and sends the user to the login page.
// POST /signup
func (h *PageHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	form := view.SignupForm{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
	}
	user, err := h.auth.Register(r.Context(), form.Username, form.Email, r.FormValue("password"), r.FormValue("confirm_password"))
	if err != nil {
		var status int
		var msg string
		switch {
		case errors.Is(err, domain.ErrDuplicateUsername):
			status, msg = http.StatusConflict, "That username is already taken."
		default:
			status, msg = errorStatus(err)
			if status >= http.StatusInternalServerError {
				slog.ErrorContext(r.Context(), "register user", "error", err)
			}
		}
		w.WriteHeader(status)
		view.SignupPage(form, msg).Render(r.Context(), w)
		return
	}

	subscribe(r, h.notify, user)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
// POST /logout
func (h *PageHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearAuthCookie(w, h.cookieSecure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleTrack renders the signed-in landing page.
// GET /track
func (h *PageHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	view.TrackPage(UserFromContext(r.Context()).Username).Render(r.Context(), w)
}

// HandleShip renders the order form.
// GET /ship
func (h *PageHandler) HandleShip(w http.ResponseWriter, r *http.Request) {
	view.ShipPage(UserFromContext(r.Context()).Username, view.OrderForm{}, "").Render(r.Context(), w)
}

// HandlePlaceOrder appends an order and confirms it to the user.
// POST /orders
func (h *PageHandler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	form := view.OrderForm{
		Pickup: r.FormValue("pickup_location"),
		Drop:   r.FormValue("drop_location"),
	}

	if _, err := h.ledger.PlaceOrder(r.Context(), user.Username, form.Pickup, form.Drop); err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "place order", "error", err)
		}
		w.WriteHeader(status)
		view.ShipPage(user.Username, form, msg).Render(r.Context(), w)
		return
	}

	confirm(r, h.notify, user.Username, domain.Order{
		Pickup: strings.TrimSpace(form.Pickup),
		Drop:   strings.TrimSpace(form.Drop),
	})
	http.Redirect(w, r, "/order-success", http.StatusSeeOther)
}

// HandleOrderSuccess renders the confirmation page.
// GET /order-success
func (h *PageHandler) HandleOrderSuccess(w http.ResponseWriter, r *http.Request) {
	view.OrderSuccessPage(UserFromContext(r.Context()).Username).Render(r.Context(), w)
}

// HandleOrders lists the user's orders.
// GET /orders
func (h *PageHandler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	list, err := h.ledger.ListOrders(r.Context(), user.Username)
	if err != nil {
		renderErrorPage(w, r, user.Username, "list orders", err)
		return
	}

	warning := ""
	if list.Err() != nil {
		warning = mismatchWarning
	}
	view.OrdersPage(user.Username, list.Slice(), warning).Render(r.Context(), w)
}

// HandleDeleteOrder removes the order at {index}. Datastar requests get the
// re-rendered list patched in place; plain form posts are redirected back to
// the list.
// POST /orders/{index}/delete
func (h *PageHandler) HandleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	err := domain.ErrIndexOutOfRange
	if index, convErr := strconv.Atoi(r.PathValue("index")); convErr == nil {
		err = h.ledger.DeleteOrder(r.Context(), user.Username, index)
	}

	if !isDatastarRequest(r) {
		if err != nil {
			renderErrorPage(w, r, user.Username, "delete order", err)
			return
		}
		http.Redirect(w, r, "/orders", http.StatusSeeOther)
		return
	}

	errMsg := ""
	if err != nil {
		var status int
		status, errMsg = errorStatus(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "delete order", "error", err)
		}
	}

	list, listErr := h.ledger.ListOrders(r.Context(), user.Username)
	if listErr != nil {
		slog.ErrorContext(r.Context(), "list orders after delete", "error", listErr)
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	sse := datastar.NewSSE(w, r)
	sse.PatchElementTempl(view.OrderListFragment(list.Slice(), errMsg))
}

// renderErrorPage writes the error page with the status errorStatus maps err to.
func renderErrorPage(w http.ResponseWriter, r *http.Request, username, op string, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), op, "error", err)
	}
	w.WriteHeader(status)
	view.ErrorPage(username, http.StatusText(status), msg).Render(r.Context(), w)
}

func isDatastarRequest(r *http.Request) bool {
	return r.Header.Get("Datastar-Request") == "true"
}
