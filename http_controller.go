package mettle

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/google/uuid"
)

// AccountDeleter performs the hard deletion the public API key cannot:
// removing the auth user and every owned row. The local provider
// implements it; hosted deployments wire a service-key client.
type AccountDeleter interface {
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// ShellRouteRegistrar captures the router methods the controller needs.
type ShellRouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

type ShellControllerRoutes struct {
	Login         string
	Logout        string
	AccountDelete string
}

type ShellControllerViews struct {
	Login string
}

// ShellController serves the navigation shell's server routes: the login
// page, logout, and the account-deletion endpoint the client facade
// calls with a DELETE request.
type ShellController struct {
	Debug    bool
	Logger   Logger
	Accounts *Accounts
	Deleter  AccountDeleter
	Guard    *SessionGuard
	Routes   *ShellControllerRoutes
	Views    *ShellControllerViews
}

type ShellControllerOption func(*ShellController) *ShellController

func WithShellLogger(logger Logger) ShellControllerOption {
	return func(c *ShellController) *ShellController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithShellDebug(debug bool) ShellControllerOption {
	return func(c *ShellController) *ShellController {
		c.Debug = debug
		return c
	}
}

func NewShellController(accounts *Accounts, deleter AccountDeleter, guard *SessionGuard, opts ...ShellControllerOption) *ShellController {
	c := &ShellController{
		Logger:   defLogger{},
		Accounts: accounts,
		Deleter:  deleter,
		Guard:    guard,
		Routes: &ShellControllerRoutes{
			Login:         "/login",
			Logout:        "/logout",
			AccountDelete: DefaultAccountDeleteRoute,
		},
		Views: &ShellControllerViews{
			Login: "login",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Accounts == nil {
		panic("Missing Accounts facade in shell controller...")
	}

	return c
}

// RegisterShellRoutes mounts the controller's routes on the app router.
func RegisterShellRoutes(app ShellRouteRegistrar, controller *ShellController) {
	app.Get(controller.Routes.Login, controller.LoginShow)
	app.Post(controller.Routes.Login, controller.LoginPost)
	app.Get(controller.Routes.Logout, controller.LogOut)

	deleteHandler := controller.AccountDelete
	if controller.Guard != nil {
		mw := controller.Guard.Middleware(func(c router.Context, err error) error {
			return c.JSON(router.StatusUnauthorized, map[string]string{
				"error": UserMessage(err),
			})
		})
		app.Delete(controller.Routes.AccountDelete, mw(deleteHandler))
		return
	}

	app.Delete(controller.Routes.AccountDelete, deleteHandler)
}

func (a *ShellController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginPost handles the credential form: validation failures and backend
// rejections re-render the page with an inline message; success sets the
// session cookie and redirects to the query-supplied target.
func (a *ShellController) LoginPost(ctx router.Context) error {
	payload := new(LoginPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Login, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": err.Error(),
		})
	}

	if a.Debug {
		fmt.Println("======= SHELL LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("==========================")
	}

	session, err := a.Accounts.SignIn(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors":  map[string]string{"authentication": UserMessage(err)},
			"payload": payload,
		})
	}

	SetSessionCookie(ctx, session)

	redirect := ctx.Query("redirect", "")
	if !IsLocalPath(redirect) {
		redirect = GetRedirect(ctx, DefaultDashboardPath)
	}

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *ShellController) LogOut(ctx router.Context) error {
	if err := a.Accounts.SignOut(ctx.Context()); err != nil {
		a.Logger.Warn("sign-out error: ", "error", err)
	}

	ClearSessionCookie(ctx)
	return ctx.Redirect(LandingPath, router.StatusTemporaryRedirect)
}

// AccountDelete hard-deletes the authenticated account. Success is an
// empty 200; every failure carries a JSON error message.
func (a *ShellController) AccountDelete(ctx router.Context) error {
	claims, err := ClaimsFromRoute(ctx)
	if err != nil {
		return ctx.JSON(router.StatusUnauthorized, map[string]string{
			"error": UserMessage(err),
		})
	}

	userID, err := claims.UserID()
	if err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "invalid user identifier",
		})
	}

	if a.Deleter == nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "account deletion is not configured",
		})
	}

	if err := a.Deleter.DeleteUser(ctx.Context(), userID); err != nil {
		a.Logger.Error("account deletion failed", "user", userID, "error", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": UserMessage(err),
		})
	}

	ClearSessionCookie(ctx)
	return ctx.JSON(router.StatusOK, map[string]bool{"success": true})
}
