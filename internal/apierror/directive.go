// Package apierror turns failure codes into directives describing the
// client-side effects to perform. It never performs them itself.
package apierror

import (
	"github.com/spec-kit/portal-session/internal/domain"
)

// Kind groups error codes by the effect they have on the session.
type Kind string

const (
	KindTransport      Kind = "transport"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindValidation     Kind = "validation"
	KindUnknown        Kind = "unknown"
)

// Directive describes how a failed response should be handled.
type Directive struct {
	Code        domain.ErrorCode
	Kind        Kind
	Role        domain.Role
	UserMessage string
	ShowPopup   bool
	AutoLogout  bool
	RedirectTo  string
}

// Routes are the UI locations directives point at.
type Routes struct {
	UserLogin  string
	AdminLogin string
	UserHome   string
	AdminHome  string
}

// DefaultRoutes mirrors the portal's route table.
var DefaultRoutes = Routes{
	UserLogin:  "/login",
	AdminLogin: "/admin/login",
	UserHome:   "/",
	AdminHome:  "/admin",
}

// LoginPath is the login entry point for role; anonymous callers get the user login.
func (r Routes) LoginPath(role domain.Role) string {
	if role == domain.RoleAdmin {
		return r.AdminLogin
	}
	return r.UserLogin
}

// LandingPath is the safe page for role.
func (r Routes) LandingPath(role domain.Role) string {
	if role == domain.RoleAdmin {
		return r.AdminHome
	}
	return r.UserHome
}

// redirect names where a code sends the caller.
type redirect int

const (
	redirectNone redirect = iota
	redirectLogin
	redirectLanding
)

type entry struct {
	kind       Kind
	message    string
	popup      bool
	autoLogout bool
	redirect   redirect
	verbatim   bool
}

const genericMessage = "Something went wrong. Please try again."

var table = map[domain.ErrorCode]entry{
	domain.CodeTokenMissing:        {kind: KindAuthentication, message: "Please sign in to continue.", popup: true, autoLogout: true, redirect: redirectLogin},
	domain.CodeTokenExpired:        {kind: KindAuthentication, message: "Your session has expired. Please sign in again.", popup: true, autoLogout: true, redirect: redirectLogin},
	domain.CodeTokenInvalid:        {kind: KindAuthentication, message: "Your session is no longer valid. Please sign in again.", popup: true, autoLogout: true, redirect: redirectLogin},
	domain.CodeUnauthorized:        {kind: KindAuthentication, message: "Please sign in to continue.", popup: true, autoLogout: true, redirect: redirectLogin},
	domain.CodeRefreshTokenInvalid: {kind: KindAuthentication, message: "Your session has expired. Please sign in again.", popup: true, autoLogout: true, redirect: redirectLogin},
	domain.CodeSessionExpired:      {kind: KindAuthentication, message: "Your session has expired. Please sign in again.", popup: true, autoLogout: true, redirect: redirectLogin},

	domain.CodeAccessDenied: {kind: KindAuthorization, message: "You do not have permission to access this page.", popup: true, redirect: redirectLanding},
	domain.CodeAdminOnly:    {kind: KindAuthorization, message: "This page is available to administrators only.", popup: true, redirect: redirectLanding},

	domain.CodeInvalidInput: {kind: KindValidation, message: "Please check your input.", popup: true, verbatim: true},
	domain.CodeLoginFailed:  {kind: KindValidation, message: "The login ID or password is incorrect.", popup: true, verbatim: true},
	domain.CodeNotFound:     {kind: KindValidation, message: "The requested item could not be found.", popup: true, verbatim: true},
	domain.CodeConflict:     {kind: KindValidation, message: "The item already exists.", popup: true, verbatim: true},
	domain.CodeRateLimited:  {kind: KindValidation, message: "Too many requests. Please wait a moment.", popup: true, verbatim: true},

	domain.CodeInternal: {kind: KindUnknown, message: genericMessage, popup: true},

	domain.CodeRequestTimeout:  {kind: KindTransport, message: "The server took too long to respond.", popup: true},
	domain.CodeNetworkError:    {kind: KindTransport, message: "Unable to reach the server. Check your connection.", popup: true},
	domain.CodeRequestCanceled: {kind: KindTransport, message: "The request was canceled."},
	domain.CodeInvalidResponse: {kind: KindTransport, message: "The server sent an unexpected response.", popup: true},
}

// Classifier maps codes to directives for a fixed route table.
type Classifier struct {
	routes Routes
}

// NewClassifier builds a classifier; empty route fields fall back to DefaultRoutes.
func NewClassifier(routes Routes) *Classifier {
	if routes.UserLogin == "" {
		routes.UserLogin = DefaultRoutes.UserLogin
	}
	if routes.AdminLogin == "" {
		routes.AdminLogin = DefaultRoutes.AdminLogin
	}
	if routes.UserHome == "" {
		routes.UserHome = DefaultRoutes.UserHome
	}
	if routes.AdminHome == "" {
		routes.AdminHome = DefaultRoutes.AdminHome
	}
	return &Classifier{routes: routes}
}

// Routes returns the route table in use.
func (c *Classifier) Routes() Routes {
	return c.routes
}

// Classify is a pure function of code and the role active when the request was made.
func (c *Classifier) Classify(code domain.ErrorCode, role domain.Role) Directive {
	e, ok := table[code]
	if !ok {
		e = entry{kind: KindUnknown, message: genericMessage, popup: true}
	}

	d := Directive{
		Code:        code,
		Kind:        e.kind,
		Role:        role,
		UserMessage: e.message,
		ShowPopup:   e.popup,
		AutoLogout:  e.autoLogout && role.Valid(),
	}
	switch e.redirect {
	case redirectLogin:
		d.RedirectTo = c.routes.LoginPath(role)
	case redirectLanding:
		d.RedirectTo = c.routes.LandingPath(role)
	}
	return d
}

// WithServerMessage lets validation failures show the server's own wording.
func (d Directive) WithServerMessage(msg string) Directive {
	if msg == "" {
		return d
	}
	if e, ok := table[d.Code]; ok && e.verbatim {
		d.UserMessage = msg
	}
	return d
}

// Anonymous strips session side effects from a directive produced for a call
// that carried no credentials.
func (d Directive) Anonymous() Directive {
	d.AutoLogout = false
	d.RedirectTo = ""
	return d
}

// IsAuthentication reports whether the directive ends the session.
func (d Directive) IsAuthentication() bool {
	return d.Kind == KindAuthentication
}

// FromStatus picks a code for a failure body that carried none.
func FromStatus(status int) domain.ErrorCode {
	return domain.CodeForStatus(status)
}
