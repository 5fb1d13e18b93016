package router

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"julianmorley.ca/pasargad/storefront/pkg/api"
	"julianmorley.ca/pasargad/storefront/pkg/checkout"
	"julianmorley.ca/pasargad/storefront/pkg/global"
)

const (
	sessionKey    = "session"
	sessionMaxAge = 30 * 24 * 60 * 60
)

// RequestLogger writes one line per request.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
			"client":   c.ClientIP(),
		})
		if sess, ok := c.Get(sessionKey); ok {
			entry = entry.WithField("session", sess.(*Session).ID)
		}
		switch {
		case len(c.Errors) > 0:
			entry.WithField("errors", c.Errors.String()).Warn("request failed")
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		default:
			entry.Info("request")
		}
	}
}

// SessionMiddleware attaches the browser's Session, issuing a cookie when
// the browser has none.
func SessionMiddleware(reg *Registry, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || !ValidSessionID(id) {
			id = NewSessionID()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, id, sessionMaxAge, "/", "", secure, true)

		c.Set(sessionKey, reg.Get(c.Request.Context(), id))
		c.Next()
	}
}

// RequireAuth sends signed-out browsers to the login view, remembering where they were going.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session(c).Store.Snapshot().Auth.IsAuthenticated {
			q := url.Values{}
			q.Set("redirect", c.Request.URL.Path)
			redirect(c, "/login?"+q.Encode(), "Please log in to continue")
			c.Abort()
			return
		}
		c.Next()
	}
}

func session(c *gin.Context) *Session {
	return c.MustGet(sessionKey).(*Session)
}

func redirect(c *gin.Context, location, message string) {
	c.Header("Location", location)
	c.JSON(http.StatusSeeOther, global.RedirectResponse(location, message))
}

// respondError maps err onto a status and the envelope. An empty message
// uses the classified text; data is included when non-nil.
func respondError(c *gin.Context, err error, message string, data any) {
	_ = c.Error(err)

	var redirectErr *checkout.RedirectError
	if errors.As(err, &redirectErr) {
		redirect(c, redirectErr.Location, message)
		return
	}
	if api.IsSessionExpired(err) {
		if c.FullPath() != "/app/login" {
			redirect(c, checkout.LoginRedirect(api.MsgSessionExpired), api.MsgSessionExpired)
			return
		}
	}

	status, text, fields := describe(err)
	if message == "" {
		message = text
	}
	resp := global.ErrorResponse(message, fields)
	resp.Data = data
	c.JSON(status, resp)
}

func describe(err error) (int, string, []global.ValidationError) {
	var inputErr *api.InputError
	if errors.As(err, &inputErr) {
		return http.StatusBadRequest, inputErr.Message, []global.ValidationError{
			{Field: inputErr.Field, Message: inputErr.Message, Code: "invalid"},
		}
	}
	if errors.Is(err, checkout.ErrPaymentInProgress) {
		return http.StatusConflict, "Payment is already being processed", nil
	}
	if errors.Is(err, checkout.ErrMissingPaymentSession) {
		return http.StatusBadRequest, err.Error(), nil
	}
	if errors.Is(err, checkout.ErrInvalidCheckoutSession) {
		return http.StatusBadGateway, err.Error(), nil
	}

	apiErr := api.Classify(err)
	switch apiErr.Kind {
	case api.KindValidation, api.KindUser:
		return http.StatusBadRequest, apiErr.Message, nil
	case api.KindNotFound:
		return http.StatusNotFound, apiErr.Message, nil
	case api.KindSessionExpired:
		return http.StatusUnauthorized, apiErr.Message, nil
	case api.KindNetwork, api.KindServer:
		return http.StatusBadGateway, apiErr.Message, nil
	}
	return http.StatusInternalServerError, apiErr.Message, nil
}
