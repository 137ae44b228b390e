package handler

import (
	"crypto/rand"
	"encoding/base64"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appidentity "github.com/erp/storefront/internal/application/identity"
	"github.com/erp/storefront/internal/application/storefront"
	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/logger"
	"github.com/erp/storefront/internal/interfaces/http/middleware"
)

// SessionHandler handles login, logout and the current identity
type SessionHandler struct {
	BaseHandler
	sessions *appidentity.SessionService
	registry *storefront.Registry
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions *appidentity.SessionService, registry *storefront.Registry) *SessionHandler {
	return &SessionHandler{sessions: sessions, registry: registry}
}

// SessionResponse describes the session's login state
type SessionResponse struct {
	Strategy string                 `json:"strategy"`
	User     *identity.UserIdentity `json:"user"`
}

// SDKLoginRequest carries the access token obtained by the LINE SDK
type SDKLoginRequest struct {
	AccessToken string `json:"access_token" binding:"required"`
}

// GetSession godoc
// @Summary      Current identity
// @Tags         session
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Router       /session [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	user, err := h.sessions.SessionIdentity(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SessionResponse{Strategy: h.sessions.Strategy(), User: user})
}

// LoginSDK godoc
// @Summary      Log in with a LINE SDK access token
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        request body SDKLoginRequest true "Access token"
// @Success      200 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Router       /session/sdk [post]
func (h *SessionHandler) LoginSDK(c *gin.Context) {
	if h.sessions.Strategy() != appidentity.StrategySDK {
		h.HandleError(c, shared.NewDomainError(shared.CodeNotFound, "SDK login is not enabled"))
		return
	}

	var req SDKLoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	h.resolve(c, appidentity.Credentials{AccessToken: req.AccessToken})
}

// BeginPopup godoc
// @Summary      Start a popup login
// @Description  Registers a login ticket and returns the URL to open in the popup
// @Tags         session
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Router       /session/popup/begin [post]
func (h *SessionHandler) BeginPopup(c *gin.Context) {
	popup, ok := h.popup(c)
	if !ok {
		return
	}

	result, err := popup.Begin(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// PopupMessage godoc
// @Summary      Deliver the message posted by the login popup
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        request body appidentity.PopupMessage true "Popup message"
// @Success      200 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      403 {object} dto.Response
// @Router       /session/popup/message [post]
func (h *SessionHandler) PopupMessage(c *gin.Context) {
	if _, ok := h.popup(c); !ok {
		return
	}

	var msg appidentity.PopupMessage
	if !h.BindJSON(c, &msg) {
		return
	}

	h.resolve(c, appidentity.Credentials{Message: &msg})
}

// PopupCallback godoc
// @Summary      LINE login callback
// @Description  Renders a page that posts the login result to the opener and closes itself
// @Tags         session
// @Produce      html
// @Param        state query string true "Login ticket"
// @Param        code  query string false "Authorization code"
// @Router       /session/popup/callback [get]
func (h *SessionHandler) PopupCallback(c *gin.Context) {
	popup, ok := h.popup(c)
	if !ok {
		return
	}

	result := popup.Callback(c.Request.Context(), c.Query("state"), c.Query("code"), c.Query("error"))

	nonce, err := newNonce()
	if err != nil {
		h.InternalError(c, "Failed to render login callback")
		return
	}

	c.Header("Content-Security-Policy",
		"default-src 'none'; script-src 'nonce-"+nonce+"'; base-uri 'none'; frame-ancestors 'none'")
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)

	err = callbackPage.Execute(c.Writer, callbackPageData{
		Nonce:        nonce,
		TargetOrigin: result.TargetOrigin,
		Message: callbackMessage{
			State: result.State,
			Data:  result.Payload,
		},
	})
	if err != nil {
		logger.L(c.Request.Context()).Error("Failed to render login callback", zap.Error(err))
	}
}

// Logout godoc
// @Summary      Log out
// @Description  Drops the cached identity and the session's cart
// @Tags         session
// @Produce      json
// @Success      200 {object} dto.Response
// @Router       /session [delete]
func (h *SessionHandler) Logout(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if err := h.sessions.Logout(c.Request.Context(), sessionID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.registry.Drop(sessionID)
	h.Success(c, gin.H{"logged_out": true})
}

func (h *SessionHandler) resolve(c *gin.Context, creds appidentity.Credentials) {
	user, err := h.sessions.ResolveIdentity(c.Request.Context(), middleware.GetSessionID(c), creds)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SessionResponse{Strategy: h.sessions.Strategy(), User: user})
}

func (h *SessionHandler) popup(c *gin.Context) (*appidentity.PopupResolver, bool) {
	popup, ok := h.sessions.Popup()
	if !ok {
		h.HandleError(c, shared.NewDomainError(shared.CodeNotFound, "Popup login is not enabled"))
	}
	return popup, ok
}

type callbackMessage struct {
	State string                   `json:"state"`
	Data  appidentity.PopupPayload `json:"data"`
}

type callbackPageData struct {
	Nonce        string
	TargetOrigin string
	Message      callbackMessage
}

// The message only goes to TargetOrigin, so another page that opened the
// popup never sees it.
var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>LINE login</title></head>
<body>
<p id="status">Completing login...</p>
<script nonce="{{.Nonce}}">
(function () {
  var message = {{.Message}};
  var target = {{.TargetOrigin}};
  if (window.opener && target) {
    window.opener.postMessage(message, target);
    window.close();
    return;
  }
  document.getElementById("status").textContent =
    message.data.success ? "Login complete, you can close this window." : (message.data.error || "Login failed.");
})();
</script>
</body>
</html>
`))

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
