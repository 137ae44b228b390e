package line

import "fmt"

// TokenInfo is the result of verifying an access token
type TokenInfo struct {
	Scope     string `json:"scope"`
	ClientID  string `json:"client_id"`
	ExpiresIn int64  `json:"expires_in"`
}

// Profile is a LINE user profile
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

// FriendshipStatus reports whether the user added the channel's official account
type FriendshipStatus struct {
	FriendFlag bool `json:"friendFlag"`
}

// Token is the response of an authorization code exchange
type Token struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// APIError is a non-2xx answer from the platform
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"message"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	switch {
	case e.Description != "":
		return fmt.Sprintf("line: HTTP %d: %s: %s", e.StatusCode, e.Code, e.Description)
	case e.Message != "":
		return fmt.Sprintf("line: HTTP %d: %s", e.StatusCode, e.Message)
	case e.Code != "":
		return fmt.Sprintf("line: HTTP %d: %s", e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("line: HTTP %d", e.StatusCode)
	}
}
