package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AuthClient handles GoTrue operations.
type AuthClient struct {
	client *Client
}

// User is a GoTrue user record.
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Session is an auth session with its access token.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// SignUp creates a new user with email/password.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*Session, error) {
	req := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	if metadata != nil {
		req["data"] = metadata
	}
	return a.sessionRequest(ctx, a.client.authURL+"/signup", req)
}

// SignInWithPassword authenticates with email/password.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	req := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	return a.sessionRequest(ctx, a.client.authURL+"/token?grant_type=password", req)
}

// GetUser resolves an access token to its user, rejecting invalid tokens.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	headers := map[string]string{"Authorization": "Bearer " + accessToken}
	respBody, statusCode, err := a.client.request(ctx, http.MethodGet, a.client.authURL+"/user", nil, headers, false)
	if err != nil {
		return nil, err
	}
	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	var user User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &user, nil
}

func (a *AuthClient) sessionRequest(ctx context.Context, url string, req map[string]interface{}) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, statusCode, err := a.client.request(ctx, http.MethodPost, url, body, nil, false)
	if err != nil {
		return nil, err
	}
	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	var session Session
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}
