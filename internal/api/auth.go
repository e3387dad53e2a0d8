package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/nhle/bugtracker/internal/model"
)

// Login exchanges credentials for a token and profile. It does not store
// anything; the caller hands the result to the session manager.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	const op = "login"
	req.Email = strings.TrimSpace(req.Email)
	if err := checkRequest(op, req); err != nil {
		return nil, err
	}

	var result LoginResult
	err := c.doJSON(ctx, call{
		op:       op,
		fallback: "login failed",
		method:   http.MethodPost,
		path:     "/auth/login",
		body:     req,
	}, &result)
	if err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, &Error{Kind: KindDecode, Op: op, Message: "no token received from server"}
	}
	return &result, nil
}

// Register creates an account. Role defaults to tester.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	const op = "register"
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Role == "" {
		req.Role = model.RoleTester
	}
	if err := checkRequest(op, req); err != nil {
		return nil, err
	}

	var result RegisterResult
	err := c.doJSON(ctx, call{
		op:       op,
		fallback: "registration failed",
		method:   http.MethodPost,
		path:     "/users/register",
		body:     req,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
