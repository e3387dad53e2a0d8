package api

import "github.com/nhle/bugtracker/internal/model"

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is the data of a successful login.
type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	Name     string     `json:"name" validate:"required"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required"`
	Role     model.Role `json:"role" validate:"oneof=tester developer admin"`
}

// RegisterResult is the data of a successful registration. Token and User
// are only set when the server logs the new account in immediately.
type RegisterResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// CreateBugRequest is the body of POST /bugs.
type CreateBugRequest struct {
	Title       string       `json:"title" validate:"required"`
	Description string       `json:"description"`
	Status      model.Status `json:"status" validate:"required"`
	CreatedBy   string       `json:"created_by"`
	Screenshots []string     `json:"screenshots"`
}

// UpdateBugRequest is the body of PATCH /bugs/{id}. The API replaces every
// field, so callers send the current values for fields they do not edit.
type UpdateBugRequest struct {
	Title       string       `json:"title" validate:"required"`
	Description string       `json:"description"`
	Status      model.Status `json:"status" validate:"required"`
	CreatedBy   string       `json:"created_by"`
	Screenshots []string     `json:"screenshots"`
}

type statusRequest struct {
	Status model.Status `json:"status"`
}

// File is an image to send to the upload endpoint.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// uploadResponse tolerates the url at the top level or inside data.
type uploadResponse struct {
	URL  string `json:"url"`
	Data *struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (r uploadResponse) url() string {
	if r.Data != nil && r.Data.URL != "" {
		return r.Data.URL
	}
	return r.URL
}

// errorBody is the failure envelope. Some deployments put the text in
// error rather than message.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
