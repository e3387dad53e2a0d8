package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/nhle/bugtracker/internal/model"
)

// ListBugs fetches every bug visible to the current user. The API does not
// paginate or filter; narrowing is done client-side.
func (c *Client) ListBugs(ctx context.Context) ([]model.Bug, error) {
	var bugs []model.Bug
	err := c.doJSON(ctx, call{
		op:       "list bugs",
		fallback: "error loading bugs",
		method:   http.MethodGet,
		path:     "/bugs",
		auth:     true,
	}, &bugs)
	if err != nil {
		return nil, err
	}
	if bugs == nil {
		bugs = []model.Bug{}
	}
	return bugs, nil
}

// GetBug fetches a single bug.
func (c *Client) GetBug(ctx context.Context, id model.BugID) (*model.Bug, error) {
	const op = "get bug"
	if id == "" {
		return nil, validationError(op, "bug id is required")
	}

	var bug model.Bug
	err := c.doJSON(ctx, call{
		op:       op,
		fallback: "error loading bug",
		method:   http.MethodGet,
		path:     "/bugs/" + url.PathEscape(string(id)),
		auth:     true,
	}, &bug)
	if err != nil {
		return nil, err
	}
	if bug.ID == "" {
		bug.ID = id
	}
	return &bug, nil
}

// CreateBug creates a bug and returns it with its server-assigned id.
func (c *Client) CreateBug(ctx context.Context, req CreateBugRequest) (*model.Bug, error) {
	const op = "create bug"
	req.Title = strings.TrimSpace(req.Title)
	if req.Status == "" {
		req.Status = model.StatusOpen
	}
	if req.Screenshots == nil {
		req.Screenshots = []string{}
	}
	if err := checkRequest(op, req); err != nil {
		return nil, err
	}

	var bug model.Bug
	err := c.doJSON(ctx, call{
		op:       op,
		fallback: "error creating bug",
		method:   http.MethodPost,
		path:     "/bugs",
		auth:     true,
		body:     req,
	}, &bug)
	if err != nil {
		return nil, err
	}
	if bug.ID == "" {
		return nil, &Error{Kind: KindDecode, Op: op, Message: "no bug id received from server"}
	}
	return &bug, nil
}

// UpdateBug replaces a bug's editable fields.
func (c *Client) UpdateBug(ctx context.Context, id model.BugID, req UpdateBugRequest) (*model.Bug, error) {
	const op = "update bug"
	if id == "" {
		return nil, validationError(op, "bug id is required")
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Screenshots == nil {
		req.Screenshots = []string{}
	}
	if err := checkRequest(op, req); err != nil {
		return nil, err
	}

	var bug model.Bug
	err := c.doJSON(ctx, call{
		op:       op,
		fallback: "error updating bug",
		method:   http.MethodPatch,
		path:     "/bugs/" + url.PathEscape(string(id)),
		auth:     true,
		body:     req,
	}, &bug)
	if err != nil {
		return nil, err
	}
	if bug.ID == "" {
		bug.ID = id
	}
	return &bug, nil
}

// UpdateBugStatus requests a status change. Only the four known statuses are
// sent; whether the transition is allowed is up to the server.
func (c *Client) UpdateBugStatus(ctx context.Context, id model.BugID, status model.Status) error {
	const op = "update status"
	if id == "" {
		return validationError(op, "bug id is required")
	}
	if !status.Valid() {
		return validationError(op, "invalid status "+string(status))
	}

	return c.doJSON(ctx, call{
		op:       op,
		fallback: "error updating status",
		method:   http.MethodPatch,
		path:     "/bugs/" + url.PathEscape(string(id)) + "/status",
		auth:     true,
		body:     statusRequest{Status: status},
	}, nil)
}

// UploadScreenshot attaches one image to a bug and returns its public URL.
// File validation (type, size) is the caller's job; see package upload.
func (c *Client) UploadScreenshot(ctx context.Context, bugID model.BugID, file File) (string, error) {
	const (
		op       = "upload screenshot"
		fallback = "error uploading image"
	)
	if bugID == "" {
		return "", validationError(op, "bug id is required")
	}
	if len(file.Data) == 0 {
		return "", validationError(op, "file is not valid")
	}

	body, contentType, err := multipartBody(file, string(bugID))
	if err != nil {
		return "", &Error{Kind: KindValidation, Op: op, Message: "file is not valid", Err: err}
	}

	respBody, err := c.send(ctx, call{
		op:          op,
		fallback:    fallback,
		method:      http.MethodPost,
		path:        "/bugs/upload",
		auth:        true,
		raw:         body,
		contentType: contentType,
	})
	if err != nil {
		return "", err
	}

	var resp uploadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil || resp.url() == "" {
		return "", &Error{Kind: KindDecode, Op: op, Message: "no url received from server", Err: err}
	}
	return resp.url(), nil
}
