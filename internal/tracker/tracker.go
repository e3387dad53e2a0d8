// Package tracker implements the user-facing bug workflows on top of the
// API client, the session manager and the upload coordinator. Both the CLI
// and the terminal UI go through it.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/session"
	"github.com/nhle/bugtracker/internal/upload"
)

// ErrSameStatus is returned when a status change would be a no-op.
var ErrSameStatus = errors.New("bug already has that status")

// Draft holds the user-editable fields of a bug.
type Draft struct {
	Title       string
	Description string
}

// Result is returned by CreateBug and EditBug. The bug is saved even when
// some or all images failed; Upload says what happened to them.
type Result struct {
	Bug    *model.Bug
	Upload upload.Outcome
}

// Warning returns a message for a partial or failed upload, or "".
func (r Result) Warning() string {
	o := r.Upload
	switch {
	case o.Success:
		return ""
	case o.Partial:
		return fmt.Sprintf("bug saved, but only %d of %d images were uploaded", o.UploadedCount, o.TotalCount)
	default:
		return "bug saved, but image upload failed: " + o.Error
	}
}

// Service wires the workflows together.
type Service struct {
	client   *api.Client
	sessions *session.Manager
	uploads  *upload.Coordinator
	log      *zap.Logger
}

// New creates a Service. log may be nil.
func New(client *api.Client, sessions *session.Manager, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		client:   client,
		sessions: sessions,
		uploads:  upload.NewCoordinator(client, log.Named("upload")),
		log:      log,
	}
}

// Session returns the session manager.
func (s *Service) Session() *session.Manager {
	return s.sessions
}

// Login authenticates and stores the token and profile. Nothing is stored
// when the call fails.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	res, err := s.client.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		s.log.Info("login failed", zap.String("reason", api.Message(err)))
		return nil, err
	}

	if err := s.sessions.Set(ctx, res.Token, res.User, session.ReasonLogin); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	s.log.Info("logged in", zap.Bool("has_profile", res.User != nil))
	return res.User, nil
}

// Register creates an account. When the server also returns a token the new
// account is logged in; the returned bool reports whether that happened.
func (s *Service) Register(ctx context.Context, req api.RegisterRequest) (*model.User, bool, error) {
	res, err := s.client.Register(ctx, req)
	if err != nil {
		return nil, false, err
	}

	if res.Token == "" {
		return res.User, false, nil
	}
	if err := s.sessions.Set(ctx, res.Token, res.User, session.ReasonRegister); err != nil {
		return nil, false, fmt.Errorf("saving session: %w", err)
	}
	return res.User, true, nil
}

// Logout clears the stored session.
func (s *Service) Logout(ctx context.Context) error {
	return s.sessions.Clear(ctx)
}

// ListBugs fetches every bug.
func (s *Service) ListBugs(ctx context.Context) ([]model.Bug, error) {
	return s.client.ListBugs(ctx)
}

// GetBug fetches one bug.
func (s *Service) GetBug(ctx context.Context, id model.BugID) (*model.Bug, error) {
	return s.client.GetBug(ctx, id)
}

// ChangeStatus asks the server to move bug to status and returns the bug
// with the new status applied. The server decides whether the transition
// is allowed.
func (s *Service) ChangeStatus(ctx context.Context, bug model.Bug, status model.Status) (model.Bug, error) {
	if status == bug.Status {
		return bug, ErrSameStatus
	}
	if err := s.client.UpdateBugStatus(ctx, bug.ID, status); err != nil {
		return bug, err
	}
	bug.Status = status
	return bug, nil
}

// CreateBug creates a bug reported by the current user and then uploads the
// images. The bug is never rolled back because of an upload failure.
func (s *Service) CreateBug(ctx context.Context, d Draft, images []upload.Image) (Result, error) {
	var createdBy string
	if u, ok := s.sessions.User(); ok {
		createdBy = u.ID
	}

	bug, err := s.client.CreateBug(ctx, api.CreateBugRequest{
		Title:       d.Title,
		Description: strings.TrimSpace(d.Description),
		Status:      model.StatusOpen,
		CreatedBy:   createdBy,
		Screenshots: []string{},
	})
	if err != nil {
		return Result{}, err
	}

	s.log.Info("bug created", zap.String("bug_id", bug.ID.String()), zap.Int("images", len(images)))

	return s.attach(ctx, bug, images), nil
}

// EditBug saves title and description, keeping status, reporter and existing
// screenshots, then uploads any new images.
func (s *Service) EditBug(ctx context.Context, bug model.Bug, d Draft, images []upload.Image) (Result, error) {
	updated, err := s.client.UpdateBug(ctx, bug.ID, api.UpdateBugRequest{
		Title:       d.Title,
		Description: strings.TrimSpace(d.Description),
		Status:      bug.Status,
		CreatedBy:   bug.CreatedBy,
		Screenshots: bug.ScreenshotURLs(),
	})
	if err != nil {
		return Result{}, err
	}

	// The PATCH response may be partial; keep what we know locally.
	merged := bug
	merged.Title = strings.TrimSpace(d.Title)
	merged.Description = strings.TrimSpace(d.Description)
	if updated != nil && updated.Title != "" {
		merged.Title = updated.Title
		merged.Description = updated.Description
	}

	return s.attach(ctx, &merged, images), nil
}

func (s *Service) attach(ctx context.Context, bug *model.Bug, images []upload.Image) Result {
	res := Result{Bug: bug}
	if len(images) == 0 {
		res.Upload = upload.Outcome{Success: true, URLs: []string{}, SuccessfulURLs: []string{}}
		return res
	}

	res.Upload = s.uploads.UploadAll(ctx, bug.ID, images)
	for _, u := range res.Upload.SuccessfulURLs {
		bug.Screenshots = append(bug.Screenshots, model.Screenshot{URL: u})
	}
	if !res.Upload.Success {
		s.log.Warn("screenshot upload incomplete",
			zap.String("bug_id", bug.ID.String()),
			zap.Int("uploaded", res.Upload.UploadedCount),
			zap.Int("total", res.Upload.TotalCount),
		)
	}
	return res
}
