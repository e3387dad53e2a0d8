// Package upload validates screenshots and sends them to the bug API
// concurrently, reporting an aggregate outcome.
package upload

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/model"
)

// Uploader sends one file. *api.Client satisfies it.
type Uploader interface {
	UploadScreenshot(ctx context.Context, bugID model.BugID, file api.File) (string, error)
}

// Result is the outcome for a single image.
type Result struct {
	Name string
	URL  string
	Err  error
}

// OK reports whether the image was uploaded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Outcome aggregates an UploadAll call.
//
// All uploads succeeded: Success is true and URLs holds every URL in input
// order. Otherwise Success is false, Partial reports whether at least one
// image made it, SuccessfulURLs holds those in input order and Error reads
// "k of n images failed to upload".
type Outcome struct {
	Success        bool
	Partial        bool
	UploadedCount  int
	TotalCount     int
	URLs           []string
	SuccessfulURLs []string
	Error          string

	// Results has one entry per input image, in input order.
	Results []Result
}

// FailedCount is the number of images that were rejected or failed.
func (o Outcome) FailedCount() int {
	return o.TotalCount - o.UploadedCount
}

// Coordinator uploads batches of images for a bug.
type Coordinator struct {
	uploader Uploader
	log      *zap.Logger
}

// NewCoordinator creates a Coordinator. log may be nil.
func NewCoordinator(uploader Uploader, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{uploader: uploader, log: log}
}

// UploadAll validates each image and uploads the valid ones concurrently,
// one request per image. Invalid images never reach the network. It waits
// for every upload to finish before returning; one failure does not stop
// the others. Nothing is rolled back on failure.
func (c *Coordinator) UploadAll(ctx context.Context, bugID model.BugID, images []Image) Outcome {
	if len(images) == 0 {
		return Outcome{Success: true, URLs: []string{}, SuccessfulURLs: []string{}}
	}

	mapper := iter.Mapper[Image, Result]{MaxGoroutines: len(images)}
	results := mapper.Map(images, func(img *Image) Result {
		return c.uploadOne(ctx, bugID, *img)
	})

	return summarize(results)
}

func (c *Coordinator) uploadOne(ctx context.Context, bugID model.BugID, img Image) Result {
	res := Result{Name: img.Name}

	if err := Validate(img); err != nil {
		c.log.Info("image rejected",
			zap.String("bug_id", bugID.String()),
			zap.String("name", img.Name),
			zap.Int64("size", img.ByteSize()),
			zap.Error(err),
		)
		res.Err = err
		return res
	}

	url, err := c.uploader.UploadScreenshot(ctx, bugID, api.File{
		Name:     img.Name,
		MIMEType: img.MIMEType,
		Data:     img.Data,
	})
	if err != nil {
		c.log.Warn("image upload failed",
			zap.String("bug_id", bugID.String()),
			zap.String("name", img.Name),
			zap.Error(err),
		)
		res.Err = err
		return res
	}

	res.URL = url
	return res
}

func summarize(results []Result) Outcome {
	out := Outcome{
		TotalCount:     len(results),
		Results:        results,
		SuccessfulURLs: []string{},
	}

	for _, r := range results {
		if r.OK() {
			out.UploadedCount++
			out.SuccessfulURLs = append(out.SuccessfulURLs, r.URL)
		}
	}

	if out.UploadedCount == out.TotalCount {
		out.Success = true
		out.URLs = out.SuccessfulURLs
		return out
	}

	out.Partial = out.UploadedCount > 0
	out.Error = fmt.Sprintf("%d of %d images failed to upload", out.FailedCount(), out.TotalCount)
	return out
}
