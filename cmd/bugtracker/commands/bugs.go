package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/bugset"
	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/tracker"
	"github.com/nhle/bugtracker/internal/upload"
)

func bugCommands(opts *options) *cobra.Command {
	bugsCmd := &cobra.Command{
		Use:   "bugs",
		Short: "List, inspect and edit bugs",
		Long: `Bug commands for scripting.

Available commands:
  list    - List bugs grouped by the day they were reported
  show    - Show one bug
  create  - Report a bug, optionally with screenshots
  edit    - Change the title or description, or add screenshots
  status  - Move a bug to another status`,
	}

	bugsCmd.AddCommand(listBugsCmd(opts))
	bugsCmd.AddCommand(showBugCmd(opts))
	bugsCmd.AddCommand(createBugCmd(opts))
	bugsCmd.AddCommand(editBugCmd(opts))
	bugsCmd.AddCommand(statusBugCmd(opts))

	return bugsCmd
}

func listBugsCmd(opts *options) *cobra.Command {
	var date, status, creator string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bugs grouped by day",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&date, "date", "", "only bugs reported on this day (YYYY-MM-DD, UTC)")
	cmd.Flags().StringVar(&status, "status", "", "only bugs with this status")
	cmd.Flags().StringVar(&creator, "creator", "", "only bugs reported by this person")

	cmd.RunE = opts.with(func(cmd *cobra.Command, rt *runtime, _ []string) error {
		filter, err := buildFilter(date, status, creator)
		if err != nil {
			return err
		}
		if err := requireLogin(rt); err != nil {
			return err
		}

		bugs, err := rt.svc.ListBugs(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing bugs: %s", api.Message(err))
		}

		visible := filter.Apply(bugs)
		printGroups(cmd.OutOrStdout(), bugset.GroupByDate(visible))
		fmt.Fprintln(cmd.OutOrStdout(), bugset.Summary(filter, len(visible)))
		return nil
	})
	return cmd
}

func buildFilter(date, status, creator string) (bugset.Filter, error) {
	f := bugset.Filter{Date: date, Creator: creator}
	if date != "" {
		if _, err := time.Parse(bugset.KeyLayout, date); err != nil {
			return f, fmt.Errorf("invalid date %q: use YYYY-MM-DD", date)
		}
	}
	if status != "" {
		st, err := model.ParseStatus(status)
		if err != nil {
			return f, err
		}
		f.Status = string(st)
	}
	return f, nil
}

func showBugCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one bug",
		Args:  cobra.ExactArgs(1),
		RunE: opts.with(func(cmd *cobra.Command, rt *runtime, args []string) error {
			if err := requireLogin(rt); err != nil {
				return err
			}
			bug, err := rt.svc.GetBug(cmd.Context(), model.BugID(args[0]))
			if err != nil {
				return fmt.Errorf("fetching bug %s: %s", args[0], api.Message(err))
			}
			printBug(cmd.OutOrStdout(), *bug)
			return nil
		}),
	}
}

func createBugCmd(opts *options) *cobra.Command {
	var draft tracker.Draft
	var images []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Report a bug",
		Long: `Report a bug. Screenshots given with --image are uploaded after the bug
is saved; if some of them fail the bug is kept and a warning is printed.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&draft.Title, "title", "", "bug title")
	cmd.Flags().StringVar(&draft.Description, "description", "", "bug description")
	cmd.Flags().StringArrayVar(&images, "image", nil, "screenshot to attach (repeatable)")
	_ = cmd.MarkFlagRequired("title")

	cmd.RunE = opts.with(func(cmd *cobra.Command, rt *runtime, _ []string) error {
		draft.Title = strings.TrimSpace(draft.Title)
		if draft.Title == "" {
			return errors.New("title is required")
		}
		if err := requireLogin(rt); err != nil {
			return err
		}

		pending, err := pickImages(images)
		if err != nil {
			return err
		}

		res, err := rt.svc.CreateBug(cmd.Context(), draft, pending)
		if err != nil {
			return fmt.Errorf("creating bug: %s", api.Message(err))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created bug #%s\n", res.Bug.ID)
		reportUpload(cmd, res)
		return nil
	})
	return cmd
}

func editBugCmd(opts *options) *cobra.Command {
	var title, description string
	var images []string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a bug's title or description, or add screenshots",
		Long: `Edit a bug. Fields that are not given keep their current value; status,
reporter and existing screenshots are never changed by this command.`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringArrayVar(&images, "image", nil, "screenshot to attach (repeatable)")

	cmd.RunE = opts.with(func(cmd *cobra.Command, rt *runtime, args []string) error {
		if err := requireLogin(rt); err != nil {
			return err
		}

		bug, err := rt.svc.GetBug(cmd.Context(), model.BugID(args[0]))
		if err != nil {
			return fmt.Errorf("fetching bug %s: %s", args[0], api.Message(err))
		}

		draft := tracker.Draft{Title: bug.Title, Description: bug.Description}
		if cmd.Flags().Changed("title") {
			draft.Title = strings.TrimSpace(title)
		}
		if cmd.Flags().Changed("description") {
			draft.Description = description
		}
		if draft.Title == "" {
			return errors.New("title is required")
		}

		pending, err := pickImages(images)
		if err != nil {
			return err
		}

		res, err := rt.svc.EditBug(cmd.Context(), *bug, draft, pending)
		if err != nil {
			return fmt.Errorf("saving bug %s: %s", bug.ID, api.Message(err))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Updated bug #%s\n", res.Bug.ID)
		reportUpload(cmd, res)
		return nil
	})
	return cmd
}

func statusBugCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a bug to another status",
		Long:  `Move a bug to open, in_progress, closed or reopened. The server decides whether the move is allowed.`,
		Args:  cobra.ExactArgs(2),
		RunE: opts.with(func(cmd *cobra.Command, rt *runtime, args []string) error {
			status, err := model.ParseStatus(args[1])
			if err != nil {
				return err
			}
			if err := requireLogin(rt); err != nil {
				return err
			}

			bug, err := rt.svc.GetBug(cmd.Context(), model.BugID(args[0]))
			if err != nil {
				return fmt.Errorf("fetching bug %s: %s", args[0], api.Message(err))
			}

			updated, err := rt.svc.ChangeStatus(cmd.Context(), *bug, status)
			if errors.Is(err, tracker.ErrSameStatus) {
				return fmt.Errorf("bug #%s is already %s", bug.ID, status.Label())
			}
			if err != nil {
				return fmt.Errorf("changing status: %s", api.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Bug #%s is now %s\n", updated.ID, updated.Status.Label())
			return nil
		}),
	}
}

// pickImages loads every path up front so a bad file fails the command
// before anything is sent.
func pickImages(paths []string) ([]upload.Image, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	set := upload.NewPendingSet()
	expanded := make([]string, len(paths))
	for i, p := range paths {
		expanded[i] = model.ExpandHome(p)
	}
	if errs := set.AddAll(expanded); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return set.Images(), nil
}

func reportUpload(cmd *cobra.Command, res tracker.Result) {
	if res.Upload.TotalCount > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d of %d screenshots\n", res.Upload.UploadedCount, res.Upload.TotalCount)
	}
	if w := res.Warning(); w != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: "+w)
	}
}

func printGroups(w io.Writer, groups []bugset.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No bugs.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, g := range groups {
		fmt.Fprintf(tw, "%s (%d)\n", g.Label, len(g.Bugs))
		for _, b := range g.Bugs {
			fmt.Fprintf(tw, "  #%s\t%s\t%s\t%s\t%s\n",
				b.ID, b.Status.Label(), b.Title, b.Creator(), age(b.CreatedAt))
		}
	}
	_ = tw.Flush()
}

func printBug(w io.Writer, b model.Bug) {
	fmt.Fprintf(w, "#%s %s\n", b.ID, b.Title)
	fmt.Fprintf(w, "Status:      %s\n", b.Status.Label())
	fmt.Fprintf(w, "Reported by: %s\n", b.Creator())
	if !b.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created:     %s (%s)\n", b.CreatedAt.Local().Format("Jan 2, 2006 15:04"), age(b.CreatedAt))
	}
	if b.Description != "" {
		fmt.Fprintf(w, "\n%s\n", b.Description)
	}
	if urls := b.ScreenshotURLs(); len(urls) > 0 {
		fmt.Fprintf(w, "\nScreenshots (%d):\n", len(urls))
		for _, u := range urls {
			fmt.Fprintf(w, "  %s\n", u)
		}
	}
}

func age(t time.Time) string {
	if t.IsZero() {
		return "just now"
	}
	return humanize.Time(t)
}
