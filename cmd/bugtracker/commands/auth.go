package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/model"
)

func authCommands(opts *options) []*cobra.Command {
	return []*cobra.Command{
		loginCmd(opts),
		registerCmd(opts),
		logoutCmd(opts),
		whoamiCmd(opts),
	}
}

func loginCmd(opts *options) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Long:  `Sign in with email and password. Missing values are prompted for.`,
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")

	cmd.RunE = opts.with(func(cmd *cobra.Command, rt *runtime, _ []string) error {
		if email == "" || password == "" {
			if err := promptCredentials(&email, &password); err != nil {
				return err
			}
		}

		user, err := rt.svc.Login(cmd.Context(), email, password)
		if err != nil {
			return fmt.Errorf("login failed: %s", api.Message(err))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", describeUser(user, email))
		return nil
	})
	return cmd
}

func registerCmd(opts *options) *cobra.Command {
	var req api.RegisterRequest
	var role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account. Missing values are prompted for. When the server
signs the new account in right away the session is remembered.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	cmd.Flags().StringVar(&role, "role", string(model.RoleTester), "tester, developer or admin")

	cmd.RunE = opts.with(func(cmd *cobra.Command, rt *runtime, _ []string) error {
		req.Role = model.Role(role)
		if req.Name == "" || req.Email == "" || req.Password == "" {
			if err := promptRegistration(&req); err != nil {
				return err
			}
		}

		user, loggedIn, err := rt.svc.Register(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("registration failed: %s", api.Message(err))
		}

		out := cmd.OutOrStdout()
		if loggedIn {
			fmt.Fprintf(out, "Account created. Signed in as %s\n", describeUser(user, req.Email))
			return nil
		}
		fmt.Fprintln(out, "Account created. Run `bugtracker login` to sign in.")
		return nil
	})
	return cmd
}

func logoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: opts.with(func(cmd *cobra.Command, rt *runtime, _ []string) error {
			if err := rt.svc.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		}),
	}
}

func whoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: opts.with(func(cmd *cobra.Command, rt *runtime, _ []string) error {
			out := cmd.OutOrStdout()
			if !rt.sessions.Authenticated() {
				fmt.Fprintln(out, "Not signed in.")
				return nil
			}
			user, ok := rt.sessions.User()
			if !ok {
				fmt.Fprintln(out, "Signed in (no profile stored).")
				return nil
			}
			fmt.Fprintf(out, "%s <%s>\n", user.Name, user.Email)
			if user.Role != "" {
				fmt.Fprintf(out, "Role: %s\n", user.Role)
			}
			return nil
		}),
	}
}

func describeUser(u *model.User, fallback string) string {
	if u == nil || u.Name == "" {
		return fallback
	}
	return u.Name
}

func promptCredentials(email, password *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Email").Value(email).Validate(required("email")),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(password).Validate(required("password")),
		),
	).Run()
}

func promptRegistration(req *api.RegisterRequest) error {
	roles := make([]huh.Option[model.Role], 0, len(model.Roles()))
	for _, r := range model.Roles() {
		roles = append(roles, huh.NewOption(string(r), r))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&req.Name).Validate(required("name")),
			huh.NewInput().Title("Email").Value(&req.Email).Validate(required("email")),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&req.Password).Validate(required("password")),
			huh.NewSelect[model.Role]().Title("Role").Options(roles...).Value(&req.Role),
		),
	).Run()
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}
