package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/keys"
	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/theme"
	uiconfig "github.com/nhle/bugtracker/internal/ui/config"
)

func configCommands(opts *options) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit settings",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the settings in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config file:     %s\n", opts.configPath)
			fmt.Fprintf(out, "api.base_url:    %s\n", cfg.API.BaseURL)
			fmt.Fprintf(out, "session.backend: %s\n", cfg.Session.Backend)
			fmt.Fprintf(out, "session.path:    %s\n", cfg.Session.Path)
			fmt.Fprintf(out, "log.level:       %s\n", cfg.Log.Level)
			fmt.Fprintf(out, "log.file:        %s\n", cfg.Log.File)
			fmt.Fprintf(out, "display.theme:   %s\n", cfg.Display.Theme)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Edit settings interactively and check the API address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			if err := theme.Apply(cfg.Display.Theme); err != nil {
				return err
			}

			editor := uiconfig.New(opts.configPath, *cfg, probeAPI, keys.DefaultKeyMap())
			final, err := tea.NewProgram(settingsProgram{editor: editor}, tea.WithContext(cmd.Context())).Run()
			if err != nil {
				return fmt.Errorf("running settings editor: %w", err)
			}
			if p, ok := final.(settingsProgram); ok && p.saved {
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", opts.configPath)
			}
			return nil
		},
	})

	return configCmd
}

func (o *options) loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.apiURL != "" {
		cfg.API.BaseURL = o.apiURL
	}
	return cfg, nil
}

func probeAPI(ctx context.Context, baseURL string) error {
	return api.New(baseURL, nil).Ping(ctx)
}

// settingsProgram runs the settings editor as a standalone program.
type settingsProgram struct {
	editor uiconfig.Model
	saved  bool
}

func (p settingsProgram) Init() tea.Cmd {
	return p.editor.Init()
}

func (p settingsProgram) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case uiconfig.DoneMsg:
		p.saved = msg.Saved
		return p, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return p, tea.Quit
		}
	}

	var cmd tea.Cmd
	p.editor, cmd = p.editor.Update(msg)
	return p, cmd
}

func (p settingsProgram) View() string {
	return p.editor.View()
}
