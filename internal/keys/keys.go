package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	Select key.Binding
	Back   key.Binding
	Quit   key.Binding

	Command key.Binding
	Help    key.Binding
	Refresh key.Binding

	// Bug actions
	New    key.Binding
	Edit   key.Binding
	Status key.Binding

	// Facet filters
	FilterDate    key.Binding
	FilterStatus  key.Binding
	FilterCreator key.Binding
	ClearFilters  key.Binding

	// Form
	RemoveImage key.Binding
	Submit      key.Binding

	// Session
	Register key.Binding
	Logout   key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open bug"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new bug"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit bug"),
		),
		Status: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "change status"),
		),
		FilterDate: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "cycle date"),
		),
		FilterStatus: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "cycle status"),
		),
		FilterCreator: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "cycle creator"),
		),
		ClearFilters: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "show all"),
		),
		RemoveImage: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "remove image"),
		),
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save bug"),
		),
		Register: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "login/register"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "log out"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.New, k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.Command, k.Help, k.Refresh, k.Logout},
		{k.FilterDate, k.FilterStatus, k.FilterCreator, k.ClearFilters},
		{k.New, k.Edit, k.Status, k.RemoveImage, k.Submit},
	}
}
