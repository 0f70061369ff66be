package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the bindings shared by every view. List navigation and filtering
// keys come from [list.Model] itself.
type keyMap struct {
	open    key.Binding
	publish key.Binding
	back    key.Binding
	confirm key.Binding
	cancel  key.Binding
	drafts  key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		publish: key.NewBinding(key.WithKeys("enter", "p"), key.WithHelp("enter", "post")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		confirm: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "post")),
		cancel:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "cancel")),
		drafts:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "drafts")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// forView returns the bindings listed in the help line of v.
func (k keyMap) forView(v ViewState) []key.Binding {
	switch v {
	case DraftListView:
		return []key.Binding{k.open, k.quit}
	case PreviewView:
		return []key.Binding{k.publish, k.back, k.quit}
	case ConfirmView:
		return []key.Binding{k.confirm, k.cancel, k.quit}
	case ResultView:
		return []key.Binding{k.drafts, k.quit}
	default:
		return nil
	}
}
