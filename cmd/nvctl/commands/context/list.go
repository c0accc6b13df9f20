package context

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/internal/cli/credentials"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured contexts",
	Long: `List all configured server contexts.

Shows the context name, server URL, and username for each saved context.
The current context is marked with an asterisk (*).

Examples:
  # List contexts as table
  nvctl context list

  # List as JSON
  nvctl context list -o json`,
	RunE: runContextList,
}

// ContextInfo represents context information for output.
type ContextInfo struct {
	Name      string `json:"name" yaml:"name"`
	Current   bool   `json:"current" yaml:"current"`
	ServerURL string `json:"server_url" yaml:"server_url"`
	Username  string `json:"username,omitempty" yaml:"username,omitempty"`
	LoggedIn  bool   `json:"logged_in" yaml:"logged_in"`
}

// ContextList is a list of contexts for table rendering.
type ContextList []ContextInfo

// Headers implements TableRenderer.
func (cl ContextList) Headers() []string {
	return []string{"", "NAME", "SERVER", "USER", "LOGGED IN"}
}

// Rows implements TableRenderer.
func (cl ContextList) Rows() [][]string {
	rows := make([][]string, 0, len(cl))
	for _, c := range cl {
		current := ""
		if c.Current {
			current = "*"
		}
		rows = append(rows, []string{current, c.Name, c.ServerURL, cmdutil.EmptyOr(c.Username, "-"), cmdutil.BoolToYesNo(c.LoggedIn)})
	}
	return rows
}

func runContextList(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	names := store.ContextNames()
	sort.Strings(names)
	current := store.CurrentName()

	contexts := make(ContextList, 0, len(names))
	for _, name := range names {
		sess, err := store.Context(name)
		if err != nil {
			continue
		}
		contexts = append(contexts, ContextInfo{
			Name:      name,
			Current:   name == current,
			ServerURL: sess.ServerURL,
			Username:  sess.Username,
			LoggedIn:  sess.LoggedIn() && !sess.TokenExpired(),
		})
	}

	return cmdutil.PrintOutput(os.Stdout, contexts, len(contexts) == 0,
		"No contexts configured. Run 'nvctl login' to create one.", contexts)
}
