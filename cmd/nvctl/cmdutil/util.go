// Package cmdutil provides shared utilities for nvctl commands.
package cmdutil

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nntpvault/nntpvault/internal/cli/credentials"
	"github.com/nntpvault/nntpvault/internal/cli/output"
	"github.com/nntpvault/nntpvault/internal/cli/prompt"
	"github.com/nntpvault/nntpvault/pkg/apiclient"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ServerURL string
	Token     string
	Output    string
	NoColor   bool
	Verbose   bool
}

// GetAuthenticatedClient returns an API client configured from the
// current context. It uses the --server and --token flags if provided,
// otherwise falls back to stored credentials. If the access token is
// expired but a refresh token exists, it refreshes automatically.
func GetAuthenticatedClient() (*apiclient.Client, error) {
	// Explicit flags bypass the credential store entirely.
	if Flags.ServerURL != "" && Flags.Token != "" {
		client := apiclient.New(Flags.ServerURL)
		client.SetToken(Flags.Token)
		return client, nil
	}

	store, err := credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	sess, err := store.Current()
	if err != nil {
		return nil, fmt.Errorf("not logged in. Run 'nvctl login' first")
	}

	url := sess.ServerURL
	if Flags.ServerURL != "" {
		url = Flags.ServerURL
	}
	if url == "" {
		return nil, fmt.Errorf("no server URL configured. Run 'nvctl login --server <url>' first")
	}

	tok := sess.AccessToken
	if Flags.Token != "" {
		tok = Flags.Token
	}

	if Flags.Token == "" && sess.TokenExpired() && sess.RefreshToken != "" {
		client := apiclient.New(url)
		tokens, err := client.Refresh(sess.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("session expired. Run 'nvctl login' to re-authenticate")
		}
		if err := store.UpdateTokens(tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to save refreshed tokens: %w", err)
		}
		tok = tokens.AccessToken
	}

	if tok == "" {
		return nil, fmt.Errorf("no access token. Run 'nvctl login' first")
	}

	client := apiclient.New(url)
	client.SetToken(tok)
	return client, nil
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// IsColorDisabled returns whether color output is disabled.
func IsColorDisabled() bool {
	return Flags.NoColor
}

// IsVerbose returns whether verbose output is enabled.
func IsVerbose() bool {
	return Flags.Verbose
}

// PrintOutput prints data in the selected format (JSON, YAML, or table).
// For table format, it displays emptyMsg if the data set is empty,
// otherwise renders the table.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, table output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, table)
	}
}

// PrintResource prints a single resource in the selected format. For
// table format it renders the detail pairs.
func PrintResource(w io.Writer, data any, pairs [][2]string) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		return output.PrintDetail(w, pairs)
	}
}

// PrintResourceWithSuccess prints a resource in JSON/YAML formats, or a
// success message in table format. Useful for create-style operations.
func PrintResourceWithSuccess(w io.Writer, data any, successMsg string) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		PrintSuccess(successMsg)
		return nil
	}
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	printer := output.NewPrinter(os.Stdout, format, !IsColorDisabled())
	printer.Success(msg)
}

// RunDeleteWithConfirmation prompts for confirmation (unless force is
// set) and runs deleteFn.
func RunDeleteWithConfirmation(resourceType, name string, force bool, deleteFn func() error) error {
	if !force {
		confirmed, err := prompt.Confirm(fmt.Sprintf("Delete %s '%s'?", resourceType, name), false)
		if err != nil {
			return HandleAbort(err)
		}
		if !confirmed {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := deleteFn(); err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%s '%s' deleted successfully", resourceType, name))
	return nil
}

// HandleAbort turns a Ctrl+C abort into a clean exit. Other errors pass
// through unchanged.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *apiclient.APIError
	return errors.As(err, &apiErr) && apiErr.IsNotFound()
}

// BoolToYesNo converts a boolean to "yes" or "no".
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// EmptyOr returns the value if not empty, otherwise the fallback.
// Useful for table display where empty fields should show "-".
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
