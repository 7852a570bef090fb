package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/snowcap/emarsys-cli/internal/api"
	"github.com/snowcap/emarsys-cli/internal/config"
	"github.com/snowcap/emarsys-cli/internal/mapping"
	"github.com/snowcap/emarsys-cli/internal/resolve"
)

// HandleError returns a user-friendly message with suggestions for err.
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder

	var circuitErr *api.CircuitBreakerError
	var serverErr *api.ServerError
	var clientErr *api.ClientError
	var lookupErr *mapping.LookupError
	var notFoundErr *resolve.NotFoundError
	var ambiguousErr *resolve.AmbiguousError

	switch {
	case errors.Is(err, config.ErrNotConfigured):
		msg.WriteString("No Emarsys credentials configured.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: emarsys auth login --username API_USER --secret API_SECRET\n")
		msg.WriteString("  - Or export EMARSYS_USERNAME and EMARSYS_SECRET\n")

	case errors.As(err, &circuitErr):
		msg.WriteString("Emarsys API temporarily unreachable (circuit breaker open).\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Several connection attempts failed in a row\n")
		msg.WriteString("  - Wait 30 seconds and retry\n")

	case errors.As(err, &lookupErr):
		fmt.Fprintf(&msg, "Mapping error: %s\n\n", err.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: emarsys fields list\n")
		msg.WriteString("  - Add the name to an INI file and pass --fields-file or --choices-file\n")
		msg.WriteString("  - Numeric field ids are accepted as-is\n")

	case errors.As(err, &ambiguousErr):
		fmt.Fprintf(&msg, "%s\n\n", ambiguousErr.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Pass the numeric id instead of the name\n")

	case errors.As(err, &notFoundErr):
		fmt.Fprintf(&msg, "%s\n\n", notFoundErr.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the spelling or pass the numeric id\n")

	case errors.As(err, &serverErr) && serverErr.StatusCode != 0:
		fmt.Fprintf(&msg, "API error: %s\n\n", serverErr.Error())
		msg.WriteString(suggestionsForServerError(serverErr))

	case errors.As(err, &clientErr):
		fmt.Fprintf(&msg, "Error: %s\n", clientErr.Message)
		if clientErr.Code != 0 {
			fmt.Fprintf(&msg, "Reply code: %d (%s)\n", clientErr.Code, clientErr.Code)
		}

	case strings.Contains(err.Error(), "connection refused"):
		msg.WriteString("Connection refused.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check --base-url: emarsys auth status\n")
		msg.WriteString("  - Check your network connection\n")

	case strings.Contains(err.Error(), "no such host"):
		msg.WriteString("DNS resolution failed.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the spelling of --base-url\n")
		msg.WriteString("  - Verify your DNS settings\n")

	case strings.Contains(err.Error(), "certificate"):
		msg.WriteString("TLS certificate error.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Verify the server certificate of the API root\n")
		msg.WriteString("  - Ensure --base-url uses https://\n")

	default:
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
	}

	return msg.String()
}

func suggestionsForServerError(se *api.ServerError) string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggestions:\n")

	switch {
	case se.Code == api.ReplyContactNotFound:
		suggestions.WriteString("  - No contact matches the key value\n")
		suggestions.WriteString("  - Check --key-id names the field you searched by\n")

	case se.Code == api.ReplyContactAlreadyExists:
		suggestions.WriteString("  - The contact already exists\n")
		suggestions.WriteString("  - Use: emarsys contacts update or emarsys contacts upsert\n")

	case se.Code == api.ReplyInvalidKeyField || se.Code == api.ReplyMissingKeyField:
		suggestions.WriteString("  - Pass --key-id with a field name or id, e.g. --key-id email\n")

	case se.StatusCode == 401:
		suggestions.WriteString("  - The WSSE signature was rejected\n")
		suggestions.WriteString("  - Check the API username and secret: emarsys auth status\n")
		suggestions.WriteString("  - Check the system clock; signatures carry a timestamp\n")

	case se.StatusCode == 403:
		suggestions.WriteString("  - The API user lacks permission for this endpoint\n")

	case se.StatusCode == 404:
		suggestions.WriteString("  - The resource doesn't exist\n")
		suggestions.WriteString("  - Check the id is correct\n")

	case se.StatusCode == 429:
		suggestions.WriteString("  - The API rate limit was reached\n")
		suggestions.WriteString("  - Wait and retry in a few seconds\n")

	case se.StatusCode >= 500:
		suggestions.WriteString("  - Server error - not your fault\n")
		suggestions.WriteString("  - Wait and retry\n")

	default:
		suggestions.WriteString("  - Check the request parameters\n")
		suggestions.WriteString("  - Use --debug to see the request\n")
	}

	return suggestions.String()
}
