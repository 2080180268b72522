package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/finsim/plan-simulator/internal/domain"
)

// ErrUnsupportedFormat is returned for format names with no registered formatter.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// GenerateReport runs the named formatter and writes its output to a
// timestamped file, returning the filename.
func GenerateReport(result *domain.MonteCarloResult, format string) (string, error) {
	f := GetFormatterByName(format)
	if f == nil {
		return "", fmt.Errorf("%w: %q. Try one of: %s (aliases: %s)",
			ErrUnsupportedFormat, format,
			strings.Join(AvailableFormatterNames(), ", "),
			strings.Join(AvailableFormatAliases(), ", "))
	}
	return WriteFormatted(f, result, ExtensionFor(f.Name()))
}

// ExtensionFor maps a formatter name to its report file extension.
func ExtensionFor(name string) string {
	switch {
	case strings.Contains(name, "csv"):
		return "csv"
	case name == "json":
		return "json"
	case name == "html":
		return "html"
	default:
		return "txt"
	}
}
