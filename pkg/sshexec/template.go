package sshexec

import (
	"fmt"
	"regexp"
	"strings"

	sherrors "github.com/wpmend-dev/wpmend-agent/pkg/errors"
)

// MaxParamValueLength caps substituted parameter values, bounding both the
// injection surface and remote resource use.
const MaxParamValueLength = 256

var (
	paramKeyPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)
)

// RenderTemplate substitutes {{key}} placeholders with sanitized values.
// Every parameter must be consumed and every placeholder must be filled;
// anything else is an error rather than a silently partial command.
func RenderTemplate(template string, params map[string]string) (string, error) {
	for key := range params {
		if !paramKeyPattern.MatchString(key) {
			return "", &sherrors.ValidationError{
				Field:  "params",
				Reason: fmt.Sprintf("parameter key %q is not a valid identifier", key),
			}
		}
	}

	rendered := template
	consumed := make(map[string]bool, len(params))

	for _, match := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		key := match[1]

		value, ok := params[key]

		if !ok {
			return "", &sherrors.ValidationError{
				Field:  "template",
				Reason: fmt.Sprintf("no value supplied for placeholder %q", key),
			}
		}

		rendered = strings.ReplaceAll(rendered, match[0], sanitizeValue(value))
		consumed[key] = true
	}

	for key := range params {
		if !consumed[key] {
			return "", &sherrors.ValidationError{
				Field:  "params",
				Reason: fmt.Sprintf("parameter %q has no placeholder in template", key),
			}
		}
	}

	if placeholderPattern.MatchString(rendered) {
		return "", &sherrors.ValidationError{
			Field:  "template",
			Reason: "unconsumed placeholders remain after substitution",
		}
	}

	return rendered, nil
}
