// Package templates renders transactional template previews using the
// Liquid template language, with validation warnings for variables the
// preview data does not define.
package templates

import (
	"crypto/md5"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// Previewer compiles and renders Liquid templates with caching.
type Previewer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template keyed by content hash
}

// Warning flags a template variable that is absent from the preview data.
type Warning struct {
	Variable string `json:"variable"`
	Message  string `json:"message"`
}

// Preview contains the rendered output and any validation warnings.
type Preview struct {
	Output   string    `json:"output"`
	Warnings []Warning `json:"warnings,omitempty"`
	Success  bool      `json:"success"`
}

// NewPreviewer creates a previewer with the console's custom filters.
func NewPreviewer() *Previewer {
	p := &Previewer{engine: liquid.NewEngine()}
	p.registerFilters()
	return p
}

func (p *Previewer) registerFilters() {
	// Fallback value: {{ contact.FNAME | default: "there" }}
	p.engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	// Capitalize first letter: {{ contact.FNAME | capitalize }}
	p.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	// Title case all words: {{ contact.LNAME | titlecase }}
	p.engine.RegisterFilter("titlecase", func(s string) string {
		words := strings.Fields(strings.ToLower(s))
		for i, w := range words {
			words[i] = strings.ToUpper(string(w[0])) + w[1:]
		}
		return strings.Join(words, " ")
	})

	// Truncate with ellipsis: {{ subject | truncate: 50 }}
	p.engine.RegisterFilter("truncate", func(s string, length int) string {
		if len(s) <= length {
			return s
		}
		if length <= 3 {
			return s[:length]
		}
		return s[:length-3] + "..."
	})

	// URL encode: {{ contact.EMAIL | urlencode }}
	p.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	// HTML escape: {{ params.user_input | escape }}
	p.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	// Extract domain from an address: {{ contact.EMAIL | email_domain }}
	p.engine.RegisterFilter("email_domain", func(email string) string {
		parts := strings.Split(email, "@")
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	})

	// Mask an address for on-screen display: {{ contact.EMAIL | mask_email }}
	p.engine.RegisterFilter("mask_email", func(email string) string {
		parts := strings.Split(email, "@")
		if len(parts) != 2 {
			return email
		}
		local := parts[0]
		if len(local) <= 2 {
			return local + "***@" + parts[1]
		}
		return local[:2] + "***@" + parts[1]
	})

	// Thousand separators: {{ params.points | number_with_delimiter }}
	p.engine.RegisterFilter("number_with_delimiter", func(value interface{}) string {
		var n int64
		switch v := value.(type) {
		case int:
			n = int64(v)
		case int64:
			n = v
		case float64:
			n = int64(v)
		default:
			return fmt.Sprintf("%v", value)
		}

		str := fmt.Sprintf("%d", n)
		if n < 0 {
			str = str[1:]
		}

		var out strings.Builder
		for i, c := range str {
			if i > 0 && (len(str)-i)%3 == 0 {
				out.WriteRune(',')
			}
			out.WriteRune(c)
		}

		if n < 0 {
			return "-" + out.String()
		}
		return out.String()
	})
}

// Validate compiles a template and returns any syntax error.
func (p *Previewer) Validate(content string) error {
	_, err := p.engine.ParseString(content)
	return err
}

// Render parses and renders a template against the given data. Variables
// the data does not define produce warnings but do not fail the render;
// a Liquid syntax or render error does.
func (p *Previewer) Render(content string, data map[string]interface{}) (*Preview, error) {
	tpl, err := p.parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	warnings := p.unknownVariables(content, data)

	output, err := tpl.RenderString(data)
	if err != nil {
		return nil, fmt.Errorf("rendering template: %w", err)
	}

	return &Preview{
		Output:   output,
		Warnings: warnings,
		Success:  len(warnings) == 0,
	}, nil
}

// ClearCache drops all compiled templates.
func (p *Previewer) ClearCache() {
	p.cache = sync.Map{}
}

// parse returns a compiled template, reusing the cache for repeated
// previews of the same content.
func (p *Previewer) parse(content string) (*liquid.Template, error) {
	key := fmt.Sprintf("%x", md5.Sum([]byte(content)))
	if cached, ok := p.cache.Load(key); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := p.engine.ParseString(content)
	if err != nil {
		return nil, err
	}
	p.cache.Store(key, tpl)
	return tpl, nil
}

// Matches {{ var }}, {{ var | filter }} and {{ var.nested }} output tags.
var varPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*?)(?:\s*\||\s*\}\})`)

// unknownVariables lists template variables with no value in the data.
func (p *Previewer) unknownVariables(content string, data map[string]interface{}) []Warning {
	var warnings []Warning
	seen := make(map[string]bool)

	for _, match := range varPattern.FindAllStringSubmatch(content, -1) {
		if len(match) < 2 {
			continue
		}
		name := strings.TrimSpace(match[1])
		if seen[name] || isReservedWord(name) {
			continue
		}
		seen[name] = true

		if !pathDefined(name, data) {
			warnings = append(warnings, Warning{
				Variable: name,
				Message:  fmt.Sprintf("variable %q is not defined in the preview data", name),
			})
		}
	}

	return warnings
}

// pathDefined walks a dotted variable path through nested maps.
func pathDefined(path string, data map[string]interface{}) bool {
	var current interface{} = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return false
		}
		current, ok = m[part]
		if !ok {
			return false
		}
	}
	return true
}

// isReservedWord reports whether a name is Liquid syntax rather than a
// data variable.
func isReservedWord(name string) bool {
	reserved := map[string]bool{
		"if": true, "elsif": true, "else": true, "endif": true,
		"unless": true, "endunless": true,
		"case": true, "when": true, "endcase": true,
		"for": true, "endfor": true, "break": true, "continue": true,
		"capture": true, "endcapture": true,
		"comment": true, "endcomment": true,
		"raw": true, "endraw": true,
		"assign": true, "increment": true, "decrement": true,
		"forloop": true, "tablerowloop": true,
		"limit": true, "offset": true, "reversed": true,
		"item": true, "empty": true,
		"true": true, "false": true, "nil": true, "null": true, "blank": true,
		"and": true, "or": true, "not": true,
		"contains": true, "in": true,
	}
	return reserved[strings.ToLower(name)]
}

// SampleContactData is the default preview data when a request supplies
// none, shaped like the provider's merge context ({{ contact.FNAME }},
// {{ params.x }}).
func SampleContactData() map[string]interface{} {
	return map[string]interface{}{
		"contact": map[string]interface{}{
			"EMAIL": "jane.doe@example.com",
			"FNAME": "Jane",
			"LNAME": "Doe",
		},
		"params": map[string]interface{}{
			"company":  "Acme Corporation",
			"order_id": "100042",
			"points":   2500,
		},
		"email": "jane.doe@example.com",
	}
}
