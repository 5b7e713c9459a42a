package templates

import (
	"fmt"
	"html/template"
	"time"
)

// GetTemplateFunc returns the centralized template functions used across the application
func GetTemplateFunc() template.FuncMap {
	return template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			if d < time.Second {
				return fmt.Sprintf("%dms", d.Milliseconds())
			}
			return d.Truncate(time.Millisecond).String()
		},
		"getStatusClass": getStatusString,
		"getStatusText": func(passed bool) string {
			if passed {
				return "✓ pass"
			}
			return "✗ fail"
		},
		"percent": func(part, total int) string {
			if total == 0 {
				return "0%"
			}
			return fmt.Sprintf("%.0f%%", float64(part)*100/float64(total))
		},
	}
}

// getStatusString returns a consistent lowercase status string
func getStatusString(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}
