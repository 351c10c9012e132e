package tools

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateCall performs minimal validation of tool call arguments.
func ValidateCall(reg *Registry, name string, args map[string]interface{}) error {
	if reg == nil {
		return errors.New("tool registry unavailable")
	}

	switch name {
	case ToolWebSearch:
		if reg.Searcher == nil {
			return errors.New("search capability unavailable")
		}
		query, ok := args["query"].(string)
		if !ok || strings.TrimSpace(query) == "" {
			return fmt.Errorf("query is required and must be a non-empty string")
		}
	case ToolWebScrape:
		if reg.Fetcher == nil {
			return errors.New("scrape capability unavailable")
		}
		url, ok := args["url"].(string)
		if !ok || strings.TrimSpace(url) == "" {
			return fmt.Errorf("url is required and must be a non-empty string")
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("url must be absolute (http or https)")
		}
	default:
		return fmt.Errorf("unknown tool %q", name)
	}
	return nil
}
