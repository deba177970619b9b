package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cwaweather/backend/internal/domain"
)

// ErrRegionsNotFound is wrapped by every PathError on the way to the region list
var ErrRegionsNotFound = errors.New("parse: region list not found")

// regionsPath is where dataset F-A0010-001 keeps its per-region forecasts
var regionsPath = []string{
	"cwaopendata", "resources", "resource", "data", "agrWeatherForecasts", "weatherForecasts", "location",
}

// PathError names the segment at which the feed stopped matching the expected shape
type PathError struct {
	Path    []string
	Segment string
	Reason  string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("parse: %s at %q (path %s)", e.Reason, e.Segment, strings.Join(e.Path, "."))
}

func (e *PathError) Unwrap() error {
	return ErrRegionsNotFound
}

// FieldIssue records a field that was set to null while parsing one region
type FieldIssue struct {
	Index    int    `json:"index"`
	Location string `json:"location"`
	Field    string `json:"field"`
	Path     string `json:"path"`
	Reason   string `json:"reason"`
}

func (i FieldIssue) String() string {
	return fmt.Sprintf("region %d (%s): %s null, %s at %s", i.Index, i.Location, i.Field, i.Reason, i.Path)
}

// ParseResult holds the drafts of one feed and the degradations met on the way
type ParseResult struct {
	Drafts []domain.WeatherDraft
	Issues []FieldIssue
}

// element describes one weather element extracted from daily[0]
type element struct {
	name  string
	key   string
	field string
}

var (
	minTempElement = element{name: "MinT", key: "temperature", field: "min_temp"}
	maxTempElement = element{name: "MaxT", key: "temperature", field: "max_temp"}
	wxElement      = element{name: "Wx", key: "weather", field: "description"}
)

// ParseFeed extracts one draft per region. A region with missing or malformed
// elements is kept with null fields; only a missing region list is an error.
func ParseFeed(body map[string]any) (ParseResult, error) {
	regions, err := regionList(body)
	if err != nil {
		return ParseResult{}, err
	}

	result := ParseResult{Drafts: make([]domain.WeatherDraft, 0, len(regions))}
	for i, item := range regions {
		draft, issues := parseRegion(i, item)
		result.Drafts = append(result.Drafts, draft)
		result.Issues = append(result.Issues, issues...)
	}
	return result, nil
}

func regionList(body map[string]any) ([]any, error) {
	var node any = body
	for i, segment := range regionsPath {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, &PathError{Path: regionsPath[:i], Segment: regionsPath[i-1], Reason: "expected object"}
		}
		next, ok := obj[segment]
		if !ok || next == nil {
			return nil, &PathError{Path: regionsPath[:i+1], Segment: segment, Reason: "missing key"}
		}
		node = next
	}

	list, ok := node.([]any)
	if !ok {
		return nil, &PathError{Path: regionsPath, Segment: "location", Reason: "expected array"}
	}
	return list, nil
}

func parseRegion(index int, item any) (domain.WeatherDraft, []FieldIssue) {
	draft := domain.WeatherDraft{Location: domain.UnknownRegion}
	var issues []FieldIssue

	region, ok := item.(map[string]any)
	if !ok {
		for _, el := range []element{minTempElement, maxTempElement, wxElement} {
			issues = append(issues, FieldIssue{
				Index: index, Location: draft.Location, Field: el.field,
				Path: fmt.Sprintf("location[%d]", index), Reason: "expected object",
			})
		}
		return draft, issues
	}

	if name, ok := region["locationName"].(string); ok && name != "" {
		draft.Location = name
	}

	issue := func(el element, path, reason string) {
		issues = append(issues, FieldIssue{
			Index: index, Location: draft.Location, Field: el.field,
			Path: fmt.Sprintf("location[%d].%s", index, path), Reason: reason,
		})
	}

	for _, el := range []element{minTempElement, maxTempElement} {
		value, path, reason := firstDaily(region, el)
		if reason != "" {
			issue(el, path, reason)
			continue
		}
		temp, ok := toCelsius(value)
		if !ok {
			issue(el, path, fmt.Sprintf("not a number: %v", value))
			continue
		}
		if el == minTempElement {
			draft.MinTemp = &temp
		} else {
			draft.MaxTemp = &temp
		}
	}

	value, path, reason := firstDaily(region, wxElement)
	if reason != "" {
		issue(wxElement, path, reason)
	} else if desc, ok := value.(string); ok {
		draft.Description = &desc
	} else {
		issue(wxElement, path, "expected string")
	}

	return draft, issues
}

// firstDaily walks weatherElements.<name>.daily[0].<key>. On failure it
// returns the path reached and the reason.
func firstDaily(region map[string]any, el element) (any, string, string) {
	path := "weatherElements"
	elements, ok := region["weatherElements"].(map[string]any)
	if !ok {
		return nil, path, "missing object"
	}

	path += "." + el.name
	entry, ok := elements[el.name].(map[string]any)
	if !ok {
		return nil, path, "missing object"
	}

	path += ".daily"
	daily, ok := entry["daily"].([]any)
	if !ok {
		return nil, path, "missing array"
	}
	if len(daily) == 0 {
		return nil, path, "empty array"
	}

	path += "[0]"
	first, ok := daily[0].(map[string]any)
	if !ok {
		return nil, path, "expected object"
	}

	path += "." + el.key
	value, ok := first[el.key]
	if !ok || value == nil {
		return nil, path, "missing key"
	}
	return value, path, ""
}

// toCelsius accepts the feed's string temperatures as well as bare numbers
func toCelsius(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
