// In file: internal/tools/weather_tool.go
package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --- Weather Tool Implementation ---

const (
	defaultWeatherBaseURL = "https://wttr.in"
	maxWeatherBodyBytes   = 16 * 1024
)

// WeatherTool fetches a one-line weather report from a wttr.in compatible service.
// It holds its own configured HTTP client for making robust external API calls.
type WeatherTool struct {
	baseURL    string
	httpClient *http.Client
}

var _ ToolExecutor = (*WeatherTool)(nil)

// NewWeatherTool creates a new instance of the WeatherTool. An empty baseURL
// selects wttr.in.
func NewWeatherTool(baseURL string) *WeatherTool {
	if baseURL == "" {
		baseURL = defaultWeatherBaseURL
	}
	return &WeatherTool{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (wt *WeatherTool) Definition() Tool {
	return NewFunctionTool(
		"weather",
		"Get the current weather for a specific location",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"location": {
					Type:        "string",
					Description: "The city and state, e.g., San Francisco, CA or Kharagpur, India",
				},
			},
			Required: []string{"location"},
		},
	)
}

func (wt *WeatherTool) Execute(ctx context.Context, arguments map[string]any) (any, error) {
	var args struct {
		Location string `json:"location"`
	}
	if err := DecodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	location := strings.TrimSpace(args.Location)
	if location == "" {
		return nil, fmt.Errorf("location cannot be empty")
	}

	scope, done := EnterScope(ctx)
	defer done()

	endpoint := fmt.Sprintf("%s/%s?format=3", wt.baseURL, url.PathEscape(location))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create weather API request: %w", err)
	}
	// Some services block default Go HTTP clients.
	req.Header.Set("User-Agent", "LLM-Agent/1.0")

	resp, err := wt.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call weather API: %w", err)
	}
	scope.Track(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned non-200 status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWeatherBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read weather API response: %w", err)
	}

	report := strings.TrimSpace(string(body))
	if strings.Contains(report, "Unknown location") {
		return fmt.Sprintf("I couldn't find the weather for '%s'. Please try another location.", location), nil
	}
	return report, nil
}
