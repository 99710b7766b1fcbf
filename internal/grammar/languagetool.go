package grammar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type languageToolChecker struct {
	endpoint string
	client   *http.Client
}

// NewLanguageToolChecker talks to a LanguageTool server (POST /v2/check).
// A nil client uses a client with a 30 second timeout.
func NewLanguageToolChecker(endpoint string, client *http.Client) Checker {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &languageToolChecker{endpoint: strings.TrimRight(endpoint, "/"), client: client}
}

type ltResponse struct {
	Matches []ltMatch `json:"matches"`
}

type ltMatch struct {
	Message      string `json:"message"`
	Offset       int    `json:"offset"`
	Length       int    `json:"length"`
	Replacements []struct {
		Value string `json:"value"`
	} `json:"replacements"`
	Context struct {
		Text string `json:"text"`
	} `json:"context"`
	Rule struct {
		ID string `json:"id"`
	} `json:"rule"`
}

func (c *languageToolChecker) Check(ctx context.Context, text, language string) ([]Match, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", language)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v2/check", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("languagetool returned status %s", resp.Status)
	}

	var body ltResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode languagetool response: %w", err)
	}

	matches := make([]Match, 0, len(body.Matches))
	for _, m := range body.Matches {
		replacements := make([]string, 0, len(m.Replacements))
		for _, r := range m.Replacements {
			replacements = append(replacements, r.Value)
		}
		matches = append(matches, Match{
			Context:      m.Context.Text,
			Message:      m.Message,
			Replacements: replacements,
			Offset:       m.Offset,
			Length:       m.Length,
			RuleID:       m.Rule.ID,
		})
	}
	return matches, nil
}
