package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

// GitHub renders through the GitHub Markdown API in "markdown" mode, the mode
// used for README files.
type GitHub struct {
	client *github.Client
}

// NewGitHub creates a renderer against api.github.com, or against apiURL
// when set (GitHub Enterprise or a test server).
func NewGitHub(token, apiURL string, httpClient *http.Client) (*GitHub, error) {
	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if apiURL != "" {
		base := strings.TrimSuffix(apiURL, "/") + "/"
		var err error
		client, err = client.WithEnterpriseURLs(base, base)
		if err != nil {
			return nil, fmt.Errorf("github api url: %w", err)
		}
	}
	return &GitHub{client: client}, nil
}

func (g *GitHub) Render(ctx context.Context, markdown string) (string, error) {
	html, _, err := g.client.Markdown.Render(ctx, markdown, &github.MarkdownOptions{Mode: "markdown"})
	if err != nil {
		return "", classifyAPIError(ctx, err)
	}
	return html, nil
}

// classifyAPIError maps go-github failures onto classified errors. Rate
// limits carry their reset time; cancellation passes through untouched.
func classifyAPIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		respErr  *github.ErrorResponse
	)
	switch {
	case errors.As(err, &rateErr):
		return ferrors.ForgeError("github markdown api rate limited").
			WithCause(err).RateLimit().
			WithContext("reset", rateErr.Rate.Reset.Time).
			Build()
	case errors.As(err, &abuseErr):
		b := ferrors.ForgeError("github markdown api secondary rate limit").WithCause(err).RateLimit()
		if abuseErr.RetryAfter != nil {
			b = b.WithContext("retry_after", abuseErr.RetryAfter.String())
		}
		return b.Build()
	case errors.As(err, &respErr):
		b := ferrors.ForgeError("github markdown api request failed").WithCause(err)
		if respErr.Response != nil {
			b = b.WithContext("status", respErr.Response.StatusCode)
		}
		return b.Build()
	}
	return ferrors.NetworkError("github markdown api unreachable").WithCause(err).Build()
}
