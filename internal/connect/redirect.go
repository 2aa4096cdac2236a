// redirect.go -- Token extraction from the OAuth implicit-flow redirect fragment.
package connect

import (
	"net/url"
	"strings"
)

// RedirectParams is the parsed content of a successful redirect fragment.
// Provider-reported errors never produce params; they come back as a KindProviderAuth *Error.
type RedirectParams struct {
	AccessToken   string
	CorrelationID string // "state"; carries the client id. Empty means token-only.
}

// ParseRedirect parses the fragment (the part after '#') delivered by the provider.
// Returns a KindRedirectParse error for an absent fragment or a missing access_token,
// and a KindProviderAuth error when the provider reported an error.
func ParseRedirect(fragment string) (*RedirectParams, error) {
	fragment = strings.TrimPrefix(strings.TrimSpace(fragment), "#")
	if fragment == "" {
		return nil, newError(KindRedirectParse, "no data", nil)
	}

	values, err := url.ParseQuery(fragment)
	if err != nil {
		return nil, newError(KindRedirectParse, "malformed redirect data", err)
	}

	if values.Has("error") {
		desc := values.Get("error_description")
		if desc == "" {
			desc = values.Get("error")
		}
		if desc == "" {
			desc = "authorization denied"
		}
		return nil, newError(KindProviderAuth, desc, nil)
	}

	token := values.Get("access_token")
	if token == "" {
		return nil, newError(KindRedirectParse, "no access token", nil)
	}

	return &RedirectParams{
		AccessToken:   token,
		CorrelationID: values.Get("state"),
	}, nil
}
