// meta.go -- Meta (Facebook Login for Business) dialog for WhatsApp Business onboarding.
package oauth

import (
	"fmt"

	"golang.org/x/oauth2"
)

// metaDialogURL is the login dialog; %s is the Graph API version (e.g. "v21.0").
const metaDialogURL = "https://www.facebook.com/%s/dialog/oauth"

// MetaScopes are requested when no login configuration id is set.
// With a configuration id the permissions come from the configuration.
var MetaScopes = []string{
	"business_management",
	"whatsapp_business_management",
	"whatsapp_business_messaging",
}

// MetaProvider builds Meta login dialog URLs using the implicit flow
// (response_type=token). No client secret is involved.
type MetaProvider struct {
	config   *oauth2.Config
	configID string
}

// NewMetaProvider returns a MetaProvider for appID. redirectURL must be the
// page that posts the fragment back; configID is the optional Embedded Signup
// configuration.
func NewMetaProvider(appID, redirectURL, configID, graphVersion string) *MetaProvider {
	cfg := &oauth2.Config{
		ClientID:    appID,
		RedirectURL: redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL: fmt.Sprintf(metaDialogURL, graphVersion),
		},
	}
	if configID == "" {
		cfg.Scopes = MetaScopes
	}
	return &MetaProvider{config: cfg, configID: configID}
}

// Name returns "meta".
func (p *MetaProvider) Name() string { return "meta" }

// LoginURL builds the dialog URL with correlationID as state.
func (p *MetaProvider) LoginURL(correlationID string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", "token"),
		oauth2.SetAuthURLParam("display", "popup"),
	}
	if p.configID != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("config_id", p.configID),
			oauth2.SetAuthURLParam("override_default_response_type", "true"),
		)
	}
	return p.config.AuthCodeURL(correlationID, opts...)
}
