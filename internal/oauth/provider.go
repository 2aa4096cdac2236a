// provider.go -- Login provider interface.
package oauth

// Provider starts an implicit-grant login. The provider redirects back to the
// configured URL with the access token in the fragment, which the client posts
// to the callback endpoint.
type Provider interface {
	// Name returns the provider identifier used in logs.
	Name() string

	// LoginURL returns the dialog URL. correlationID comes back unchanged as the
	// "state" fragment parameter; an empty one requests a token-only login.
	LoginURL(correlationID string) string
}
