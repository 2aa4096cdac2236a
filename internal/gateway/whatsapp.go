// whatsapp.go -- WhatsApp Business endpoints of the gateway.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/MGallo-Code/wabalink/internal/connect"
)

// FetchBusinessAccounts lists the WABAs and phone numbers visible to accessToken.
// Returns ErrNoBusinessAccounts when the list is empty.
func (c *Client) FetchBusinessAccounts(ctx context.Context, accessToken string) ([]connect.BusinessAccount, error) {
	const op = "business accounts"
	env, err := c.do(ctx, op, http.MethodGet, "/whatsapp/business-accounts", accessToken, nil)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &APIError{Op: op, StatusCode: http.StatusOK, Message: env.Message}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, ErrNoBusinessAccounts
	}

	var accounts []connect.BusinessAccount
	if err := decodeData(op, env, &accounts); err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrNoBusinessAccounts
	}
	return accounts, nil
}

// VerifyPartner asks whether partner access was granted on businessAccountID.
// A success:false envelope is a negative result, not an error.
func (c *Client) VerifyPartner(ctx context.Context, businessAccountID string) (connect.VerificationResult, error) {
	const op = "partner verification"
	path := "/whatsapp/partner-verification/" + url.PathEscape(businessAccountID)
	env, err := c.do(ctx, op, http.MethodGet, path, "", nil)
	if err != nil {
		return connect.VerificationResult{}, err
	}
	return connect.VerificationResult{Success: env.Success, Message: env.Message}, nil
}

// ExchangeToken trades a short-lived user token for a long-lived one.
func (c *Client) ExchangeToken(ctx context.Context, shortLivedToken string) (string, error) {
	const op = "token exchange"
	req := struct {
		AccessToken string `json:"access_token"`
	}{AccessToken: shortLivedToken}

	env, err := c.do(ctx, op, http.MethodPost, "/whatsapp/token/exchange", "", req)
	if err != nil {
		return "", err
	}
	if !env.Success {
		return "", &APIError{Op: op, StatusCode: http.StatusOK, Message: env.Message}
	}

	var data struct {
		LongLivedToken string `json:"long_lived_token"`
	}
	if err := decodeData(op, env, &data); err != nil {
		return "", err
	}
	if data.LongLivedToken == "" {
		return "", fmt.Errorf("gateway: %s: empty long-lived token", op)
	}
	return data.LongLivedToken, nil
}

// Subscribe registers webhook delivery for businessAccountID, authorised by longLivedToken.
func (c *Client) Subscribe(ctx context.Context, longLivedToken, businessAccountID string) error {
	const op = "subscription"
	req := struct {
		BusinessAccountID string `json:"business_account_id"`
	}{BusinessAccountID: businessAccountID}

	env, err := c.do(ctx, op, http.MethodPost, "/whatsapp/subscriptions", longLivedToken, req)
	if err != nil {
		return err
	}
	if !env.Success {
		return &APIError{Op: op, StatusCode: http.StatusOK, Message: env.Message}
	}
	return nil
}
