// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gmail

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/mailguard/agent/internal/config"
)

const (
	tokenURL      = "https://oauth2.googleapis.com/token"
	scopeReadonly = "https://www.googleapis.com/auth/gmail.readonly"
)

// Identity wraps an OAuth2 token source for the watched mailbox. The agent
// holds a long-lived refresh token; access tokens are minted and reused
// automatically.
type Identity struct {
	src oauth2.TokenSource
}

// NewIdentity builds an identity from the configured client credentials and
// refresh token.
func NewIdentity(ctx context.Context, cfg config.MailboxConfig) *Identity {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		Scopes:       []string{scopeReadonly},
	}
	src := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return &Identity{src: oauth2.ReuseTokenSource(nil, src)}
}

// Token returns a valid access token, refreshing if needed. Failures are
// reported as AuthError so the orchestrator can abort the cycle.
func (i *Identity) Token(ctx context.Context) (string, error) {
	tok, err := i.src.Token()
	if err != nil {
		return "", &AuthError{Err: err}
	}
	return tok.AccessToken, nil
}

// HTTPClient returns an http.Client that injects the bearer token on every
// request.
func (i *Identity) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, i.src)
}
