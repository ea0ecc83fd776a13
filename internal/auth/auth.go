// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth implements the Google sign-in flow for a terminal
// client: it opens the backend's OAuth entry point in the system
// browser and collects the redirect on a loopback listener.
//
// The backend performs the actual token exchange with Google; the
// client only ever sees the final redirect carrying the signed session
// token and profile fields (email, name, picture).
package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fininsight/finchat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrCallbackTimeout indicates the browser redirect never arrived
	ErrCallbackTimeout = errors.New("sign-in timed out waiting for browser redirect")
	// ErrNoToken indicates the redirect arrived without a session token
	ErrNoToken = errors.New("sign-in redirect carried no session token")
)

// =============================================================================
// FLOW
// =============================================================================

// Flow runs one interactive sign-in. Zero value is not usable; use
// NewFlow.
type Flow struct {
	backendURL string
	port       int
	timeout    time.Duration

	// openBrowser is swappable for tests.
	openBrowser func(url string) error
}

// NewFlow creates a sign-in flow against the given backend base URL.
// port 0 lets the OS pick an ephemeral loopback port.
func NewFlow(backendURL string, port int, timeout time.Duration) *Flow {
	return &Flow{
		backendURL:  backendURL,
		port:        port,
		timeout:     timeout,
		openBrowser: OpenBrowser,
	}
}

// callbackResult carries the redirect fields off the HTTP handler.
type callbackResult struct {
	account *model.Account
	err     error
}

// Run executes the sign-in flow: listen on loopback, open the browser
// at the backend's Google login entry point, and wait for the redirect.
// Blocks until the redirect arrives, the timeout elapses, or ctx is
// cancelled.
func (f *Flow) Run(ctx context.Context) (*model.Account, error) {
	// SECURITY: bind loopback only - the redirect carries the session token.
	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(f.port)))
	if err != nil {
		return nil, fmt.Errorf("failed to open callback listener: %w", err)
	}
	defer listener.Close()

	redirectURI := fmt.Sprintf("http://%s/auth/google/callback", listener.Addr().String())

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/google/callback", func(w http.ResponseWriter, r *http.Request) {
		account, err := accountFromRedirect(r.URL.Query())
		if err != nil {
			http.Error(w, "Sign-in failed. Return to the terminal and try again.", http.StatusBadRequest)
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, callbackPage)
		}
		select {
		case results <- callbackResult{account: account, err: err}:
		default:
		}
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go server.Serve(listener)
	defer server.Close()

	loginURL, err := f.loginURL(redirectURI)
	if err != nil {
		return nil, err
	}
	if err := f.openBrowser(loginURL); err != nil {
		// The user can still paste the URL manually; surface it.
		return nil, fmt.Errorf("could not open browser (visit %s manually): %w", loginURL, err)
	}

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		return res.account, nil
	case <-timer.C:
		return nil, ErrCallbackTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// loginURL builds the backend Google login entry point with our
// loopback redirect.
func (f *Flow) loginURL(redirectURI string) (string, error) {
	base, err := url.Parse(f.backendURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend URL: %w", err)
	}
	entry := base.JoinPath("auth", "google", "login")
	q := entry.Query()
	q.Set("redirect_uri", redirectURI)
	entry.RawQuery = q.Encode()
	return entry.String(), nil
}

// accountFromRedirect extracts the signed-in account from the redirect
// query parameters. The backend sends the session token as "jwt";
// "token" is accepted as an alias.
func accountFromRedirect(q url.Values) (*model.Account, error) {
	token := q.Get("jwt")
	if token == "" {
		token = q.Get("token")
	}
	if token == "" {
		return nil, ErrNoToken
	}

	email := q.Get("email")
	if email == "" {
		return nil, errors.New("sign-in redirect carried no email")
	}

	return &model.Account{
		Email:   email,
		Name:    q.Get("name"),
		Picture: q.Get("picture"),
		Token:   token,
	}, nil
}

// callbackPage is what the browser shows after a successful sign-in.
const callbackPage = `<!DOCTYPE html>
<html>
<head><title>finchat</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
  <h2>Signed in</h2>
  <p>You can close this tab and return to the terminal.</p>
</body>
</html>`
