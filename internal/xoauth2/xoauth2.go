// Package xoauth2 implements the XOAUTH2 SASL mechanism used by Gmail and
// Outlook for IMAP/SMTP authentication. Neither go-sasl nor any other
// library in the corpus implements it, so this follows the mechanism as
// published by Google, wrapped in go-sasl's sasl.Client interface so it
// plugs into imapclient.Authenticate / smtp.Auth like any built-in
// mechanism.
package xoauth2

import (
	"errors"
	"fmt"
)

// Client implements github.com/emersion/go-sasl's Client interface for the
// XOAUTH2 mechanism.
type Client struct {
	username    string
	accessToken string
}

// NewClient builds a SASL client for the given mailbox user and a live
// OAuth2 access token.
func NewClient(username, accessToken string) *Client {
	return &Client{username: username, accessToken: accessToken}
}

// Start returns the mechanism name and initial response. XOAUTH2 is a
// one-step mechanism: the entire credential is sent up front.
func (c *Client) Start() (mech string, ir []byte, err error) {
	ir = []byte(fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", c.username, c.accessToken))
	return "XOAUTH2", ir, nil
}

// Next handles a server challenge. A server that rejects XOAUTH2 sends a
// JSON error as a challenge and expects an empty response before failing
// the command; any other challenge is an unexpected protocol error.
func (c *Client) Next(challenge []byte) ([]byte, error) {
	if len(challenge) == 0 {
		return nil, errors.New("xoauth2: unexpected empty server challenge")
	}
	return []byte{}, nil
}
