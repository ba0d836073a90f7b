// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

// Package identity resolves bearer tokens to backend user records.
//
// Resolution FAILS OPEN: any malformed, expired-claim or unresolvable token
// yields an anonymous connection, never an error surfaced to the client.
// Signature verification is intentionally absent here; tokens are minted and
// verified by the core service, the gateway only extracts the user id and
// asks the core service for the authoritative record.
package identity

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/base64"
	"io"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/oddsgate/internal/broker"
	"github.com/tomtom215/oddsgate/internal/logging"
)

// adminRoleID is the core service's role id for back-office staff.
const adminRoleID = 1

// User is the backend user record the gateway cares about.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	RoleID   int64  `json:"role_id"`
}

// IsAdmin reports whether the user carries the back-office role.
func (u *User) IsAdmin() bool {
	return u != nil && u.RoleID == adminRoleID
}

// Requester is the slice of the broker the resolver needs.
type Requester interface {
	SendRequest(ctx context.Context, code broker.Code, body interface{}, queue broker.Queue, opts ...broker.RequestOption) (*broker.Result, error)
}

// Resolver decodes tokens and looks users up via the core service.
type Resolver struct {
	rpc Requester
}

// NewResolver creates a Resolver backed by the given broker.
func NewResolver(rpc Requester) *Resolver {
	return &Resolver{rpc: rpc}
}

// tokenData is the compressed payload inside the JWT "data" claim.
type tokenData struct {
	UserID int64 `json:"user_id"`
}

// DecodeUser resolves a bearer token to a user, or nil for anonymous.
// Every failure path returns nil; see the package contract.
func (r *Resolver) DecodeUser(ctx context.Context, token string) *User {
	if len(token) < 2 {
		return nil
	}

	data, err := extractTokenData(token)
	if err != nil {
		logging.Debug().Err(err).Msg("token decode failed, proceeding anonymous")
		return nil
	}

	result, err := r.rpc.SendRequest(ctx, broker.CodeGetUser,
		map[string]int64{"id": data.UserID}, broker.QueueCore)
	if err != nil {
		logging.Warn().Err(err).Int64("user_id", data.UserID).Msg("user lookup failed, proceeding anonymous")
		return nil
	}

	var user User
	if err := json.Unmarshal(result.Data, &user); err != nil || user.ID == 0 {
		return nil
	}
	return &user
}

// extractTokenData parses the JWT without verifying its signature and
// inflates the zlib+base64 "data" claim.
func extractTokenData(token string) (*tokenData, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	packed, ok := claims["data"].(string)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}

	compressed, err := base64.StdEncoding.DecodeString(packed)
	if err != nil {
		return nil, err
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}

	var data tokenData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
