// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package authentication

import (
	"context"
	"crypto/subtle"
	"errors"
)

var ErrEmptyToken = errors.New("empty token")

// StaticVerifier accepts a single shared API token.
type StaticVerifier struct {
	token []byte
}

func (v *StaticVerifier) VerifyToken(ctx context.Context, rawToken string) (bool, error) {
	if rawToken == "" {
		return false, ErrEmptyToken
	}
	return subtle.ConstantTimeCompare(v.token, []byte(rawToken)) == 1, nil
}

func NewStaticVerifier(token string) *StaticVerifier {
	return &StaticVerifier{token: []byte(token)}
}
