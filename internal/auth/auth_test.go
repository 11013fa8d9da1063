// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/engagement/internal/config"
)

const testSecret = "this_is_a_very_long_secret_key_for_testing_purposes_12345"

func newManager(t *testing.T, issuer string) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, JWTIssuer: issuer})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return m
}

func TestNewJWTManager_EmptySecret(t *testing.T) {
	if _, err := NewJWTManager(&config.SecurityConfig{}); err == nil {
		t.Error("NewJWTManager() expected error for empty secret")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := newManager(t, "engagement")

	token, err := m.GenerateToken("user-1", "Ada", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID() != "user-1" || claims.Name != "Ada" || claims.Issuer != "engagement" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := m.GenerateToken("", "", 0); err == nil {
		t.Error("GenerateToken() with empty user should fail")
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	m := newManager(t, "engagement")
	other := newManager(t, "someone-else")

	foreign, _ := other.GenerateToken("user-1", "", time.Hour)
	expired, _ := m.GenerateToken("user-1", "", time.Nanosecond)
	time.Sleep(10 * time.Millisecond)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	wrongKey, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("another_secret_that_is_long_enough_000000"))

	tests := map[string]string{
		"wrong issuer": foreign,
		"expired":      expired,
		"alg none":     unsigned,
		"wrong key":    wrongKey,
		"garbage":      "not.a.token",
		"empty":        "",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := m.ValidateToken(tok); err == nil {
				t.Error("ValidateToken() expected error")
			}
		})
	}
}

func callerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(CallerID(r.Context())))
	})
}

func TestRequireCaller_JWT(t *testing.T) {
	m := newManager(t, "")
	mw := NewMiddleware(&config.SecurityConfig{AuthMode: ModeJWT}, m)
	token, _ := m.GenerateToken("user-7", "", time.Hour)
	expired, _ := m.GenerateToken("user-7", "", time.Nanosecond)
	time.Sleep(10 * time.Millisecond)

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantBody   string
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, "user-7"},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, http.StatusOK, "user-7"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: token}) }, http.StatusOK, "user-7"},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, http.StatusUnauthorized, ""},
		{"expired", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			mw.RequireCaller(callerEcho()).ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && rec.Body.String() != tt.wantBody {
				t.Errorf("caller = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestAuthenticate_ExpiredIsDistinct(t *testing.T) {
	m := newManager(t, "")
	mw := NewMiddleware(&config.SecurityConfig{AuthMode: ModeJWT}, m)
	expired, _ := m.GenerateToken("u", "", time.Nanosecond)
	time.Sleep(10 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	if _, err := mw.Authenticate(req); err != ErrExpiredCredentials {
		t.Errorf("err = %v, want ErrExpiredCredentials", err)
	}
}

func TestOptionalCaller(t *testing.T) {
	mw := NewMiddleware(&config.SecurityConfig{AuthMode: ModeJWT}, newManager(t, ""))

	rec := httptest.NewRecorder()
	mw.OptionalCaller(callerEcho()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "" {
		t.Errorf("anonymous: status %d body %q", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer junk")
	rec = httptest.NewRecorder()
	mw.OptionalCaller(callerEcho()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: status %d, want 401", rec.Code)
	}
}

func TestHeaderMode(t *testing.T) {
	mw := NewMiddleware(&config.SecurityConfig{
		AuthMode:   ModeHeader,
		UserHeader: "X-Gateway-User",
	}, nil)

	var gotStatus int
	mw.SetErrorWriter(func(w http.ResponseWriter, _ *http.Request, status int, _ error) {
		gotStatus = status
		w.WriteHeader(status)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Gateway-User", " alice ")
	rec := httptest.NewRecorder()
	mw.RequireCaller(callerEcho()).ServeHTTP(rec, req)
	if rec.Body.String() != "alice" {
		t.Errorf("caller = %q, want alice", rec.Body.String())
	}

	req.Header.Del("X-Gateway-User")
	req.Header.Set("X-User-ID", "mallory")
	rec = httptest.NewRecorder()
	mw.RequireCaller(callerEcho()).ServeHTTP(rec, req)
	if gotStatus != http.StatusUnauthorized {
		t.Errorf("wrong header: status %d, want 401", gotStatus)
	}
}
