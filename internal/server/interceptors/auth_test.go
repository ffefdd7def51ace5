package interceptors

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	identitydomain "danus-dashboard/backend/internal/identity/domain"
	userdomain "danus-dashboard/backend/internal/user/domain"
)

// mockAuthenticator accepts exactly one token.
type mockAuthenticator struct {
	token     string
	principal *identitydomain.Principal
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*identitydomain.Principal, error) {
	if token != m.token {
		return nil, errors.New("invalid token")
	}
	return m.principal, nil
}

func newMockAuthenticator() *mockAuthenticator {
	return &mockAuthenticator{
		token: "good-token",
		principal: &identitydomain.Principal{
			SessionID: "session-1",
			User:      &userdomain.User{ID: "user-1", Name: "Dana"},
		},
	}
}

func bearerContext(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": "Bearer " + token,
	}))
}

func TestAuthUnary_PublicMethod(t *testing.T) {
	interceptor := AuthUnary(newMockAuthenticator(), map[string]bool{"/test.Service/PublicMethod": true})
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "success", nil
	}

	resp, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/PublicMethod",
	}, handler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "success" {
		t.Errorf("response = %v, want %q", resp, "success")
	}
}

func TestAuthUnary_ProtectedMethod_NoToken(t *testing.T) {
	interceptor := AuthUnary(newMockAuthenticator(), map[string]bool{})
	called := false
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		called = true
		return "success", nil
	}

	_, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/ProtectedMethod",
	}, handler)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}
	if called {
		t.Error("handler must not run without a credential")
	}
}

func TestAuthUnary_ProtectedMethod_ValidToken(t *testing.T) {
	interceptor := AuthUnary(newMockAuthenticator(), map[string]bool{})
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		userID, ok := GetUserID(ctx)
		if !ok || userID != "user-1" {
			t.Errorf("user_id = %q, ok = %v, want %q", userID, ok, "user-1")
		}
		sessionID, ok := GetSessionID(ctx)
		if !ok || sessionID != "session-1" {
			t.Errorf("session_id = %q, ok = %v, want %q", sessionID, ok, "session-1")
		}
		return "success", nil
	}

	resp, err := interceptor(bearerContext("good-token"), "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/ProtectedMethod",
	}, handler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "success" {
		t.Errorf("response = %v, want %q", resp, "success")
	}
}

func TestAuthUnary_ProtectedMethod_InvalidToken(t *testing.T) {
	interceptor := AuthUnary(newMockAuthenticator(), map[string]bool{})
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "success", nil
	}

	_, err := interceptor(bearerContext("expired-token"), "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/ProtectedMethod",
	}, handler)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}
}

func TestAuthUnary_PublicMethod_InvalidTokenPassesThrough(t *testing.T) {
	interceptor := AuthUnary(newMockAuthenticator(), map[string]bool{"/test.Service/PublicMethod": true})
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		if _, ok := GetUserID(ctx); ok {
			t.Error("identity must not be set for an invalid token")
		}
		return "success", nil
	}

	if _, err := interceptor(bearerContext("bad"), "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/PublicMethod",
	}, handler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
}

func TestParseBearer(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"Bearer abc", "abc"},
		{"bearer   abc  ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tc := range testCases {
		if got := ParseBearer(tc.in); got != tc.want {
			t.Errorf("ParseBearer(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
