package interceptors

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"pulsedeck/internal/security"
)

func okHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "success", nil
}

func TestAuthUnary_PublicMethod(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	interceptor := AuthUnary(tokens, map[string]bool{"/test.Service/PublicMethod": true})

	resp, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/PublicMethod",
	}, okHandler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "success" {
		t.Errorf("response = %v, want %q", resp, "success")
	}
}

func TestAuthUnary_PublicMethod_InvalidTokenStillAllowed(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	interceptor := AuthUnary(tokens, map[string]bool{"/test.Service/PublicMethod": true})
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer garbage"))

	if _, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/test.Service/PublicMethod"}, okHandler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
}

func TestAuthUnary_ProtectedMethod_NoToken(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	interceptor := AuthUnary(tokens, map[string]bool{})

	_, err = interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/ProtectedMethod",
	}, okHandler)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}
}

func TestAuthUnary_ProtectedMethod_ValidToken(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := tokens.IssueAccess("session-1", "user-1", "ada@example.org")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	interceptor := AuthUnary(tokens, map[string]bool{})

	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": "Bearer " + token,
		"x-device-id":   "laptop",
	}))
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		if userID, ok := GetUserID(ctx); !ok || userID != "user-1" {
			t.Errorf("user_id = %q, ok = %v, want %q", userID, ok, "user-1")
		}
		if deviceID, ok := GetDeviceID(ctx); !ok || deviceID != "laptop" {
			t.Errorf("device_id = %q, ok = %v, want %q", deviceID, ok, "laptop")
		}
		if sessionID, ok := GetSessionID(ctx); !ok || sessionID != "session-1" {
			t.Errorf("session_id = %q, ok = %v, want %q", sessionID, ok, "session-1")
		}
		return "success", nil
	}

	resp, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{
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
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	interceptor := AuthUnary(tokens, map[string]bool{})

	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": "Bearer invalid-token",
	}))
	_, err = interceptor(ctx, "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/ProtectedMethod",
	}, okHandler)
	if err == nil {
		t.Fatal("expected error for invalid token")
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("error is not a gRPC status: %v", err)
	}
	if st.Code() != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", st.Code(), codes.Unauthenticated)
	}
}

func TestExtractBearer(t *testing.T) {
	testCases := []struct {
		name   string
		header string
		want   string
	}{
		{"valid", "Bearer token123", "token123"},
		{"case insensitive", "bearer token123", "token123"},
		{"invalid prefix", "Basic token123", ""},
		{"whitespace", "  Bearer   token123  ", "token123"},
		{"too short", "Bear", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", tc.header))
			if got := extractBearer(ctx); got != tc.want {
				t.Errorf("token = %q, want %q", got, tc.want)
			}
		})
	}
	if got := extractBearer(context.Background()); got != "" {
		t.Errorf("token = %q, want empty", got)
	}
}
