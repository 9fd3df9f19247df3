//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	authgrpc "github.com/campusjobs/jobboard-auth/app/grpc"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	defaultHTTPBase = "http://localhost:8080"
	defaultGRPCAddr = "localhost:9090"
)

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient() *httpClient {
	return &httpClient{
		baseURL: envOr("AUTH_HTTP_URL", defaultHTTPBase),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func (c *httpClient) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("invalid json %q: %v", raw, err)
		}
	}
	return resp.StatusCode, decoded
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/me")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("http service not ready at %s", baseURL)
}

func TestAuthE2E_StudentLifecycle(t *testing.T) {
	client := newHTTPClient()
	if err := waitForHTTP(client.baseURL, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}

	email := fmt.Sprintf("e2e+%d@uni.edu", time.Now().UnixNano())
	password := "StrongPass1!"
	newPassword := "NewStrongPass1!"

	status, body := client.do(t, http.MethodPost, "/signup/student", "", map[string]string{
		"username": "e2e-student",
		"email":    email,
		"password": password,
		"phone":    "555-0100",
	})
	if status != http.StatusOK {
		t.Fatalf("signup: expected 200, got %d %v", status, body)
	}

	status, body = client.do(t, http.MethodPost, "/signup/student", "", map[string]string{
		"username": "e2e-student",
		"email":    email,
		"password": password,
		"phone":    "555-0100",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("duplicate signup: expected 400, got %d %v", status, body)
	}

	status, body = client.do(t, http.MethodPost, "/login/student", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusOK {
		t.Fatalf("login: expected 200, got %d %v", status, body)
	}
	firstToken, _ := body["token"].(string)

	status, body = client.do(t, http.MethodPost, "/login/employer", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("cross-namespace login: expected 401, got %d %v", status, body)
	}

	status, body = client.do(t, http.MethodGet, "/me", firstToken, nil)
	if status != http.StatusOK || body["role"] != "student" {
		t.Fatalf("me: expected student principal, got %d %v", status, body)
	}

	status, body = client.do(t, http.MethodPost, "/employer/change-password", firstToken, map[string]string{
		"oldPassword":     password,
		"newPassword":     newPassword,
		"confirmPassword": newPassword,
	})
	if status != http.StatusForbidden {
		t.Fatalf("wrong-role change password: expected 403, got %d %v", status, body)
	}

	status, body = client.do(t, http.MethodPost, "/student/change-password", firstToken, map[string]string{
		"oldPassword":     password,
		"newPassword":     newPassword,
		"confirmPassword": newPassword,
	})
	if status != http.StatusOK {
		t.Fatalf("change password: expected 200, got %d %v", status, body)
	}
	secondToken, _ := body["token"].(string)

	if status, _ = client.do(t, http.MethodGet, "/me", firstToken, nil); status != http.StatusUnauthorized {
		t.Fatalf("token issued before password change must be rejected, got %d", status)
	}
	if status, _ = client.do(t, http.MethodGet, "/me", secondToken, nil); status != http.StatusOK {
		t.Fatalf("new token must be accepted, got %d", status)
	}

	authenticateOverGRPC(t, secondToken)

	status, body = client.do(t, http.MethodPost, "/forgot", "", map[string]string{
		"email": "nobody-" + email,
	})
	if status != http.StatusOK {
		t.Fatalf("forgot unknown email: expected 200, got %d %v", status, body)
	}

	status, body = client.do(t, http.MethodPost, "/reset-password", "", map[string]string{
		"token":    "not-a-real-token",
		"password": "Whatever1!",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("reset with unknown token: expected 400, got %d %v", status, body)
	}

	if status, body = client.do(t, http.MethodDelete, "/delete/student", secondToken, nil); status != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d %v", status, body)
	}

	status, _ = client.do(t, http.MethodPost, "/login/student", "", map[string]string{
		"email":    email,
		"password": newPassword,
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("login after delete: expected 401, got %d", status)
	}
}

// authenticateOverGRPC needs AUTH_SERVICE_KEY, issued with `servicekey issue`.
func authenticateOverGRPC(t *testing.T, token string) {
	t.Helper()

	serviceKey := os.Getenv("AUTH_SERVICE_KEY")
	if serviceKey == "" {
		t.Log("AUTH_SERVICE_KEY not set, skipping gRPC introspection check")
		return
	}

	conn, err := grpc.NewClient(envOr("AUTH_GRPC_ADDR", defaultGRPCAddr), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc dial failed: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, "x-api-key", serviceKey)

	res, err := authgrpc.NewSessionServiceClient(conn).Authenticate(ctx, wrapperspb.String(token))
	if err != nil {
		t.Fatalf("grpc authenticate failed: %v", err)
	}
	if !res.GetFields()["valid"].GetBoolValue() || res.GetFields()["role"].GetStringValue() != "student" {
		t.Fatalf("unexpected introspection result: %v", res)
	}
}
