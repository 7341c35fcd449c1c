package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pushdeck/agent/internal/model"
)

const otpRequestTimeout = 15 * time.Second

// OtpHTTP implements SessionProvider against the hosted auth service's REST
// endpoints (POST /auth/v1/otp to issue, POST /auth/v1/verify to verify).
type OtpHTTP struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOtpHTTP creates a provider for the auth service at baseURL. apiKey is
// sent as the anon key header on every call.
func NewOtpHTTP(baseURL, apiKey string) *OtpHTTP {
	return &OtpHTTP{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: otpRequestTimeout},
	}
}

type issueCodeRequest struct {
	Email string `json:"email"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
	Type  string `json:"type"`
}

type verifyCodeResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	User        struct {
		Email string `json:"email"`
	} `json:"user"`
}

type providerError struct {
	Code    string `json:"error_code"`
	Message string `json:"msg"`
}

// IssueCode asks the provider to email a one-time code.
func (p *OtpHTTP) IssueCode(ctx context.Context, email string) error {
	resp, err := p.post(ctx, "/auth/v1/otp", issueCodeRequest{Email: email})
	if err != nil {
		return fmt.Errorf("issue code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("issue code: provider returned %d: %s", resp.StatusCode, readProviderError(resp.Body))
	}
	return nil
}

// VerifyCode checks the emailed code. An invalid or expired code yields
// (nil, nil); any other provider failure is returned as an error.
func (p *OtpHTTP) VerifyCode(ctx context.Context, email, code string) (*model.Session, error) {
	resp, err := p.post(ctx, "/auth/v1/verify", verifyCodeRequest{Email: email, Token: code, Type: "email"})
	if err != nil {
		return nil, fmt.Errorf("verify code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var perr providerError
		if json.Unmarshal(body, &perr) == nil && perr.Code == "invalid_token" {
			return nil, nil
		}
		return nil, fmt.Errorf("verify code: provider returned %d: %s", resp.StatusCode, perr.Message)
	}

	var vr verifyCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("verify code: decode response: %w", err)
	}
	if vr.AccessToken == "" {
		return nil, nil
	}

	return &model.Session{
		AccessToken: vr.AccessToken,
		Email:       email,
		ExpiresAt:   time.Now().Add(time.Duration(vr.ExpiresIn) * time.Second),
	}, nil
}

func (p *OtpHTTP) post(ctx context.Context, path string, body any) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.apiKey)
	return p.client.Do(req)
}

func readProviderError(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4096))
	var perr providerError
	if json.Unmarshal(body, &perr) == nil && perr.Message != "" {
		return perr.Message
	}
	return string(body)
}
