// Package paramstore resolves credentials from the environment with a
// fallback to AWS SSM Parameter Store.
package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ErrNotConfigured is returned by a Secret that has neither a literal value
// nor a parameter to read.
var ErrNotConfigured = errors.New("paramstore: secret not configured")

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter reads one decrypted parameter value by name.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api    ssmAPI
	prefix string
}

// New creates a Client. Relative parameter names are resolved under prefix.
func New(api ssmAPI, prefix string) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api, prefix: strings.TrimRight(strings.TrimSpace(prefix), "/")}, nil
}

// ParameterName joins a relative name onto the client prefix. Names that
// already start with "/" are used as is.
func (c *Client) ParameterName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "/") || c.prefix == "" {
		return name
	}
	return c.prefix + "/" + name
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = c.ParameterName(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q missing value", name)
	}
	return *out.Parameter.Value, nil
}

// tokenPayload is the JSON shape some deployments store credentials in.
type tokenPayload struct {
	Token string `json:"token"`
}

// ParseToken accepts either a bare credential or a JSON object carrying it in
// a "token" field.
func ParseToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("paramstore: unmarshal token value as JSON: %w", err)
		}
		raw = strings.TrimSpace(tp.Token)
	}
	if raw == "" {
		return "", errors.New("paramstore: token is empty")
	}
	return raw, nil
}

// Secret is a lazily resolved credential. A literal value wins; otherwise the
// named parameter is fetched once and cached. Failed lookups are retried on the
// next call.
type Secret struct {
	literal string
	getter  Getter
	name    string

	mu     sync.Mutex
	cached string
}

// NewSecret builds a Secret. getter may be nil when only a literal is used.
func NewSecret(literal string, getter Getter, name string) *Secret {
	return &Secret{
		literal: strings.TrimSpace(literal),
		getter:  getter,
		name:    strings.TrimSpace(name),
	}
}

// Static returns a Secret that always yields value.
func Static(value string) *Secret {
	return NewSecret(value, nil, "")
}

// Configured reports whether Value can possibly succeed.
func (s *Secret) Configured() bool {
	return s != nil && (s.literal != "" || (s.getter != nil && s.name != ""))
}

// Value returns the credential.
func (s *Secret) Value(ctx context.Context) (string, error) {
	if s == nil {
		return "", ErrNotConfigured
	}
	if s.literal != "" {
		return s.literal, nil
	}
	if s.getter == nil || s.name == "" {
		return "", ErrNotConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != "" {
		return s.cached, nil
	}
	raw, err := s.getter.GetParameter(ctx, s.name)
	if err != nil {
		return "", err
	}
	token, err := ParseToken(raw)
	if err != nil {
		return "", fmt.Errorf("paramstore: parameter %q: %w", s.name, err)
	}
	s.cached = token
	return token, nil
}
