// Package paramstore resolves credentials kept in AWS SSM Parameter Store
// so they never have to live in the process environment.
package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the subset of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter returns the decrypted value of a named parameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type Store struct {
	api ssmAPI
}

func New(api ssmAPI) (*Store, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Store{api: api}, nil
}

func (s *Store) GetParameter(ctx context.Context, name string) (string, error) {
	if s == nil || s.api == nil {
		return "", errors.New("paramstore: store not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	decrypt := true
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{Name: &name, WithDecryption: &decrypt})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q has no value", name)
	}
	return *out.Parameter.Value, nil
}

// ResolveSecret returns inline when set; otherwise it reads param through g.
// Parameter values may be the bare secret or a JSON object carrying it under
// "token", "key" or "value". Both inputs empty yields "" and no error.
func ResolveSecret(ctx context.Context, g Getter, inline, param string) (string, error) {
	if v := strings.TrimSpace(inline); v != "" {
		return v, nil
	}
	if strings.TrimSpace(param) == "" {
		return "", nil
	}
	if g == nil {
		return "", fmt.Errorf("paramstore: no store configured for %q", param)
	}

	raw, err := g.GetParameter(ctx, param)
	if err != nil {
		return "", err
	}
	secret := strings.TrimSpace(raw)
	if strings.HasPrefix(secret, "{") {
		var obj map[string]string
		if err := json.Unmarshal([]byte(secret), &obj); err != nil {
			return "", fmt.Errorf("paramstore: parameter %q is not valid JSON: %w", param, err)
		}
		secret = ""
		for _, k := range []string{"token", "key", "value"} {
			if v := strings.TrimSpace(obj[k]); v != "" {
				secret = v
				break
			}
		}
	}
	if secret == "" {
		return "", fmt.Errorf("paramstore: parameter %q is empty", param)
	}
	return secret, nil
}
