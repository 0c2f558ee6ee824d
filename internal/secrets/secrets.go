package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
)

// Error kinds returned by Resolve. Match them with errors.Is.
var (
	ErrNotFound     = errors.New("secret not found")
	ErrAccessDenied = errors.New("secret access denied")
	ErrResolution   = errors.New("secret resolution failed")
)

// ResolveError carries the reference and the underlying cause of a failed
// lookup.
type ResolveError struct {
	Kind      error
	Reference string
	Err       error
}

func (e *ResolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %q: %v: %v", e.Reference, e.Kind, e.Err)
	}
	return fmt.Sprintf("resolve %q: %v", e.Reference, e.Kind)
}

func (e *ResolveError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName returns a short label for logs and metrics.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	default:
		return "resolution"
	}
}

// Credentials is a flat secret document, e.g. {"ai_api_key": "..."}.
type Credentials map[string]string

type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type Resolver struct {
	api SecretsManagerAPI
}

func NewResolver(api SecretsManagerAPI) *Resolver {
	return &Resolver{api: api}
}

// Resolve fetches and parses the secret behind reference. It never returns a
// partially populated result.
func (r *Resolver) Resolve(ctx context.Context, reference string) (Credentials, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, &ResolveError{Kind: ErrResolution, Reference: reference, Err: errors.New("empty reference")}
	}

	out, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(reference),
	})
	if err != nil {
		return nil, &ResolveError{Kind: classify(err), Reference: reference, Err: err}
	}

	raw := aws.ToString(out.SecretString)
	if strings.TrimSpace(raw) == "" {
		return nil, &ResolveError{Kind: ErrResolution, Reference: reference, Err: errors.New("secret has no string value")}
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, &ResolveError{Kind: ErrResolution, Reference: reference, Err: fmt.Errorf("parse secret: %w", err)}
	}

	creds := make(Credentials, len(doc))
	for k, v := range doc {
		s, ok := v.(string)
		if !ok {
			return nil, &ResolveError{Kind: ErrResolution, Reference: reference, Err: fmt.Errorf("field %q is not a string", k)}
		}
		creds[k] = s
	}
	return creds, nil
}

func classify(err error) error {
	var nf *types.ResourceNotFoundException
	if errors.As(err, &nf) {
		return ErrNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceNotFoundException":
			return ErrNotFound
		case "AccessDeniedException", "AccessDenied":
			return ErrAccessDenied
		}
	}
	return ErrResolution
}
