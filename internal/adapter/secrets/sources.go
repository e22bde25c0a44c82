// Package secrets provides the places the API key can be read from: the
// process environment, a mounted file, or AWS Secrets Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ErrNotFound is returned when the named secret does not exist in the source.
var ErrNotFound = errors.New("secret not found")

// Env reads secrets from environment variables; the name is the variable.
type Env struct {
	lookup func(string) (string, bool)
}

func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

func (e *Env) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := e.lookup(name)
	if !ok {
		return "", fmt.Errorf("env %s: %w", name, ErrNotFound)
	}
	return v, nil
}

// File reads secrets from files such as mounted Kubernetes or Docker secrets;
// the name is the path.
type File struct{}

func NewFile() *File { return &File{} }

func (File) GetSecret(_ context.Context, name string) (string, error) {
	b, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("file %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager reads secrets from AWS Secrets Manager; the name is the
// secret id or ARN.
type SecretsManager struct {
	api SecretsManagerAPI
}

func NewSecretsManager(api SecretsManagerAPI) *SecretsManager {
	return &SecretsManager{api: api}
}

func (s *SecretsManager) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret value %s: %w", name, err)
	}
	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	if len(out.SecretBinary) > 0 {
		return string(out.SecretBinary), nil
	}
	return "", fmt.Errorf("secret %s has no value: %w", name, ErrNotFound)
}
