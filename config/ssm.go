package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterFetcher reads one secret by name.
type ParameterFetcher interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// SSMFetcher reads decrypted values from AWS SSM Parameter Store.
type SSMFetcher struct {
	client *ssm.Client
}

func NewSSMFetcher(ctx context.Context) (*SSMFetcher, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctxWithTimeout)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SSMFetcher{client: ssm.NewFromConfig(cfg)}, nil
}

func (f *SSMFetcher) GetParameter(ctx context.Context, name string) (string, error) {
	decrypt := true
	result, err := f.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return "", fmt.Errorf("ssm get %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("ssm get %s: empty value", name)
	}

	return *result.Parameter.Value, nil
}

// ResolveSecrets replaces credentials with their SSM values in prod.
// Only fields whose *_param name is configured are fetched.
func (c *Config) ResolveSecrets(ctx context.Context, fetcher ParameterFetcher) error {
	if c.Environment != "prod" {
		return nil
	}

	targets := []struct {
		param  string
		target *string
	}{
		{c.Telegram.TokenParam, &c.Telegram.Token},
		{c.SMS.AuthTokenParam, &c.SMS.AuthToken},
		{c.Postgres.PasswordParam, &c.Postgres.Password},
	}

	for _, t := range targets {
		if t.param == "" {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		value, err := fetcher.GetParameter(callCtx, t.param)
		cancel()
		if err != nil {
			return err
		}
		*t.target = value
	}
	return nil
}

// CheckSecrets fails when an enabled channel is left without its credential.
func (c *Config) CheckSecrets() error {
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return errors.New("telegram.token is required when telegram is enabled")
	}
	if c.SMS.Enabled && c.SMS.AuthToken == "" {
		return errors.New("sms.auth_token is required when sms is enabled")
	}
	return nil
}

// NeedsSecrets reports whether any SSM parameter must be fetched.
func (c *Config) NeedsSecrets() bool {
	return c.Environment == "prod" &&
		(c.Telegram.TokenParam != "" || c.SMS.AuthTokenParam != "" || c.Postgres.PasswordParam != "")
}
