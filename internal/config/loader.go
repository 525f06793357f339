// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs in cron expressions.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Scan environment for _SSM_PARAM suffix variables.
//  4. If APP_ENV != "local", resolve SSM parameters via the SecretProvider
//     and inject the resolved values back into the environment.
//  5. Use envconfig to process struct tags and populate the Config struct.
//  6. Validate the struct using go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"streamnotify/internal/types"
)

// ssmParamSuffix identifies SSM parameter pointer variables. For example,
// YOUTUBE_API_KEY_SSM_PARAM holds the SSM path for the YOUTUBE_API_KEY
// secret.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// envLookup matches os.LookupEnv and allows injection for testing.
type envLookup func(key string) (string, bool)

// envSet matches os.Setenv and allows injection for testing.
type envSet func(key, value string) error

// environ matches os.Environ and allows injection for testing.
type environ func() []string

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without mutating global state.
type loaderDeps struct {
	lookupEnv envLookup
	setEnv    envSet
	environ   environ
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the streamnotify configuration.
//
// The provider parameter is the SecretProvider to use for SSM resolution.
// For local development, the provider may be nil (SSM resolution is
// skipped). For non-local environments with _SSM_PARAM pointers in the
// environment, the provider must be non-nil.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	// One-shot rule cron fields are wall-clock UTC; keep the process there.
	time.Local = time.UTC

	// godotenv does not override variables that are already set, which
	// preserves the Env > Dotenv priority.
	_ = godotenv.Load()

	appEnv, _ := deps.lookupEnv("APP_ENV")
	if appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid,
			"failed to process environment configuration", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigMissing,
			"configuration validation failed", err)
	}

	return &cfg, nil
}

// resolveSSMParams scans the environment for variables ending in
// _SSM_PARAM, fetches the corresponding secret values via the
// SecretProvider, and injects them back into the environment so that
// envconfig can process them.
//
// If the target variable is already set (direct env var or .env file), SSM
// resolution is skipped for it, respecting the priority chain.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	type ssmBinding struct {
		targetEnvVar string // e.g. YOUTUBE_API_KEY
		ssmPath      string // e.g. /prod/streamnotify/youtube/api-key
	}

	var bindings []ssmBinding
	for _, envEntry := range deps.environ() {
		eqIdx := strings.IndexByte(envEntry, '=')
		if eqIdx < 0 {
			continue
		}
		key := envEntry[:eqIdx]
		if !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}

		targetEnvVar := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(targetEnvVar); exists {
			continue
		}

		ssmPath := envEntry[eqIdx+1:]
		if ssmPath == "" {
			continue
		}
		bindings = append(bindings, ssmBinding{targetEnvVar: targetEnvVar, ssmPath: ssmPath})
	}

	if len(bindings) == 0 {
		return nil
	}

	if provider == nil {
		targetVars := make([]string, 0, len(bindings))
		for _, b := range bindings {
			targetVars = append(targetVars, b.targetEnvVar)
		}
		return types.NewAppError(types.ErrCodeConfigMissing,
			fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)",
				strings.Join(targetVars, ", ")), nil)
	}

	ssmPaths := make([]string, 0, len(bindings))
	for _, b := range bindings {
		ssmPaths = append(ssmPaths, b.ssmPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, ssmPaths)
	if err != nil {
		return types.NewAppError(types.ErrCodeConfigMissing,
			"failed to resolve SSM parameters", err)
	}

	for _, b := range bindings {
		value, ok := resolved[b.ssmPath]
		if !ok {
			return types.NewAppError(types.ErrCodeConfigMissing,
				fmt.Sprintf("SSM parameter %s (for %s) was not resolved", b.ssmPath, b.targetEnvVar), nil)
		}
		if err := deps.setEnv(b.targetEnvVar, value); err != nil {
			return types.NewAppError(types.ErrCodeConfigInvalid,
				fmt.Sprintf("failed to set %s from SSM", b.targetEnvVar), err)
		}
	}

	return nil
}
