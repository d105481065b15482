package google

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// tokenSourceFromFile loads stored API credentials and exchanges them for a
// refreshing token source scoped to the requested APIs.
func tokenSourceFromFile(ctx context.Context, path string, scopes ...string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}
	return tokenSource(ctx, data, scopes...)
}

func tokenSource(ctx context.Context, data []byte, scopes ...string) (oauth2.TokenSource, error) {
	creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return creds.TokenSource, nil
}
