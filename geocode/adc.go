// Copyright 2025 The GrantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// GoogleMapsKeyDisplayName is the display name of the API key looked up
// through Application Default Credentials.
const GoogleMapsKeyDisplayName = "GrantMap Geocoding Key"

// APIKeyFromADC retrieves the Google Maps API key string from the project of
// the Application Default Credentials. projectID overrides the credentials'
// project when not empty.
func APIKeyFromADC(ctx context.Context, projectID string) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("finding default credentials: %w", err)
	}

	if projectID == "" {
		projectID = creds.ProjectID
	}

	if projectID == "" {
		return "", errors.New("no project ID in default credentials; set GOOGLE_CLOUD_PROJECT")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	it := client.ListKeys(ctx, &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	})

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.DisplayName != GoogleMapsKeyDisplayName {
			continue
		}

		// ListKeys redacts the KeyString
		log.Debug().Str("key", key.Name).Msg("found API key resource, retrieving secret")

		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.KeyString == "" {
			return "", fmt.Errorf("key %q found but its key string is empty", GoogleMapsKeyDisplayName)
		}

		return resp.KeyString, nil
	}

	return "", fmt.Errorf("no API key named %q in project %s", GoogleMapsKeyDisplayName, projectID)
}
