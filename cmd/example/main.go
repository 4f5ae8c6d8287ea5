package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/pulsd/koala"
	"github.com/pulsd/koala/pkg/types"
)

func main() {
	accessToken := os.Getenv("FB_ACCESS_TOKEN")
	appID := os.Getenv("FB_APP_ID")
	appSecret := os.Getenv("FB_APP_SECRET")

	if accessToken == "" {
		log.Fatal("FB_ACCESS_TOKEN environment variable is required")
	}

	// Route structured logs to stdout; adjust the level as needed.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client, err := koala.NewClient(&koala.Config{
		AccessToken: accessToken,
		AppID:       appID,
		AppSecret:   appSecret,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()

	me, err := client.GetObject(ctx, "me", nil)
	if err != nil {
		log.Fatalf("Failed to fetch profile: %v", err)
	}
	if profile, ok := me.(map[string]any); ok {
		fmt.Printf("Authenticated as: %v (%v)\n", profile["name"], profile["id"])
	}

	feed, err := client.GetConnections(ctx, "me", "feed", types.Params{"limit": "3"})
	if err != nil {
		log.Printf("Failed to fetch feed: %v", err)
	} else if page, ok := feed.(map[string]any); ok {
		if entries, ok := page["data"].([]any); ok {
			fmt.Printf("\nLatest feed entries (%d):\n", len(entries))
			for i, entry := range entries {
				post, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				fmt.Printf("%d. %v\n", i+1, post["message"])
			}
		}
	}

	picture, err := client.GetPicture(ctx, "me", nil)
	if err != nil {
		log.Printf("Failed to resolve picture: %v", err)
	} else {
		fmt.Printf("\nProfile picture: %s\n", picture)
	}

	// App access tokens need the app credentials.
	if appID != "" && appSecret != "" {
		oauth, err := koala.NewOAuth(&koala.OAuthConfig{
			AppID:     appID,
			AppSecret: appSecret,
			Logger:    logger,
		})
		if err != nil {
			log.Fatalf("Failed to create OAuth client: %v", err)
		}

		appToken, err := oauth.GetAppAccessToken(ctx)
		if err != nil {
			log.Printf("Failed to fetch app access token: %v", err)
		} else {
			fmt.Printf("\nFetched app access token (%d chars)\n", len(appToken))
		}
	}
}
