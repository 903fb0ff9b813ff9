package firebase

import (
	"context"
	"fmt"
	"log"
	"strings"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// NewApp initializes the Firebase Admin SDK.
//
// The credentials (project ID, client email, private key) come from Firebase Console:
// Project Settings -> Service Accounts -> Generate New Private Key.
// When clientEmail or privateKey is empty the SDK falls back to Application
// Default Credentials, which is also what the Firestore emulator expects.
func NewApp(ctx context.Context, projectID, clientEmail, privateKey string) (*firebase.App, error) {
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	var opts []option.ClientOption
	if clientEmail != "" && privateKey != "" {
		// .env files carry the PEM key with literal \n sequences
		privateKey = strings.ReplaceAll(privateKey, "\\n", "\n")

		credsJSON := fmt.Sprintf(`{
		"type": "service_account",
		"project_id": %q,
		"private_key": %q,
		"client_email": %q,
		"token_uri": "https://oauth2.googleapis.com/token"
	}`, projectID, privateKey, clientEmail)
		opts = append(opts, option.WithCredentialsJSON([]byte(credsJSON)))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	log.Printf("[Firebase] Initialized for project: %s", projectID)
	return app, nil
}
