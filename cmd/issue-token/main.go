// Command issue-token prints a signed access token for local testing of the
// HTTP and websocket APIs.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"ridehail/internal/config"
	"ridehail/internal/models"
	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	id := flag.String("id", "", "actor id (hex ObjectID); a new id is generated when empty")
	kind := flag.String("type", string(models.ActorKindUser), "actor type: user, rider or admin")
	ttl := flag.Duration("ttl", cfg.Security.JWTAccessTokenTTL, "token lifetime")
	flag.Parse()

	if !models.ActorKind(*kind).IsValid() {
		fmt.Fprintf(os.Stderr, "unknown actor type %q\n", *kind)
		os.Exit(2)
	}

	actorID := primitive.NewObjectID()
	if *id != "" {
		actorID, err = primitive.ObjectIDFromHex(*id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid id: %v\n", err)
			os.Exit(2)
		}
	}

	token, err := utils.GenerateToken(actorID, *kind, cfg.Security.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Printf("id:    %s\ntype:  %s\ntoken: %s\n", actorID.Hex(), *kind, token)
}
