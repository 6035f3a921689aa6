// Command moderator grants and revokes the moderator role.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"habersin/internal/config"
	"habersin/internal/database"
	"habersin/internal/models"
	"habersin/internal/repository"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  moderator promote <user_id>   - Grant the moderator role")
	fmt.Println("  moderator demote <user_id>    - Revoke the moderator role")
	fmt.Println("  moderator list                - List all moderators")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	users := repository.NewStore(db).Users()
	ctx := context.Background()

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		setModerator(ctx, users, os.Args[2], command == "promote")

	case "list":
		listModerators(ctx, users)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func setModerator(ctx context.Context, users repository.UserRepository, userID string, isModerator bool) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			fmt.Printf("User with ID %s not found\n", userID)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}

	if user.IsModerator == isModerator {
		fmt.Printf("User %s (ID: %s) is already in that role\n", user.Name(), user.ID)
		return
	}

	if err := users.SetModerator(ctx, userID, isModerator); err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}

	action := "demoted"
	if isModerator {
		action = "promoted"
	}
	fmt.Printf("Successfully %s %s (ID: %s)\n", action, user.Name(), user.ID)
}

func listModerators(ctx context.Context, users repository.UserRepository) {
	mods, err := users.ListModerators(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch moderators: %v", err)
	}

	if len(mods) == 0 {
		fmt.Println("No moderators found")
		return
	}

	fmt.Println("Current moderators:")
	for _, m := range mods {
		fmt.Printf("ID: %s | Name: %s | Email: %s\n", m.ID, m.Name(), m.Email)
	}
}
