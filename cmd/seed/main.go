// Command seed fills the configured database with fake data.
package main

import (
	"context"
	"flag"
	"log"

	"habersin/internal/config"
	"habersin/internal/database"
	"habersin/internal/middleware"
	"habersin/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	numModerators := flag.Int("moderators", defaults.Moderators, "How many of the users are moderators")
	numPosts := flag.Int("posts", defaults.Posts, "Number of posts to create")
	numComments := flag.Int("comments", defaults.CommentsPerPost, "Maximum comments per published post")
	randSeed := flag.Int64("seed", 0, "Random seed, 0 for a time based one")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Printf("Target: %d users (%d moderators), %d posts, clean=%v\n", *numUsers, *numModerators, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.InitLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, seed.Options{
		Users:           *numUsers,
		Moderators:      *numModerators,
		Posts:           *numPosts,
		CommentsPerPost: *numComments,
		MaxDays:         defaults.MaxDays,
		RandSeed:        *randSeed,
	})

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	res, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done: %d users, %d posts, %d comments, %d reactions\n", len(res.Users), len(res.Posts), res.Comments, res.Reactions)
}
