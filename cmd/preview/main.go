// Command preview prints the presence body a batch run would send for one
// stored user, without refreshing credentials or contacting Discord.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/teal-fm/beacon/config"
	"github.com/teal-fm/beacon/db"
	"github.com/teal-fm/beacon/service/presence"
	"github.com/teal-fm/beacon/util/wirecase"
)

func main() {
	var (
		dbPath = pflag.String("db", "./data/beacon.db", "Path to the sqlite database")
		userID = pflag.String("user", "", "Discord user id")
		appID  = pflag.String("application-id", "", "Application id stamped on the activity")
	)
	pflag.Parse()

	logger := config.InitLogging("warn", false).Sugar()
	defer zap.L().Sync()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "--user is required")
		pflag.Usage()
		os.Exit(2)
	}

	database, err := db.New(*dbPath)
	if err != nil {
		logger.Fatalf("Error connecting to database: %v", err)
	}
	defer database.Close()

	user, err := database.GetUserByID(context.Background(), *userID)
	if err != nil {
		logger.Fatalf("Error loading user: %v", err)
	}
	if user == nil {
		logger.Fatalf("User %s not found", *userID)
	}

	activity, err := presence.BuildActivity(user)
	if err != nil {
		logger.Fatalf("User %s has no publishable presence: %v", *userID, err)
	}
	activity.ApplicationID = *appID

	body, err := wirecase.Encode(map[string]any{"activities": []*presence.Activity{activity}})
	if err != nil {
		logger.Fatalf("Error encoding activity: %v", err)
	}

	os.Stdout.Write(body)
	fmt.Println()
}
