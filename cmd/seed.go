package cmd

import (
	"context"
	"errors"

	"github.com/mmonsif/aeroconnect/db"
	"github.com/spf13/cobra"
)

var seedPassword string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the broadcast account, demo users and sample tasks",
	Long: `Seeds the configured Firestore project. Existing rows are left alone, so
the command is safe to run more than once. Every seeded account must change
its password after the first login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.FirebaseEnabled() {
			return errors.New("FIREBASE_PROJECT_ID must be set to seed a database")
		}
		if seedPassword == "" {
			return errors.New("--password is required")
		}

		ctx := context.Background()
		store, err := db.NewFirestoreStore(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath, cfg.Firebase.StorageBucket)
		if err != nil {
			return err
		}
		defer store.Close()

		return db.Seed(ctx, store, seedPassword)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "initial password of every seeded account")
	rootCmd.AddCommand(seedCmd)
}
