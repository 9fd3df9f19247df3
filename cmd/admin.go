package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/campusjobs/jobboard-auth/app/service"
	"github.com/campusjobs/jobboard-auth/config"
	"github.com/campusjobs/jobboard-auth/database"

	"github.com/spf13/cobra"
)

var (
	adminUsername string
	adminEmail    string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin account, reading the password from stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		password, err := readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx := context.Background()
		db, err := database.Open(ctx, cfg.DSN())
		if err != nil {
			return err
		}
		defer db.Close()

		app := newApplication(ctx, cfg, db)
		user, err := app.userAuth.SeedAdmin(ctx, strings.TrimSpace(adminUsername), strings.TrimSpace(adminEmail), password)
		if err != nil {
			if errors.Is(err, service.ErrUserExists) {
				return fmt.Errorf("admin %q already exists", adminEmail)
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "admin_id: %d\n", user.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "email: %s\n", user.Email)
		return nil
	},
}

func init() {
	adminCreateCmd.Flags().StringVar(&adminUsername, "username", "", "admin display name")
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "admin login email")
	_ = adminCreateCmd.MarkFlagRequired("username")
	_ = adminCreateCmd.MarkFlagRequired("email")

	adminCmd.AddCommand(adminCreateCmd)
	rootCmd.AddCommand(adminCmd)
}

// readPassword returns the first line of r without its line terminator.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password must be provided on stdin")
	}
	return password, nil
}
