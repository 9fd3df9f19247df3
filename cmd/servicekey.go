package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusjobs/jobboard-auth/app/repository"
	"github.com/campusjobs/jobboard-auth/app/service"

	"github.com/spf13/cobra"
)

var serviceKeyCmd = &cobra.Command{
	Use:   "servicekey",
	Short: "Manage keys for services calling the session introspection API",
}

var serviceKeyIssueCmd = &cobra.Command{
	Use:   "issue <service_name>",
	Short: "Issue a key for a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, closeDB, err := newServiceKeyServiceForCommands()
		if err != nil {
			return err
		}
		defer closeDB()

		serviceName := args[0]
		key, err := keys.Issue(context.Background(), serviceName)
		if err != nil {
			if errors.Is(err, service.ErrServiceHasActiveKey) {
				return fmt.Errorf("service %q already has an active key, revoke it first", serviceName)
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "service_name: %s\n", serviceName)
		fmt.Fprintf(cmd.OutOrStdout(), "service_key: %s\n", key)
		return nil
	},
}

var serviceKeyRevokeCmd = &cobra.Command{
	Use:   "revoke <service_name>",
	Short: "Deactivate every active key of a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, closeDB, err := newServiceKeyServiceForCommands()
		if err != nil {
			return err
		}
		defer closeDB()

		serviceName := args[0]
		count, err := keys.Revoke(context.Background(), serviceName)
		if err != nil {
			if errors.Is(err, service.ErrServiceHasNoActiveKey) {
				return fmt.Errorf("service %q has no active key", serviceName)
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "revoked %d key(s) for service %s\n", count, serviceName)
		return nil
	},
}

func init() {
	serviceKeyCmd.AddCommand(serviceKeyIssueCmd)
	serviceKeyCmd.AddCommand(serviceKeyRevokeCmd)
	rootCmd.AddCommand(serviceKeyCmd)
}

func newServiceKeyServiceForCommands() (service.ServiceKeyService, func(), error) {
	db, err := openDatabaseFromEnv(context.Background())
	if err != nil {
		return nil, nil, err
	}

	keys := service.NewServiceKeyService(repository.NewServiceKeyRepository(db))
	return keys, func() { _ = db.Close() }, nil
}
