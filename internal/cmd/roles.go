package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gartstein/onboard/internal/onboarding/controller"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"github.com/spf13/cobra"
)

var roleEmail string

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Inspect and assign user roles",
}

var rolesSetCmd = &cobra.Command{
	Use:   "set <user_id> <role>",
	Short: "Assign salesperson, admin or user to a user",
	Long: `Assigns a role to an identity-provider user id. This is how the first
administrator is created; later assignments can go through the admin API.`,
	Args: cobra.ExactArgs(2),
	RunE: runRolesSet,
}

var rolesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List role assignments, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRolesList,
}

func init() {
	rootCmd.AddCommand(rolesCmd)
	rolesCmd.AddCommand(rolesSetCmd, rolesListCmd)
	rolesSetCmd.Flags().StringVar(&roleEmail, "email", "", "email recorded with the assignment")
}

func roleService(cmd *cobra.Command) (*controller.RoleService, func(), error) {
	cfg, logger, err := bootstrap()
	if err != nil {
		return nil, nil, err
	}
	repo, err := connect(cmd.Context(), cfg, logger)
	if err != nil {
		syncLogger(logger)
		return nil, nil, err
	}
	cleanup := func() {
		_ = repo.Close()
		syncLogger(logger)
	}
	return controller.NewRoleService(repo, cfg.FallbackRole(), nil, logger), cleanup, nil
}

func runRolesSet(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := roleService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	row, err := svc.Set(cmd.Context(), args[0], models.Role(args[1]), roleEmail)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", row.UserID, row.Role)
	return nil
}

func runRolesList(cmd *cobra.Command, _ []string) error {
	svc, cleanup, err := roleService(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := svc.List(cmd.Context())
	if err != nil {
		return err
	}
	return printRoles(cmd.OutOrStdout(), rows)
}

func printRoles(out io.Writer, rows []models.UserRole) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER ID\tROLE\tEMAIL\tASSIGNED")
	for _, r := range rows {
		email := "-"
		if r.Email != nil {
			email = *r.Email
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.UserID, r.Role, email, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
