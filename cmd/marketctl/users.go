package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"automarket/internal/listing"
	"automarket/internal/user"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	RunE:  runUsersCreate,
}

var usersCreateManagerCmd = &cobra.Command{
	Use:   "create-manager",
	Short: "Create a manager account",
	RunE:  runUsersCreate,
}

var usersSetTierCmd = &cobra.Command{
	Use:   "set-tier <user-id> <basic|premium>",
	Short: "Change the listing tier of an account",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsersSetTier,
}

var usersUpgradeCmd = &cobra.Command{
	Use:   "upgrade <user-id>",
	Short: "Move an account to the premium tier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUsersSetTier(cmd, []string{args[0], string(user.TierPremium)})
	},
}

func init() {
	for _, c := range []*cobra.Command{usersCreateCmd, usersCreateManagerCmd} {
		c.Flags().String("username", "", "Username")
		c.Flags().String("email", "", "E-mail address")
		_ = c.MarkFlagRequired("username")
		_ = c.MarkFlagRequired("email")
	}
	usersCreateCmd.Flags().String("role", string(user.RoleSeller), "Role: buyer, seller, manager, admin")
	usersCreateCmd.Flags().String("tier", string(user.TierBasic), "Tier: basic, premium")

	usersCmd.AddCommand(usersCreateCmd, usersCreateManagerCmd, usersSetTierCmd, usersUpgradeCmd)
	rootCmd.AddCommand(usersCmd)
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	email, _ := cmd.Flags().GetString("email")
	a := user.Account{Username: username, Email: email, Role: user.RoleManager}
	if cmd.Flags().Lookup("role") != nil {
		role, _ := cmd.Flags().GetString("role")
		tier, _ := cmd.Flags().GetString("tier")
		a.Role, a.Tier = user.Role(role), user.Tier(tier)
	}
	a, err := a.Normalize()
	if err != nil {
		return err
	}

	pool, err := connect(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	u, err := listing.NewPostgresStore(pool).Users().CreateUser(cmdContext(cmd), a)
	if err != nil {
		return err
	}
	printUser(cmd.OutOrStdout(), u)
	return nil
}

func runUsersSetTier(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid user id %q", args[0])
	}
	tier, err := user.ParseTier(args[1])
	if err != nil {
		return err
	}

	pool, err := connect(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	u, err := listing.NewPostgresStore(pool).Users().SetTier(cmdContext(cmd), id, tier)
	if err != nil {
		return err
	}
	printUser(cmd.OutOrStdout(), u)
	return nil
}

func printUser(w io.Writer, u *user.User) {
	fmt.Fprintf(w, "%s  %-20s %-8s %-8s %s\n", u.ID, u.Username, u.Role, u.Tier, u.Email)
}
