package main

import (
	"fmt"

	"github.com/cuemby/brigade/pkg/auth"
	"github.com/cuemby/brigade/pkg/types"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for a staff member",
	Long: `Issue a signed access token for API and websocket clients, e.g. for
kitchen display screens that cannot log in interactively.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		role, _ := cmd.Flags().GetString("role")
		station, _ := cmd.Flags().GetString("station")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if ttl <= 0 {
			ttl = cfg.Auth.TokenTTL
		}

		actor := types.Actor{UserID: userID, Role: types.Role(role), Station: types.Station(station)}
		if !actor.Role.Valid() {
			return fmt.Errorf("unknown role %q", role)
		}
		if actor.Station != "" && !actor.Station.Valid() {
			return fmt.Errorf("unknown station %q", station)
		}

		token, err := auth.New(cfg.Auth.JWTSecret).Issue(actor, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("user", "", "User ID")
	tokenCmd.Flags().String("role", "", "Role (admin, captain, waiter, kitchen, cashier)")
	tokenCmd.Flags().String("station", "", "Kitchen station (hot-line, cold-line, beverages, pastry)")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default from config)")
	_ = tokenCmd.MarkFlagRequired("user")
	_ = tokenCmd.MarkFlagRequired("role")
}
