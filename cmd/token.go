package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openroad/roadassist/auth"
	"github.com/openroad/roadassist/config"
)

var (
	tokenUser string
	tokenRole string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a JWT for a user",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "subject user id")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "rider", "role: rider, mechanic, workshop or admin")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	role, err := auth.ParseRole(tokenRole)
	if err != nil {
		return err
	}
	mgr, err := auth.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer,
		time.Duration(cfg.Auth.TTLHours)*time.Hour)
	if err != nil {
		return err
	}
	tok, err := mgr.Issue(tokenUser, role)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
