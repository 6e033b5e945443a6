package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/santemetrics/recordkit/server"
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token [client-name]",
	Short: "Issues a bearer token for the REST server",
	Long: `
Issues a signed bearer token for a named client, using the same shared
secret the server was started with (--auth-secret).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		auth := server.NewAuth(viper.GetString("auth-secret"))
		if !auth.Enabled() {
			return errors.New("no auth-secret configured")
		}
		token, err := auth.IssueToken(args[0], viper.GetDuration("duration"))
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.PersistentFlags().Duration("duration", 72*time.Hour, "Token validity")
	viper.BindPFlag("duration", tokenCmd.PersistentFlags().Lookup("duration"))
}
