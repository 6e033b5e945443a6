package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/santemetrics/recordkit/server"
	"github.com/santemetrics/recordkit/store"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts a REST server for document import and record retrieval",
	Long:  ``,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		st, err := store.Open(viper.GetString("db"))
		if err != nil {
			return err
		}
		defer st.Close()

		cacheMinutes := viper.GetInt("cache-minutes")
		sv := server.New(server.Options{
			Addr:       fmt.Sprintf(":%d", viper.GetInt("port")),
			AuthSecret: viper.GetString("auth-secret"),
			CacheTTL:   time.Duration(cacheMinutes) * time.Minute,
		}, registry, st)
		log.Info().
			Int("port", viper.GetInt("port")).
			Str("db", viper.GetString("db")).
			Int("cache_minutes", cacheMinutes).
			Strs("measures", registry.MeasureIDs()).
			Msg("starting REST server")
		return sv.RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().Int("port", 8080, "Port to run HTTP server")
	viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))
	serveCmd.PersistentFlags().String("db", "recordkit.db", "SQLite database for imported records")
	viper.BindPFlag("db", serveCmd.PersistentFlags().Lookup("db"))
	serveCmd.PersistentFlags().Int("cache-minutes", 5, "import cache expiration in minutes, 0=no cache")
	viper.BindPFlag("cache-minutes", serveCmd.PersistentFlags().Lookup("cache-minutes"))
}
