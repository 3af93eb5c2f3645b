package cmd

import (
	"github.com/nraw/gamescanner/internal/server"
	"github.com/nraw/gamescanner/internal/utils"
	"github.com/nraw/gamescanner/pkg/resolve"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gamescanner HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := newResolver()
		if err != nil {
			return err
		}
		bggClient, err := newBGGClient()
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		user := viper.GetString("server.username")
		pass := viper.GetString("server.password")
		if user == "" && pass == "" {
			utils.Log.Warn("server.username and server.password are empty, the API is not protected")
		}

		srv := server.New(resolve.NewService(resolver, db, utils.Log), db, bggClient, user, pass)
		return srv.Start(cmd.Context(), viper.GetString("server.listen"))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}
