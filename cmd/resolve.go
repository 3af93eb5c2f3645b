package cmd

import (
	"fmt"
	"strings"

	"github.com/nraw/gamescanner/internal/utils"
	"github.com/nraw/gamescanner/pkg/resolve"
	"github.com/spf13/cobra"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve <barcode or name>",
	Short: "Find the BoardGameGeek id of a barcode or game name",
	Long: `Looks the query up in the local mapping history first and falls back to searching the web.
New answers are remembered so the next scan of the same barcode is instant.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		printURL, _ := cmd.Flags().GetBool("url")
		noCache, _ := cmd.Flags().GetBool("no-cache")
		name, _ := cmd.Flags().GetString("name")

		resolver, err := newResolver()
		if err != nil {
			return err
		}

		if noCache {
			var out string
			if printURL {
				out, err = resolver.ResolveURL(cmd.Context(), query)
			} else {
				out, err = resolver.Resolve(cmd.Context(), query)
			}
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return withDBLock(cmd.Context(), func() error {
			lookup, err := resolve.NewService(resolver, db, utils.Log).Lookup(cmd.Context(), resolve.LookupRequest{
				Query: query,
				Name:  name,
			})
			if err != nil {
				return err
			}
			if lookup.Cached {
				utils.Log.Debugf("%q answered from history", query)
			}
			if printURL {
				fmt.Println(lookup.URL)
			} else {
				fmt.Println(lookup.GameID)
			}
			return nil
		})
	},
}

// mapCmd represents the map command
var mapCmd = &cobra.Command{
	Use:   "map <query> <bgg id>",
	Short: "Record the correct BoardGameGeek id for a barcode or name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, id := args[0], args[1]
		if !utils.IsBarcode(id) {
			return resolve.ErrInvalidGameID
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return withDBLock(cmd.Context(), func() error {
			if err := db.AppendMapping(cmd.Context(), query, id, false); err != nil {
				return err
			}
			utils.Log.Infof("%q now maps to %s", query, resolve.GameURL(id))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(mapCmd)
	resolveCmd.Flags().BoolP("url", "u", false, "Print the game page URL instead of the id")
	resolveCmd.Flags().Bool("no-cache", false, "Search without reading or writing the mapping history")
	resolveCmd.Flags().StringP("name", "n", "", "Resolve this game name instead and remember it for the query")
}
