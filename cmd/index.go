package cmd

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wb-drill/config"
	"wb-drill/datacube"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the local datacube index",
}

// indexAddCmd represents the index add command
var indexAddCmd = &cobra.Command{
	Use:   "add [tif_file...]",
	Short: "Register WOFS GeoTIFFs with the datacube index",
	Long: `Records the grid, CRS and TIFFTAG_DATETIME acquisition time of each
	GeoTIFF so that drill can find it. Every file must share the product grid.

	Options:
		--index:   Path of the sqlite index, created if missing.
		--product: Product the rasters belong to.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := addDatasets(cmd.Context(), viper.GetString("index"), viper.GetString("product"), args)
		if err != nil {
			logrus.Error(err)
		}
		return err
	},
}

func addDatasets(ctx context.Context, indexPath, product string, paths []string) (err error) {
	index, err := datacube.OpenIndex(ctx, indexPath)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, index.Close())
	}()

	for _, path := range paths {
		p, d, err := datacube.DescribeGeoTIFF(path, product)
		if err != nil {
			return err
		}
		if err := index.AddProduct(ctx, p); err != nil {
			return err
		}
		if err := index.AddDataset(ctx, d); err != nil {
			return err
		}
		logrus.Debugf("Indexed %s observed %s", path, d.Time)
	}
	logrus.Infof("Indexed %d datasets into %s", len(paths), product)
	return nil
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexAddCmd)

	indexAddCmd.Flags().StringP("index", "i", "wofs.db", "Path of the sqlite datacube index")
	err := viper.BindPFlag("index", indexAddCmd.Flags().Lookup("index"))
	if err != nil {
		logrus.Exit(1)
	}

	indexAddCmd.Flags().StringP("product", "p", config.DefaultProduct, "Product the rasters belong to")
	err = viper.BindPFlag("product", indexAddCmd.Flags().Lookup("product"))
	if err != nil {
		logrus.Exit(1)
	}
}
