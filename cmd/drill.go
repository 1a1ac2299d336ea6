package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wb-drill/config"
	"wb-drill/datacube"
	"wb-drill/drillio"
	"wb-drill/drilltools"
	"wb-drill/polytools"
)

// drillCmd represents the drill command
var drillCmd = &cobra.Command{
	Use:   "drill CONFIG_FILE PART NUM_CHUNKS [SIZE] [missing] [PROCESSED_FILE]",
	Short: "Write the WOFS time history of one chunk of polygons",
	Long: `Reads the polygons named by SHAPEFILE in the [DEFAULT] section of
	CONFIG_FILE, keeps the PART'th of NUM_CHUNKS chunks and writes one CSV
	per polygon under OUTPUTDIR.

	Positional overrides:
		SIZE:           ALL, SMALL or HUGE. Overrides SIZE in the config file.
		missing:        Only polygons without an existing CSV.
		PROCESSED_FILE: File of already processed polygon paths to skip.

	REPORT_FILE and METRICS_FILE may contain {part}, replaced by PART.`,
	Args: cobra.RangeArgs(3, 6),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runDrill(cmd.Context(), args); err != nil {
			logrus.Error(err)
			return err
		}
		return nil
	},
}

func partPath(path string, part int) string {
	return strings.ReplaceAll(path, "{part}", strconv.Itoa(part))
}

// openIndex opens an existing index that registers run.Product. Either
// missing is a configuration error.
func openIndex(ctx context.Context, run *config.Run) (*datacube.Index, error) {
	if _, err := os.Stat(run.Index); err != nil {
		return nil, fmt.Errorf("%w: INDEX: %v", config.ErrConfig, err)
	}
	index, err := datacube.OpenIndex(ctx, run.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: INDEX: %v", config.ErrConfig, err)
	}
	if _, err := index.Product(ctx, run.Product); err != nil {
		return nil, errors.Join(fmt.Errorf("%w: PRODUCT: %v", config.ErrConfig, err), index.Close())
	}
	return index, nil
}

func runDrill(ctx context.Context, argv []string) (err error) {
	args, err := config.ParseArgs(argv)
	if err != nil {
		return err
	}
	run, err := config.Load(viper.New(), args)
	if err != nil {
		return err
	}
	logrus.Infof("Drilling %s into %s, TIME_SPAN=%s SIZE=%s", run.Shapefile, run.OutputDir, run.TimeSpan, run.Size)

	index, err := openIndex(ctx, run)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, index.Close())
	}()

	if err := polytools.Stagger(ctx, run.Stagger, run.Part); err != nil {
		return err
	}

	src, err := polytools.Open(run.Shapefile)
	if err != nil {
		return err
	}
	defer src.Close()

	polys, err := polytools.Filter(src.Polygons, run)
	if err != nil {
		return err
	}
	chunk := polytools.Chunk(polys, run.Part, run.NumChunks)
	logrus.Infof("Part %d of %d has %d of %d polygons", run.Part, run.NumChunks, len(chunk), len(polys))

	metrics := drillio.NewMetrics(run.Part)
	batch := &drilltools.Batch{
		Driller: &drilltools.Driller{
			Engine:     &drilltools.Engine{Cube: datacube.NewCube(index), Product: run.Product},
			Planner:    drilltools.NewPlanner(run),
			OutputDir:  run.OutputDir,
			RetryDelay: run.RetryDelay,
		},
		Source:  src,
		Metrics: metrics,
	}
	summary := batch.Run(ctx, chunk)

	// Per polygon CSVs are already on disk, report failures are logged only.
	if run.ReportFile != "" {
		path := partPath(run.ReportFile, run.Part)
		if err := drillio.WriteReportParquet(path, summary.ReportRows()); err != nil {
			logrus.Errorf("Writing report %s: %v", path, err)
		} else {
			logrus.Infof("Wrote report %s", path)
		}
	}
	if run.MetricsFile != "" {
		path := partPath(run.MetricsFile, run.Part)
		if err := metrics.WriteTextfile(path); err != nil {
			logrus.Errorf("Writing metrics %s: %v", path, err)
		}
	}
	return ctx.Err()
}

func init() {
	rootCmd.AddCommand(drillCmd)
}
