// Package config turns the drill INI file and the positional command line
// into a validated Run.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"wb-drill/datacube"
)

// ErrConfig marks invalid or contradictory settings. It is always fatal.
var ErrConfig = errors.New("invalid configuration")

type TimeSpan string

const (
	SpanAll    TimeSpan = "ALL"
	SpanAppend TimeSpan = "APPEND"
	SpanCustom TimeSpan = "CUSTOM"
)

type SizeFilter string

const (
	SizeAll   SizeFilter = "ALL"
	SizeSmall SizeFilter = "SMALL"
	SizeHuge  SizeFilter = "HUGE"
)

// Keys live under the [DEFAULT] section of the INI file.
const section = "default."

const (
	DefaultProduct    = "wofs_albers"
	DefaultStartDate  = "1986"
	DefaultRetryDelay = 5 * time.Second
	DefaultStagger    = 5 * time.Second
)

type Run struct {
	Shapefile     string     `validate:"required"`
	OutputDir     string     `validate:"required"`
	Index         string     `validate:"required"`
	Product       string     `validate:"required"`
	StartDate     string
	EndDate       string
	Size          SizeFilter `validate:"oneof=ALL SMALL HUGE"`
	TimeSpan      TimeSpan   `validate:"oneof=ALL APPEND CUSTOM"`
	MissingOnly   bool
	ProcessedFile string
	AppendMaxDays int `validate:"min=0"`
	ReportFile    string
	MetricsFile   string
	RetryDelay    time.Duration `validate:"min=0"`
	Stagger       time.Duration `validate:"min=0"`

	Part      int `validate:"min=1,ltefield=NumChunks"`
	NumChunks int `validate:"min=1"`
}

// Args holds the positional command line: CONFIG_FILE PART NUM_CHUNKS
// [SIZE] [missing] [PROCESSED_FILE].
type Args struct {
	ConfigFile    string
	Part          int
	NumChunks     int
	Size          string
	Missing       bool
	ProcessedFile string
}

func ParseArgs(args []string) (Args, error) {
	if len(args) < 3 || len(args) > 6 {
		return Args{}, fmt.Errorf("%w: expected CONFIG_FILE PART NUM_CHUNKS [SIZE] [missing] [PROCESSED_FILE], got %d args", ErrConfig, len(args))
	}
	part, err := strconv.Atoi(args[1])
	if err != nil {
		return Args{}, fmt.Errorf("%w: part %q is not an integer", ErrConfig, args[1])
	}
	numChunks, err := strconv.Atoi(args[2])
	if err != nil {
		return Args{}, fmt.Errorf("%w: num_chunks %q is not an integer", ErrConfig, args[2])
	}
	a := Args{ConfigFile: args[0], Part: part, NumChunks: numChunks}
	if len(args) > 3 {
		a.Size = strings.ToUpper(args[3])
	}
	if len(args) > 4 {
		a.Missing = args[4] == "missing"
	}
	if len(args) > 5 {
		a.ProcessedFile = args[5]
	}
	return a, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(section+"size", string(SizeAll))
	v.SetDefault(section+"time_span", string(SpanAll))
	v.SetDefault(section+"start_date", DefaultStartDate)
	v.SetDefault(section+"product", DefaultProduct)
	v.SetDefault(section+"retry_delay", DefaultRetryDelay.String())
	v.SetDefault(section+"stagger", DefaultStagger.String())
}

// Load reads the INI file named in args into v, applies the positional
// overrides and validates the result. No other I/O happens before the
// Run is known to be consistent.
func Load(v *viper.Viper, args Args) (*Run, error) {
	setDefaults(v)
	v.SetConfigFile(args.ConfigFile)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfig, args.ConfigFile, err)
	}
	retryDelay, err := duration(v, "retry_delay")
	if err != nil {
		return nil, err
	}
	stagger, err := duration(v, "stagger")
	if err != nil {
		return nil, err
	}

	run := &Run{
		Shapefile:     v.GetString(section + "shapefile"),
		OutputDir:     v.GetString(section + "outputdir"),
		Index:         v.GetString(section + "index"),
		Product:       v.GetString(section + "product"),
		StartDate:     v.GetString(section + "start_date"),
		EndDate:       v.GetString(section + "end_date"),
		Size:          SizeFilter(strings.ToUpper(v.GetString(section + "size"))),
		TimeSpan:      TimeSpan(strings.ToUpper(v.GetString(section + "time_span"))),
		MissingOnly:   strings.EqualFold(v.GetString(section+"missing_only"), "true"),
		ProcessedFile: v.GetString(section + "processed_file"),
		AppendMaxDays: v.GetInt(section + "append_max_days"),
		ReportFile:    v.GetString(section + "report_file"),
		MetricsFile:   v.GetString(section + "metrics_file"),
		RetryDelay:    retryDelay,
		Stagger:       stagger,
		Part:          args.Part,
		NumChunks:     args.NumChunks,
	}
	if args.Size != "" {
		run.Size = SizeFilter(args.Size)
	}
	if args.Missing {
		run.MissingOnly = true
	}
	if args.ProcessedFile != "" {
		run.ProcessedFile = args.ProcessedFile
	}
	// Anything this short is a placeholder, not a path.
	if len(run.ProcessedFile) < 2 {
		run.ProcessedFile = ""
	}

	if err := run.Validate(); err != nil {
		return nil, err
	}
	return run, nil
}

// duration reads a Go duration such as "5s". A bare number is seconds.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	s := strings.TrimSpace(v.GetString(section + key))
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a duration", ErrConfig, strings.ToUpper(key), s)
	}
	return d, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (r *Run) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("%w: %s", ErrConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if r.TimeSpan == SpanAppend && r.MissingOnly {
		return fmt.Errorf("%w: TIME_SPAN=APPEND needs existing CSVs, MISSING_ONLY=true selects polygons without one", ErrConfig)
	}
	if r.AppendMaxDays > 0 && r.TimeSpan != SpanAppend {
		logrus.Warnf("APPEND_MAX_DAYS=%d ignored for TIME_SPAN=%s", r.AppendMaxDays, r.TimeSpan)
	}
	if r.TimeSpan == SpanCustom {
		end := r.EndDate
		if end == "" {
			end = strconv.Itoa(time.Now().Year())
		}
		if _, err := datacube.ParseWindow(r.StartDate, end); err != nil {
			return fmt.Errorf("%w: START_DATE/END_DATE: %v", ErrConfig, err)
		}
	} else if r.EndDate != "" {
		logrus.Warnf("END_DATE=%s only applies to TIME_SPAN=CUSTOM", r.EndDate)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s=%v must be one of %s", fe.Field(), fe.Value(), fe.Param())
	case "ltefield":
		return fmt.Sprintf("%s=%v must not exceed %s", fe.Field(), fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("%s=%v fails %s=%s", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
	}
}
