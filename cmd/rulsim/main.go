// rulsim replays a bearing's vibration history from an XJTU-SY style
// dataset and prints the health indicator and remaining-useful-life
// estimates as JSON lines on stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
	"github.com/OrlandoFon/Backend-TCCRolamentos/dataset"
	"github.com/OrlandoFon/Backend-TCCRolamentos/detector"
	"github.com/OrlandoFon/Backend-TCCRolamentos/publish"
	"github.com/OrlandoFon/Backend-TCCRolamentos/simulation"
)

var version = "dev"

type options struct {
	basePath     string
	format       string
	configPath   string
	useCustomFdt bool
	fdt          detector.Params
	delay        time.Duration
	mqttBroker   string
	mqttTopic    string
	logLevel     string
}

func main() {
	opts := options{fdt: detector.DefaultParams()}

	cmd := &cobra.Command{
		Use:   "rulsim <bearing>",
		Short: "Estimate bearing remaining useful life from vibration data",
		Long: `rulsim walks through a bearing's recorded vibration files one step
at a time. Every step prints the envelope spectrum indicator (ESI); every
third step after the filter start prints the remaining useful life
predicted by the degradation filter.

Output is one JSON record per line on stdout. Logs go to stderr.`,
		Args:    cobra.ExactArgs(1),
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], opts, cmd.Flags().Changed("delay"), os.Stdout)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVar(&opts.basePath, "base-path", "", "root directory of the dataset")
	f.StringVar(&opts.format, "format", "csv", "dataset file format: csv or wav")
	f.StringVar(&opts.configPath, "config", "", "YAML file overriding the default configuration")
	f.BoolVar(&opts.useCustomFdt, "use-custom-fdt", false, "detect the failure onset from the data instead of the configured FDT")
	f.IntVar(&opts.fdt.Warmup, "fdt-warmup", opts.fdt.Warmup, "steps used to learn the detection baseline")
	f.IntVar(&opts.fdt.PersistenceLen, "fdt-persistence-len", opts.fdt.PersistenceLen, "consecutive exceedances required for detection")
	f.Float64Var(&opts.fdt.AmpOffset, "fdt-amp-offset", opts.fdt.AmpOffset, "amplitude margin above the baseline")
	f.DurationVar(&opts.delay, "delay", 0, "pause between steps")
	f.StringVar(&opts.mqttBroker, "mqtt-broker", "", "also publish events to this MQTT broker (tcp://host:1883)")
	f.StringVar(&opts.mqttTopic, "mqtt-topic", "bearings", "MQTT topic prefix")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level")
	cmd.MarkFlagRequired("base-path")

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

// run writes the bearing's records to out, one JSON object per line. A
// failure before or during the run is written as the final error record
// and returned.
func run(ctx context.Context, bearing string, opts options, delaySet bool, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sink publish.Sink = publish.NewJSONLines(out)

	level, err := log.ParseLevel(opts.logLevel)
	if err != nil {
		return fail(sink, bearing, err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if opts.mqttBroker != "" {
		m, err := publish.DialMQTT(publish.MQTTOptions{Broker: opts.mqttBroker, Topic: opts.mqttTopic, QoS: 1})
		if err != nil {
			return fail(sink, bearing, err)
		}
		sink = publish.Multi(sink, m)
	}
	defer sink.Close()

	cfg := config.Default()
	if opts.configPath != "" {
		if cfg, err = config.Load(opts.configPath); err != nil {
			return fail(sink, bearing, err)
		}
	}
	if delaySet {
		cfg.StepDelay = opts.delay
	}
	if err := cfg.Validate(); err != nil {
		return fail(sink, bearing, err)
	}

	src, err := dataset.Open(opts.format, opts.basePath, cfg)
	if err != nil {
		return fail(sink, bearing, err)
	}

	driverOpts := []simulation.Option{simulation.WithLogger(log.StandardLogger())}
	if opts.useCustomFdt {
		if err := opts.fdt.Validate(); err != nil {
			return fail(sink, bearing, err)
		}
		driverOpts = append(driverOpts, simulation.WithFdtSource(simulation.DynamicFdt{Params: opts.fdt}))
	}

	var runErr error
	for ev := range simulation.New(cfg, src, bearing, driverOpts...).Events(ctx) {
		if err := sink.Publish(ev); err != nil {
			log.WithError(err).Warn("publish failed")
		}
		if ev.Kind == simulation.KindError {
			runErr = ev.Err
		}
	}
	if runErr != nil {
		return runErr
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// fail reports err as a terminal record before returning it.
func fail(sink publish.Sink, bearing string, err error) error {
	if perr := sink.Publish(simulation.Failure(bearing, err)); perr != nil {
		return fmt.Errorf("%w (publish: %v)", err, perr)
	}
	return err
}
