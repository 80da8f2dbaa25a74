// ruldash is a terminal dashboard that runs a bearing simulation in-process
// and displays the health indicator trend and the latest remaining useful
// life estimate as the run progresses.
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
	"github.com/OrlandoFon/Backend-TCCRolamentos/dataset"
	"github.com/OrlandoFon/Backend-TCCRolamentos/detector"
	"github.com/OrlandoFon/Backend-TCCRolamentos/kalman"
	"github.com/OrlandoFon/Backend-TCCRolamentos/simulation"
)

var version = "dev"

// ANSI escape codes.
const (
	rst     = "\033[0m"
	bold    = "\033[1m"
	dim     = "\033[2m"
	red     = "\033[31m"
	grn     = "\033[32m"
	yel     = "\033[33m"
	cyn     = "\033[36m"
	bred    = "\033[91m"
	bwht    = "\033[97m"
	hideCur = "\033[?25l"
	showCur = "\033[?25h"
	altOn   = "\033[?1049h"
	altOff  = "\033[?1049l"
	clear   = "\033[2J\033[H"

	width  = 76
	blocks = " ▁▂▃▄▅▆▇█"
)

type options struct {
	basePath     string
	format       string
	configPath   string
	useCustomFdt bool
	fdt          detector.Params
	delay        time.Duration
}

func main() {
	opts := options{fdt: detector.DefaultParams()}

	cmd := &cobra.Command{
		Use:   "ruldash <bearing>",
		Short: "Live RUL dashboard for a bearing run",
		Long: `ruldash replays a bearing's vibration history and draws the envelope
spectrum indicator (ESI) trend, the latest remaining-useful-life estimate
and recent events in the terminal.

Logs are discarded while the dashboard is drawn.`,
		Args:    cobra.ExactArgs(1),
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], opts)
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
	f.DurationVar(&opts.delay, "delay", 200*time.Millisecond, "pause between steps")
	cmd.MarkFlagRequired("base-path")

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

// feed is a recorded dashboard line.
type feed struct {
	at    time.Time
	kind  simulation.Kind
	step  int
	label string
}

// state is what the renderer reads while the run goroutine writes it.
type state struct {
	mu       sync.Mutex
	meta     dataset.Metadata
	raw      []float64
	smoothed []float64
	gravity  float64
	step     int
	failures int
	rul      *kalman.RUL
	rulStep  int
	rulTrend []float64
	feed     []feed
	done     bool
	err      error
}

func (s *state) apply(ev simulation.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.step = max(s.step, ev.Step)
	switch ev.Kind {
	case simulation.KindIndicator:
		u := ev.Indicator
		s.gravity = u.Gravity
		s.smoothed = append(s.smoothed, u.Smoothed)
		if u.Failure != nil {
			s.failures++
			s.raw = append(s.raw, 0)
			s.push(ev, u.Failure.Label())
			return
		}
		s.raw = append(s.raw, u.Raw)
	case simulation.KindRUL:
		est := *ev.RUL
		s.rul = &est
		s.rulStep = ev.Step
		if est.Outcome == kalman.Finite {
			s.rulTrend = append(s.rulTrend, est.Steps)
		}
		s.push(ev, rulText(est))
	case simulation.KindCompletion:
		s.done = true
		s.push(ev, simulation.StatusCompleted)
	case simulation.KindError:
		s.done = true
		s.err = ev.Err
		s.push(ev, ev.Err.Error())
	}
}

func (s *state) push(ev simulation.Event, label string) {
	s.feed = append(s.feed, feed{at: time.Now(), kind: ev.Kind, step: ev.Step, label: label})
	if len(s.feed) > 32 {
		s.feed = s.feed[len(s.feed)-32:]
	}
}

func run(ctx context.Context, bearing string, opts options) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}
	cfg.StepDelay = opts.delay
	if err := cfg.Validate(); err != nil {
		return err
	}

	src, err := dataset.Open(opts.format, opts.basePath, cfg)
	if err != nil {
		return err
	}
	meta, err := src.Metadata(bearing)
	if err != nil {
		return err
	}

	logger := log.New()
	logger.SetOutput(io.Discard)

	driverOpts := []simulation.Option{simulation.WithLogger(logger)}
	if opts.useCustomFdt {
		if err := opts.fdt.Validate(); err != nil {
			return err
		}
		driverOpts = append(driverOpts, simulation.WithFdtSource(simulation.DynamicFdt{Params: opts.fdt}))
	}

	st := &state{meta: meta, gravity: cfg.Gravity}
	go func() {
		for ev := range simulation.New(cfg, src, bearing, driverOpts...).Events(ctx) {
			st.apply(ev)
		}
	}()

	tStart := time.Now()
	fmt.Print(altOn + hideCur)
	defer fmt.Print(showCur + altOff + "\n")

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		fmt.Print(clear + render(st, tStart))
	}
}

func render(st *state, tStart time.Time) string {
	st.mu.Lock()
	defer st.mu.Unlock()

	var b strings.Builder
	gw := width - 4

	line := func(content string) {
		vl := visLen(content)
		pad := max(0, width-vl)
		fmt.Fprintf(&b, "%s│%s%s%s│%s\n", dim, rst, content, strings.Repeat(" ", pad), rst)
	}
	sep := func(label string) {
		if label != "" {
			rest := width - visLen(label) - 1
			fmt.Fprintf(&b, "%s├─%s%s┤%s\n", dim, label, strings.Repeat("─", rest), rst)
		} else {
			fmt.Fprintf(&b, "%s├%s┤%s\n", dim, strings.Repeat("─", width), rst)
		}
	}

	// Header
	title := " BEARING RUL "
	topBar := strings.Repeat("─", width-len(title)-1)
	fmt.Fprintf(&b, "%s┌─%s%s%s%s%s┐%s\n", dim, rst, bwht, title, rst, dim+topBar, rst)

	m := st.meta
	status := fmt.Sprintf("%srunning%s", grn, rst)
	switch {
	case st.err != nil:
		status = fmt.Sprintf("%sfailed%s", bred, rst)
	case st.done:
		status = fmt.Sprintf("%scompleted%s", bwht, rst)
	}
	line(fmt.Sprintf(" %s%s%s %s(%s)%s  %s%7.1fs%s  %s",
		bold, m.Bearing, rst, dim, m.Condition, rst, dim, time.Since(tStart).Seconds(), rst, status))
	line(fmt.Sprintf(" FDT:%d  EOL:%d  Vt:%g  Wt:%g", m.FDT, m.EOL, m.Vt, m.Wt))

	// Progress
	sep(" Progress ")
	pw := gw - 14
	frac := 0.0
	if m.Steps > 0 {
		frac = float64(st.step) / float64(m.Steps)
	}
	line(fmt.Sprintf("  %s%s%s %4d/%-4d", cyn, progress(frac, pw), rst, st.step, m.Steps))

	// ESI
	sep(" ESI raw ")
	if len(st.raw) > 0 {
		mx := math.Max(1e-9, maxAbs(st.raw))
		line(fmt.Sprintf("  %s%s%s", grn, sparkline(downsample(st.raw, gw), gw, mx), rst))
		line(fmt.Sprintf("  %s%.3f m/s² (%.4fg)%s", dim, mx, mx/st.gravity, rst))
	} else {
		line(fmt.Sprintf("  %swaiting...%s", dim, rst))
		line("")
	}

	sep(" ESI smoothed ")
	if n := len(st.smoothed); n > 0 {
		last := st.smoothed[n-1]
		line(fmt.Sprintf("  %s%s%s", yel, sparkline(downsample(st.smoothed, gw), gw, 0), rst))
		line(fmt.Sprintf("  latest %s%.3f m/s²%s  %s%.4fg%s  failed steps:%d",
			bwht, last, rst, dim, last/st.gravity, rst, st.failures))
	} else {
		line(fmt.Sprintf("  %saccumulating...%s", dim, rst))
		line("")
	}

	// RUL
	sep(" Remaining useful life ")
	if st.rul != nil {
		r := *st.rul
		col := grn
		if r.Outcome == kalman.Finite && r.Steps < float64(max(1, m.EOL-m.FDT))/4 {
			col = bred + bold
		}
		line(fmt.Sprintf(" %s%s%s at minute %d  %sa:%.3f b:%.5f iter:%d%s",
			col, rulText(r), rst, st.rulStep, dim, r.ESI, r.Rate, r.Iterations, rst))
		if len(st.rulTrend) > 0 {
			line(fmt.Sprintf("  %s%s%s", cyn, sparkline(downsample(st.rulTrend, gw), gw, 0), rst))
		} else {
			line("")
		}
		if m.EOL > 0 && r.Outcome == kalman.Finite {
			actual := float64(m.EOL - st.rulStep)
			gwid := width - 26
			line(fmt.Sprintf(" %serror%s %s%s%s %+8.1f min",
				dim, rst, cyn, errorBar(r.Steps-actual, actual, gwid), rst, r.Steps-actual))
		} else {
			line("")
		}
	} else {
		line(fmt.Sprintf(" %sno estimate yet%s", dim, rst))
		line("")
		line("")
	}

	// Events
	sep(" Events ")
	evts := st.feed
	start := max(0, len(evts)-5)
	for i := len(evts) - 1; i >= start; i-- {
		ev := evts[i]
		line(fmt.Sprintf(" %s%s%s %s%-6s%s %4d  %s",
			dim, ev.at.Format("15:04:05.000"), rst, kindColor(ev.kind), ev.kind, rst, ev.step, clip(ev.label, width-32)))
	}
	for range max(0, 5-(len(evts)-start)) {
		line("")
	}

	// Footer
	sep("")
	line(fmt.Sprintf(" %sctrl+c to quit%s", dim, rst))
	fmt.Fprintf(&b, "%s└%s┘%s\n", dim, strings.Repeat("─", width), rst)

	return b.String()
}

func rulText(r kalman.RUL) string {
	switch r.Outcome {
	case kalman.Finite:
		return fmt.Sprintf("%.1f min", r.Steps)
	case kalman.Unbounded:
		return "∞ (no degradation)"
	default:
		return "undefined"
	}
}

func sparkline(data []float64, width int, ceil float64) string {
	if len(data) == 0 {
		return strings.Repeat(" ", width)
	}
	d := data
	if len(d) < width {
		pad := make([]float64, width-len(d))
		d = append(pad, d...)
	} else if len(d) > width {
		d = d[len(d)-width:]
	}
	if ceil <= 0 {
		ceil = maxAbs(d)
	}
	if ceil <= 0 {
		ceil = 1
	}
	blk := []rune(blocks)
	var b strings.Builder
	for _, v := range d {
		frac := math.Min(1, math.Abs(v)/ceil)
		idx := min(8, int(frac*8))
		b.WriteRune(blk[idx])
	}
	return b.String()
}

func progress(frac float64, width int) string {
	filled := int(math.Max(0, math.Min(1, frac)) * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// errorBar marks value on a bar spanning ±span with zero in the middle.
// Values past either end sit on the end cell.
func errorBar(value, span float64, width int) string {
	mid := (width - 1) / 2
	pos := mid
	if span > 0 {
		pos = mid + int(math.Round(value/span*float64(mid)))
	}
	bar := []rune(strings.Repeat("─", width))
	bar[mid] = '┼'
	bar[max(0, min(width-1, pos))] = '●'
	return string(bar)
}

func downsample(data []float64, width int) []float64 {
	n := len(data)
	if n <= width {
		return data
	}
	step := float64(n) / float64(width)
	out := make([]float64, width)
	for c := range width {
		si := int(float64(c) * step)
		ei := int(float64(c+1) * step)
		mx := data[si]
		for j := si + 1; j < ei && j < n; j++ {
			if data[j] > mx {
				mx = data[j]
			}
		}
		out[c] = mx
	}
	return out
}

func maxAbs(data []float64) float64 {
	mx := 0.0
	for _, v := range data {
		if math.Abs(v) > mx {
			mx = math.Abs(v)
		}
	}
	return mx
}

func visLen(s string) int {
	n := 0
	inEsc := false
	for _, r := range s {
		if r == '\033' {
			inEsc = true
			continue
		}
		if inEsc {
			if r == 'm' {
				inEsc = false
			}
			continue
		}
		n++
	}
	return n
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:max(0, n-1)]) + "…"
}

func kindColor(k simulation.Kind) string {
	switch k {
	case simulation.KindError:
		return bred + bold
	case simulation.KindRUL:
		return cyn
	case simulation.KindCompletion:
		return bwht
	case simulation.KindIndicator:
		return red
	default:
		return dim
	}
}
