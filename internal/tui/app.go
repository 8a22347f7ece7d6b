// Package tui is the interactive terminal front end: pick a track, tune
// the controller, watch it drive.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"mpcdrive/internal/config"
	"mpcdrive/internal/metrics"
	"mpcdrive/internal/mpc"
	"mpcdrive/internal/sim"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var trackInfo = map[string]string{
	"straight": "flat-out cruise",
	"wave":     "gentle slalom",
	"loop":     "constant curvature",
}

type state int

const (
	stateMenu state = iota
	stateConfig
	stateRun
)

type cycleMsg struct {
	sample metrics.Sample
	cmd    mpc.Command
}

type doneMsg struct {
	result *sim.Result
	err    error
}

type App struct {
	state  state
	cursor int
	tracks []string

	cfg         *config.Config
	params      map[string]float64
	paramNames  []string
	paramCursor int
	editing     bool
	editBuf     string

	cancel  context.CancelFunc
	cycles  chan cycleMsg
	done    chan doneMsg
	view    *liveView
	last    cycleMsg
	haveRun bool
	result  *sim.Result
	runErr  error

	width  int
	height int
	log    zerolog.Logger
}

func NewApp(cfg *config.Config, log zerolog.Logger) *App {
	return &App{
		state:  stateMenu,
		tracks: []string{"straight", "wave", "loop"},
		cfg:    cfg,
		params: map[string]float64{
			"target_speed": cfg.TargetSpeed,
			"latency":      cfg.Latency,
			"cycles":       300,
		},
		paramNames: []string{"target_speed", "latency", "cycles"},
		width:      80,
		height:     24,
		log:        log,
	}
}

// Run blocks until the user quits.
func Run(cfg *config.Config, log zerolog.Logger) error {
	_, err := tea.NewProgram(NewApp(cfg, log), tea.WithAltScreen()).Run()
	return err
}

func (a *App) Init() tea.Cmd { return nil }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil
	case cycleMsg:
		a.last = msg
		a.haveRun = true
		a.view.observe(msg.sample)
		return a, a.waitCycle()
	case doneMsg:
		a.result = msg.result
		a.runErr = msg.err
		a.cancel = nil
		return a, nil
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		a.stop()
		return a, tea.Quit
	}
	switch a.state {
	case stateMenu:
		return a.menuKey(msg)
	case stateConfig:
		return a.configKey(msg)
	case stateRun:
		return a.runKey(msg)
	}
	return a, nil
}

func (a *App) menuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.tracks)-1 {
			a.cursor++
		}
	case "enter", " ":
		a.state = stateConfig
		a.paramCursor = 0
	}
	return a, nil
}

func (a *App) configKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.editing {
		switch msg.String() {
		case "enter":
			if v, err := strconv.ParseFloat(a.editBuf, 64); err == nil {
				a.params[a.paramNames[a.paramCursor]] = v
			}
			a.editing = false
			a.editBuf = ""
		case "escape":
			a.editing = false
			a.editBuf = ""
		case "backspace":
			if len(a.editBuf) > 0 {
				a.editBuf = a.editBuf[:len(a.editBuf)-1]
			}
		default:
			s := msg.String()
			if len(s) == 1 && (s[0] >= '0' && s[0] <= '9' || s[0] == '.' || s[0] == '-') {
				a.editBuf += s
			}
		}
		return a, nil
	}
	switch msg.String() {
	case "q", "escape":
		a.state = stateMenu
	case "up", "k":
		if a.paramCursor > 0 {
			a.paramCursor--
		}
	case "down", "j":
		if a.paramCursor < len(a.paramNames)-1 {
			a.paramCursor++
		}
	case "enter":
		a.editing = true
		a.editBuf = ""
	case "s", " ":
		return a.start()
	}
	return a, nil
}

func (a *App) runKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "escape":
		a.stop()
		a.state = stateMenu
	}
	return a, nil
}

func (a *App) start() (tea.Model, tea.Cmd) {
	name := a.tracks[a.cursor]
	track, err := sim.ByName(name)
	if err != nil {
		a.runErr = err
		return a, nil
	}
	cfg := *a.cfg
	cfg.TargetSpeed = a.params["target_speed"]
	cfg.Latency = a.params["latency"]
	cycles := int(a.params["cycles"])
	if cycles < 1 {
		cycles = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.cycles = make(chan cycleMsg, 64)
	a.done = make(chan doneMsg, 1)
	a.view = newLiveView(track)
	a.result = nil
	a.runErr = nil
	a.haveRun = false
	a.state = stateRun

	runner := sim.NewRunner(&cfg, track, a.log)
	for _, m := range metrics.Standard(cfg.TargetSpeed) {
		runner.AddMetric(m)
	}
	ch := a.cycles
	runner.AddObserver(sim.ObserverFunc(func(s metrics.Sample, cmd mpc.Command) {
		select {
		case ch <- cycleMsg{sample: s, cmd: cmd}:
		default:
			// The UI is behind; dropping a frame beats stalling the run.
		}
	}))
	go func(done chan doneMsg) {
		res, err := runner.Run(ctx, cycles)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		done <- doneMsg{result: res, err: err}
	}(a.done)

	return a, a.waitCycle()
}

func (a *App) stop() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *App) waitCycle() tea.Cmd {
	cycles, done := a.cycles, a.done
	return func() tea.Msg {
		select {
		case c := <-cycles:
			return c
		case d := <-done:
			return d
		}
	}
}

func (a *App) View() string {
	switch a.state {
	case stateMenu:
		return a.viewMenu()
	case stateConfig:
		return a.viewConfig()
	case stateRun:
		return a.viewRun()
	}
	return ""
}

func (a *App) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("          " + cyan.Render("m p c d r i v e") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("\n")
	for i, name := range a.tracks {
		desc := trackInfo[name]
		if i == a.cursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-12s", name)) + dim.Render(desc) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-12s", name)) + dimmer.Render(desc) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select   enter configure   q quit") + "\n")
	return b.String()
}

func (a *App) viewConfig() string {
	var b strings.Builder
	name := a.tracks[a.cursor]
	b.WriteString("\n")
	b.WriteString("      " + cyan.Render(name) + "  " + dim.Render(trackInfo[name]) + "\n")
	b.WriteString(dimmer.Render("      "+strings.Repeat("─", 30)) + "\n\n")
	for i, pn := range a.paramNames {
		val := fmt.Sprintf("%8.3f", a.params[pn])
		if a.editing && i == a.paramCursor {
			val = fmt.Sprintf("%8s", a.editBuf+"▋")
		}
		if i == a.paramCursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-14s", pn)) + magenta.Render(val) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-14s", pn)) + dim.Render(val) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select  enter edit  s start  esc back") + "\n")
	return b.String()
}

func (a *App) viewRun() string {
	var b strings.Builder
	if a.runErr != nil {
		b.WriteString("\n   " + red.Render(a.runErr.Error()) + "\n")
		b.WriteString("\n" + dim.Render("   esc back") + "\n")
		return b.String()
	}
	if !a.haveRun {
		return "\n   " + dim.Render("solving first cycle...") + "\n"
	}

	b.WriteString("\n")
	b.WriteString(statusLine(a.last.sample, a.last.cmd) + "\n\n")
	b.WriteString(a.view.render(a.last.sample, a.last.cmd, a.width-6, a.height-12))
	b.WriteString("\n   " + dim.Render("steer ") + cyan.Render(steerBar(a.last.cmd.Steer, 25)) + "\n")
	if len(a.view.history) > 1 {
		b.WriteString("   " + dim.Render("cte   ") + cyan.Render(sparkline(a.view.history, 25)) + "\n")
	}
	if a.result != nil {
		b.WriteString("\n" + a.viewMetrics())
	}
	b.WriteString("\n" + dim.Render("   esc back  ctrl+c quit") + "\n")
	return b.String()
}

func (a *App) viewMetrics() string {
	names := make([]string, 0, len(a.result.Metrics))
	for n := range a.result.Metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("   " + green.Render("finished") + "\n")
	for _, n := range names {
		b.WriteString(fmt.Sprintf("   %s %s\n",
			dim.Render(fmt.Sprintf("%-16s", n)),
			white.Render(fmt.Sprintf("%.4f", a.result.Metrics[n]))))
	}
	return b.String()
}
