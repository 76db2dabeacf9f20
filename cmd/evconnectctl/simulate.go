package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"evconnect/internal/alert"
	"evconnect/internal/config"
	"evconnect/internal/geo"
	"evconnect/internal/logging"
	"evconnect/internal/memstore"
	"evconnect/internal/modules/agent"
	"evconnect/internal/modules/dispatch"
	"evconnect/internal/modules/ranking"
	"evconnect/internal/modules/servicereq"
	"evconnect/internal/notify"
	"evconnect/internal/types"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.yaml>",
	Short: "Replay a dispatch scenario against in-memory stores",
	Long: `simulate loads a YAML scenario (agents, one service request, optional
driving routes and a timeline of clicks) and runs the dispatch coordinator
against in-memory stores with a simulated clock. Offers still outstanding
after the timeline are left to expire until the run ends.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

var logLevelFlag string

func init() {
	simulateCmd.Flags().StringVar(&logLevelFlag, "log-level", "warn", "dispatch log level")
	rootCmd.AddCommand(simulateCmd)
}

// Scenario is the YAML document read by simulate. A top-level dispatch block
// overrides the default dispatch policy.
type Scenario struct {
	Start        time.Time        `yaml:"start"`
	Address      string           `yaml:"address"`
	ProviderDown bool             `yaml:"provider_down"`
	Service      ScenarioService  `yaml:"service"`
	Agents       []ScenarioAgent  `yaml:"agents"`
	Routes       map[string]Route `yaml:"routes"`
	Events       []ScenarioEvent  `yaml:"events"`
}

type ScenarioService struct {
	ID           string                        `yaml:"id"`
	FirstName    string                        `yaml:"first_name"`
	MobileNumber string                        `yaml:"mobile_number"`
	City         string                        `yaml:"city"`
	Type         string                        `yaml:"type"`
	Location     *types.Point                  `yaml:"location"`
	Available    []servicereq.AvailabilitySlot `yaml:"available"`
}

type ScenarioAgent struct {
	ID           string             `yaml:"id"`
	FirstName    string             `yaml:"first_name"`
	MobileNumber string             `yaml:"mobile_number"`
	Location     *types.Point       `yaml:"location"`
	WorkAreas    []agent.AreaRecord `yaml:"work_areas"`
}

// Route is the driving answer for one agent. An empty status means OK.
type Route struct {
	Miles   float64 `yaml:"miles"`
	Minutes float64 `yaml:"minutes"`
	Status  string  `yaml:"status"`
}

// ScenarioEvent advances the clock by After and then, when Click is set,
// clicks that agent's latest offer.
type ScenarioEvent struct {
	After time.Duration `yaml:"after"`
	Click string        `yaml:"click"`
}

// Outcome summarises a simulated run.
type Outcome struct {
	AssignedTo    types.ID
	DispatchError error
	Offers        int
	Messages      []notify.Message
	Alerts        []alert.Alert
	Notes         []string
	Elapsed       time.Duration
}

// LoadScenario parses a scenario and the dispatch overrides it carries.
func LoadScenario(data []byte) (*Scenario, config.DispatchConfig, error) {
	cfg := config.DefaultDispatch()
	if err := config.ApplyDispatchYAML(&cfg, data); err != nil {
		return nil, cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, cfg, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Service.ID == "" {
		return nil, cfg, errors.New("scenario: service.id is required")
	}
	if sc.Start.IsZero() {
		sc.Start = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	}
	return &sc, cfg, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read scenario: %w", err)
	}
	sc, cfg, err := LoadScenario(data)
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{Level: logLevelFlag, Format: "text", Output: cmd.ErrOrStderr()})
	out, err := Simulate(cmd.Context(), sc, cfg, log)
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

type simClock struct{ t time.Time }

func (c *simClock) Now() time.Time          { return c.t }
func (c *simClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// scriptedRoutes answers distance lookups from the scenario's route table,
// keyed by the agent's position.
type scriptedRoutes struct {
	byDest map[types.Point]ranking.Element
	down   bool
}

func (r *scriptedRoutes) DistanceMatrix(_ context.Context, _ types.Point, dests []types.Point) ([]ranking.Element, error) {
	if r.down {
		return nil, ranking.ErrProviderUnavailable
	}
	out := make([]ranking.Element, len(dests))
	for i, d := range dests {
		el, ok := r.byDest[d]
		if !ok {
			el = ranking.Element{Status: "NOT_FOUND"}
		}
		out[i] = el
	}
	return out, nil
}

// Simulate runs the scenario to completion.
func Simulate(ctx context.Context, sc *Scenario, cfg config.DispatchConfig, log logging.Logger) (*Outcome, error) {
	out := &Outcome{}
	clock := &simClock{t: sc.Start}

	agents := memstore.NewAgents()
	routes := &scriptedRoutes{byDest: map[types.Point]ranking.Element{}, down: sc.ProviderDown}
	for _, sa := range sc.Agents {
		a := &agent.Agent{
			ID:           types.ID(sa.ID),
			FirstName:    sa.FirstName,
			MobileNumber: sa.MobileNumber,
			Location:     sa.Location,
		}
		for _, rec := range sa.WorkAreas {
			wa, ok := rec.ToWorkArea()
			if !ok {
				out.Notes = append(out.Notes, fmt.Sprintf("agent %s: skipped work area with unknown type %q", sa.ID, rec.Type))
				continue
			}
			a.WorkAreas = append(a.WorkAreas, wa)
		}
		agents.Put(a)

		if r, ok := sc.Routes[sa.ID]; ok && sa.Location != nil {
			routes.byDest[*sa.Location] = routeElement(r)
		}
	}

	var provider ranking.Provider
	if sc.ProviderDown || len(sc.Routes) > 0 {
		provider = routes
	}

	services := memstore.NewServiceRequests().WithClock(clock.Now)
	offers := memstore.NewOffers()
	sms := notify.NewRecorder()
	alerts := &alert.Recorder{}
	sched := dispatch.NewMemoryScheduler()

	var geocoder dispatch.Geocoder
	if sc.Address != "" {
		geocoder = staticGeocoder(sc.Address)
	}
	coord := dispatch.NewCoordinator(cfg, dispatch.Deps{
		Agents:    agents,
		Services:  services,
		Offers:    offers,
		Ranker:    ranking.NewRanker(provider, log, nil),
		Gateway:   sms,
		Alerts:    alerts,
		Geocoder:  geocoder,
		Scheduler: sched,
		Log:       log,
		Clock:     clock.Now,
	})

	serviceID := types.ID(sc.Service.ID)
	if err := services.Create(ctx, &servicereq.ServiceRequest{
		ID:            serviceID,
		FirstName:     sc.Service.FirstName,
		MobileNumber:  sc.Service.MobileNumber,
		City:          sc.Service.City,
		Type:          servicereq.Type(sc.Service.Type),
		Location:      sc.Service.Location,
		UserAvailable: sc.Service.Available,
		RequestedAt:   clock.Now(),
	}); err != nil {
		return nil, err
	}

	out.DispatchError = coord.Dispatch(ctx, serviceID)

	for _, ev := range sc.Events {
		clock.Advance(ev.After)
		if err := coord.ProcessDue(ctx); err != nil {
			return nil, err
		}
		if ev.Click == "" {
			continue
		}
		offerID, ok := latestOffer(offers, serviceID, types.ID(ev.Click))
		if !ok {
			out.Notes = append(out.Notes, fmt.Sprintf("%s: no offer to click", ev.Click))
			continue
		}
		if _, err := coord.Accept(ctx, offerID); err != nil {
			out.Notes = append(out.Notes, fmt.Sprintf("%s: click rejected: %v", ev.Click, err))
		} else {
			out.Notes = append(out.Notes, fmt.Sprintf("%s: clicked at +%s", ev.Click, clock.Now().Sub(sc.Start)))
		}
	}

	// Let outstanding offers run out. Each pass resolves at most one offer.
	for range len(sc.Agents) + 1 {
		if assigned(ctx, services, serviceID) || sched.Pending() == 0 {
			break
		}
		clock.Advance(cfg.OfferTTL)
		if err := coord.ProcessDue(ctx); err != nil {
			return nil, err
		}
	}

	req, err := services.Get(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if req.AgentID != nil {
		out.AssignedTo = *req.AgentID
	}
	out.Offers = len(offers.ListByService(serviceID))
	out.Messages = sms.Messages()
	out.Alerts = alerts.Alerts()
	out.Elapsed = clock.Now().Sub(sc.Start)
	return out, nil
}

func routeElement(r Route) ranking.Element {
	status := r.Status
	if status == "" {
		status = ranking.StatusOK
	}
	return ranking.Element{
		Status:         status,
		DistanceMeters: int(math.Round(r.Miles / geo.MilesPerMeter)),
		Duration:       time.Duration(r.Minutes * float64(time.Minute)),
	}
}

type staticGeocoder string

func (g staticGeocoder) ReverseGeocode(context.Context, types.Point) (string, error) {
	return string(g), nil
}

func latestOffer(offers *memstore.Offers, serviceID, agentID types.ID) (types.ID, bool) {
	list := offers.ListByService(serviceID)
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].AgentID == agentID {
			return list[i].ID, true
		}
	}
	return "", false
}

func assigned(ctx context.Context, services *memstore.ServiceRequests, id types.ID) bool {
	req, err := services.Get(ctx, id)
	return err == nil && req.Assigned()
}

func printOutcome(w io.Writer, o *Outcome) {
	for _, m := range o.Messages {
		fmt.Fprintf(w, "sms to %s: %s\n", m.To, m.Body)
	}
	for _, a := range o.Alerts {
		fmt.Fprintf(w, "alert: %s\n", alert.Format(a))
	}
	for _, n := range o.Notes {
		fmt.Fprintf(w, "note: %s\n", n)
	}
	if o.DispatchError != nil {
		fmt.Fprintf(w, "dispatch error: %v\n", o.DispatchError)
	}
	fmt.Fprintf(w, "offers sent: %d, elapsed: %s\n", o.Offers, o.Elapsed)
	if o.AssignedTo == "" {
		fmt.Fprintln(w, "outcome: unassigned")
		return
	}
	fmt.Fprintf(w, "outcome: assigned to %s\n", o.AssignedTo)
}
