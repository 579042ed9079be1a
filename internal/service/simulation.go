package service

import (
	"errors"
	"log"
	"sort"
	"time"

	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/pkg/skim"
)

// ─── Event loop ─────────────────────────────────────────────

type simEventKind int

// Kind order breaks timestamp ties: vehicles appear before the requests
// they could serve, and refresh ticks run after both.
const (
	eventNewVehicle simEventKind = iota
	eventRequest
	eventTick
)

type simEvent struct {
	Time    time.Time
	Kind    simEventKind
	Vehicle *model.VehicleRow
	Request *model.RequestRow
	seq     int
}

// SimulationParams collects everything a run needs.
type SimulationParams struct {
	Requests    []model.RequestRow
	Vehicles    []model.VehicleRow
	Dispatchers []*Dispatcher
	Skim        *skim.Skim

	// Behaviour resolves a traveller id to their preference record.
	Behaviour func(id int64) model.Behaviour

	// RefreshDensity is the interval, in seconds, between re-attempts
	// for travellers no vehicle could serve.
	RefreshDensity float64

	Logger *log.Logger
}

// Simulation drives the chronological event loop: vehicle arrivals,
// traveller requests, and refresh ticks are merged into one queue and
// consumed in order, moving every active ride forward between events.
type Simulation struct {
	params     SimulationParams
	queue      []simEvent
	travellers map[int64]*model.Traveller
	clock      time.Time
	nextSeq    int
}

// NewSimulation seeds the event queue from the request and vehicle rows.
func NewSimulation(params SimulationParams) *Simulation {
	s := &Simulation{
		params:     params,
		travellers: make(map[int64]*model.Traveller),
	}
	for i := range params.Vehicles {
		v := &params.Vehicles[i]
		s.push(simEvent{Time: v.StartTime, Kind: eventNewVehicle, Vehicle: v})
	}
	for i := range params.Requests {
		r := &params.Requests[i]
		s.push(simEvent{Time: r.RequestTime, Kind: eventRequest, Request: r})
	}
	s.sortQueue()
	return s
}

func (s *Simulation) push(ev simEvent) {
	ev.seq = s.nextSeq
	s.nextSeq++
	s.queue = append(s.queue, ev)
}

func (s *Simulation) sortQueue() {
	sort.SliceStable(s.queue, func(i, j int) bool {
		a, b := s.queue[i], s.queue[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.seq < b.seq
	})
}

// Run consumes the queue until it is empty and every ride has finished.
func (s *Simulation) Run() error {
	logf(s.params.Logger, "[simulation] starting: %d requests, %d vehicles, %d operators",
		len(s.params.Requests), len(s.params.Vehicles), len(s.params.Dispatchers))

	for len(s.queue) > 0 {
		ev := s.queue[0]

		if !s.clock.IsZero() {
			dt := ev.Time.Sub(s.clock).Seconds()
			if dt > 0 {
				if err := s.moveAll(dt); err != nil {
					return err
				}
			}
		}
		s.clock = ev.Time
		s.syncIdleVehicles()

		switch ev.Kind {
		case eventNewVehicle:
			s.handleNewVehicle(ev.Vehicle)
		case eventRequest:
			if err := s.handleRequest(ev.Request); err != nil {
				return err
			}
		case eventTick:
			// Movement already happened above; nothing else to do.
		}

		s.queue = s.queue[1:]
		s.expireVehicles()

		if len(s.queue) == 0 && s.hasActiveRides() {
			// Trailing rides still need to play out.
			s.push(simEvent{Time: s.clock.Add(seconds(s.params.RefreshDensity)), Kind: eventTick})
		}
	}

	logf(s.params.Logger, "[simulation] finished at %s", s.clock.Format("2006-01-02 15:04:05"))
	return nil
}

// moveAll advances every active ride of every operator by dt seconds.
func (s *Simulation) moveAll(dt float64) error {
	for _, d := range s.params.Dispatchers {
		for _, rd := range d.AllRides() {
			st := rd.RideState()
			if !st.Active || st.ServingVehicle == nil || st.ServingVehicle.Path.CurrentPath == nil {
				continue
			}
			if err := MoveVehicleRide(st.ServingVehicle, rd, dt, s.params.Skim, d.opts, s.params.Logger); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Simulation) handleNewVehicle(row *model.VehicleRow) {
	if !s.params.Skim.Has(row.Origin) {
		logf(s.params.Logger, "[simulation] vehicle %d discarded: unknown node %d", row.ID, row.Origin)
		return
	}
	veh := model.NewVehicle(*row)
	for _, d := range s.params.Dispatchers {
		if d.ID == row.Operator {
			d.RegisterVehicle(veh)
			logf(s.params.Logger, "[simulation] %s: vehicle %d entered service at node %d",
				s.clock.Format("15:04:05"), veh.ID, row.Origin)
			return
		}
	}
	logf(s.params.Logger, "[simulation] vehicle %d discarded: unknown operator %q", row.ID, row.Operator)
}

func (s *Simulation) handleRequest(row *model.RequestRow) error {
	trav, known := s.travellers[row.ID]
	if !known {
		if !s.params.Skim.Has(row.Origin) || !s.params.Skim.Has(row.Destination) {
			logf(s.params.Logger, "[simulation] request %d discarded: node off the network", row.ID)
			return nil
		}
		tripLength, err := s.params.Skim.Distance(row.Origin, row.Destination)
		if err != nil {
			return err
		}
		trav = model.NewTraveller(*row, s.params.Behaviour(row.ID))
		trav.Request.TripLength = tripLength
		s.travellers[row.ID] = trav
	}
	if trav.Service.Resigned {
		return nil
	}

	d := s.dispatcherFor(row.Operator)
	if d == nil {
		logf(s.params.Logger, "[simulation] request %d discarded: unknown operator %q", row.ID, row.Operator)
		return nil
	}

	served, err := s.tryServe(d, trav)
	if err != nil {
		return err
	}
	if served {
		return nil
	}

	// Nobody could serve the request now; retry after the refresh
	// interval, or give up once the traveller's patience runs out.
	trav.Service.AccumulatedWaiting += s.params.RefreshDensity
	if trav.Service.AccumulatedWaiting > trav.Behaviour.MaxWaiting {
		trav.Service.Resigned = true
		logf(s.params.Logger, "[simulation] %s: traveller %d resigned after %.0fs of waiting",
			s.clock.Format("15:04:05"), trav.ID, trav.Service.AccumulatedWaiting)
		return nil
	}
	retry := *row
	retry.RequestTime = s.clock.Add(seconds(s.params.RefreshDensity))
	s.push(simEvent{Time: retry.RequestTime, Kind: eventRequest, Request: &retry})
	s.sortQueue()
	return nil
}

// tryServe attempts one dispatch of the traveller with their requested
// service. Returns false when no vehicle or candidate is available.
func (s *Simulation) tryServe(d *Dispatcher, trav *model.Traveller) (bool, error) {
	switch trav.Request.ServiceKind {
	case model.ServicePool:
		candidates, fallback, err := d.PoolUtility(trav, s.params.Skim)
		if err != nil {
			return false, err
		}
		if len(candidates) > 0 {
			if err := d.AssignPool(candidates, trav, s.params.Skim); err != nil {
				return false, err
			}
			return true, nil
		}
		if fallback != nil {
			err := d.AssignTaxi(fallback.Ride, fallback.Vehicle, fallback.Utility, trav, fallback.Profitability, s.params.Skim)
			return err == nil, err
		}
		return false, nil

	case model.ServiceTaxi:
		proposal, ok, err := d.TaxiUtility(trav, s.params.Skim, d.opts.OnlyTaxi)
		if err != nil || !ok {
			return false, err
		}
		err = d.AssignTaxi(proposal.Ride, proposal.Vehicle, proposal.Utility, trav, proposal.Profitability, s.params.Skim)
		return err == nil, err

	default:
		return false, errors.New("unknown service kind in request")
	}
}

func (s *Simulation) dispatcherFor(operator string) *Dispatcher {
	for _, d := range s.params.Dispatchers {
		if d.ID == operator {
			return d
		}
	}
	return nil
}

// syncIdleVehicles advances stationary vehicles' clocks to the current
// event time, so that a dispatch stamps assignment events with the
// simulation clock rather than the vehicle's last movement.
func (s *Simulation) syncIdleVehicles() {
	for _, d := range s.params.Dispatchers {
		for _, veh := range d.AllVehicles() {
			if veh.Path.Stationary && veh.Path.CurrentTime.Before(s.clock) {
				veh.Path.CurrentTime = s.clock
			}
		}
	}
}

// expireVehicles withdraws vehicles whose shift has ended.
func (s *Simulation) expireVehicles() {
	for _, d := range s.params.Dispatchers {
		for _, veh := range d.AllVehicles() {
			if veh.Available && !s.clock.Before(veh.EndTime) {
				veh.Available = false
			}
		}
	}
}

func (s *Simulation) hasActiveRides() bool {
	for _, d := range s.params.Dispatchers {
		for _, rd := range d.AllRides() {
			if rd.RideState().Active {
				return true
			}
		}
	}
	return false
}

// Travellers exposes the per-traveller outcomes after (or during) a run.
func (s *Simulation) Travellers() map[int64]*model.Traveller {
	return s.travellers
}

// Clock reports the simulation's current time.
func (s *Simulation) Clock() time.Time {
	return s.clock
}
