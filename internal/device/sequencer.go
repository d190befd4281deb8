package device

import (
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

// DiscoveryPhase is the position of a discovery workflow
type DiscoveryPhase int

const (
	PhaseIdle DiscoveryPhase = iota
	PhaseServicesRequested
	PhaseCharacteristicsPending
	PhaseDescriptorsPending
	PhaseComplete
	PhaseFailed
)

func (p DiscoveryPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseServicesRequested:
		return "services_requested"
	case PhaseCharacteristicsPending:
		return "characteristics_pending"
	case PhaseDescriptorsPending:
		return "descriptors_pending"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// DiscoveryState tracks full-device discovery. It is reset by every full
// discovery request and is terminal once Complete or Failed.
type DiscoveryState struct {
	Phase                    DiscoveryPhase
	ServicesExpected         int
	ServicesCompleted        int
	CharacteristicsExpected  int
	CharacteristicsCompleted int
}

func (s DiscoveryState) thresholdReached() bool {
	return s.ServicesCompleted >= s.ServicesExpected && s.CharacteristicsCompleted >= s.CharacteristicsExpected
}

// target is one targeted discovery that ends in a notify toggle
type target struct {
	key            Key
	service        string
	characteristic string
	enable         bool
	phase          DiscoveryPhase
}

// Outcome is a terminal result produced by the sequencer. A zero Target marks
// the full-discovery workflow; Err is nil when it completed. Targeted workflows
// only produce failures; their success arrives with the notify acknowledgment.
type Outcome struct {
	Target Key
	Err    error
}

// Sequencer drives service, characteristic and descriptor discovery through
// the Transport. Full discovery counts completions until the whole attribute
// tree is cached; targeted discovery walks one service and characteristic and
// then toggles notifications on it.
type Sequencer struct {
	mu        sync.Mutex
	transport Transport
	full      DiscoveryState
	targets   map[Key]*target
	logger    *logrus.Logger
}

// NewSequencer creates an idle sequencer issuing commands through transport
func NewSequencer(transport Transport, logger *logrus.Logger) *Sequencer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Sequencer{
		transport: transport,
		targets:   make(map[Key]*target),
		logger:    logger,
	}
}

// State returns a snapshot of the full-discovery state
func (s *Sequencer) State() DiscoveryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.full
}

// BeginFull resets full-discovery state and requests discovery of every service.
// A request made while a previous one is running replaces it.
func (s *Sequencer) BeginFull() {
	s.mu.Lock()
	if s.full.Phase != PhaseIdle && s.full.Phase != PhaseComplete && s.full.Phase != PhaseFailed {
		s.logger.WithField("phase", s.full.Phase).Debug("Restarting full discovery")
	}
	s.full = DiscoveryState{Phase: PhaseServicesRequested}
	s.mu.Unlock()

	s.transport.DiscoverServices(nil)
}

// BeginTargeted records a targeted discovery for key and requests discovery of
// its service. A request under the same key replaces the previous target.
func (s *Sequencer) BeginTargeted(key Key, service, characteristic string, enable bool) {
	s.mu.Lock()
	s.targets[key] = &target{
		key:            key,
		service:        NormalizeUUID(service),
		characteristic: NormalizeUUID(characteristic),
		enable:         enable,
		phase:          PhaseServicesRequested,
	}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"service":        service,
		"characteristic": characteristic,
		"enable":         enable,
	}).Debug("Starting targeted service discovery")
	s.transport.DiscoverServices([]string{service})
}

// Cancel drops the targeted discovery registered under key, if any
func (s *Sequencer) Cancel(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.targets, key)
}

// Reset returns the sequencer to idle and drops every target
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.full = DiscoveryState{}
	s.targets = make(map[Key]*target)
}

// HandleServices processes a ServicesDiscovered event
func (s *Sequencer) HandleServices(ev ServicesDiscovered) []Outcome {
	if len(ev.Filter) > 0 {
		return s.handleTargetedServices(ev)
	}

	s.mu.Lock()
	if s.full.Phase != PhaseServicesRequested {
		s.mu.Unlock()
		s.logger.WithField("phase", s.full.Phase).Debug("Ignoring service discovery result outside of full discovery")
		return nil
	}
	if ev.Err != nil {
		s.full.Phase = PhaseFailed
		s.mu.Unlock()
		return []Outcome{{Err: ev.Err}}
	}

	services := s.transport.Services()
	s.full.ServicesExpected = len(services)
	s.full.ServicesCompleted = 0
	s.full.CharacteristicsExpected = 0
	s.full.CharacteristicsCompleted = 0
	s.full.Phase = PhaseCharacteristicsPending
	done := s.completeIfReached()
	s.mu.Unlock()

	s.logger.WithField("services", len(services)).Debug("Discovered services")
	if done {
		return []Outcome{{}}
	}
	for _, svc := range services {
		s.transport.DiscoverCharacteristics(svc.UUID(), nil)
	}
	return nil
}

func (s *Sequencer) handleTargetedServices(ev ServicesDiscovered) []Outcome {
	filter := NormalizeUUIDs(ev.Filter)

	var outcomes []Outcome
	var next []*target

	s.mu.Lock()
	for key, t := range s.targets {
		if t.phase != PhaseServicesRequested || !slices.Contains(filter, t.service) {
			continue
		}
		switch {
		case ev.Err != nil:
			delete(s.targets, key)
			outcomes = append(outcomes, Outcome{Target: key, Err: transportError(key, "", ev.Err)})
		default:
			if _, ok := s.transport.GetService(t.service); !ok {
				delete(s.targets, key)
				outcomes = append(outcomes, Outcome{Target: key, Err: newError(NotFound, key, msgServiceNotFound)})
				continue
			}
			t.phase = PhaseCharacteristicsPending
			next = append(next, t)
		}
	}
	s.mu.Unlock()

	for _, t := range next {
		s.logger.WithFields(logrus.Fields{
			"service":        t.service,
			"characteristic": t.characteristic,
		}).Debug("Found target service, discovering characteristic")
		s.transport.DiscoverCharacteristics(t.service, []string{t.characteristic})
	}
	return outcomes
}

// HandleCharacteristics processes a CharacteristicsDiscovered event
func (s *Sequencer) HandleCharacteristics(ev CharacteristicsDiscovered) []Outcome {
	if len(ev.Filter) > 0 {
		return s.handleTargetedCharacteristics(ev)
	}

	s.mu.Lock()
	if s.full.Phase != PhaseCharacteristicsPending && s.full.Phase != PhaseDescriptorsPending {
		s.mu.Unlock()
		return nil
	}
	if ev.Err != nil {
		s.full.Phase = PhaseFailed
		s.mu.Unlock()
		return []Outcome{{Err: ev.Err}}
	}

	var chars []Characteristic
	if svc, ok := s.transport.GetService(ev.Service); ok {
		chars = svc.GetCharacteristics()
	}
	s.full.ServicesCompleted++
	s.full.CharacteristicsExpected += len(chars)
	if len(chars) > 0 {
		s.full.Phase = PhaseDescriptorsPending
	}
	done := s.completeIfReached()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"service":         ev.Service,
		"characteristics": len(chars),
	}).Debug("Discovered characteristics")
	for _, c := range chars {
		s.transport.DiscoverDescriptors(c)
	}
	if done {
		return []Outcome{{}}
	}
	return nil
}

func (s *Sequencer) handleTargetedCharacteristics(ev CharacteristicsDiscovered) []Outcome {
	service := NormalizeUUID(ev.Service)
	filter := NormalizeUUIDs(ev.Filter)

	var outcomes []Outcome
	type toggle struct {
		char   Characteristic
		enable bool
	}
	var toggles []toggle

	s.mu.Lock()
	for key, t := range s.targets {
		if t.phase != PhaseCharacteristicsPending || t.service != service || !slices.Contains(filter, t.characteristic) {
			continue
		}
		delete(s.targets, key)
		if ev.Err != nil {
			outcomes = append(outcomes, Outcome{Target: key, Err: transportError(key, "", ev.Err)})
			continue
		}
		c, ok := s.transport.GetCharacteristic(t.service, t.characteristic)
		if !ok {
			outcomes = append(outcomes, Outcome{Target: key, Err: newError(NotFound, key, msgCharacteristicNotFound)})
			continue
		}
		toggles = append(toggles, toggle{char: c, enable: t.enable})
	}
	s.mu.Unlock()

	for _, tg := range toggles {
		s.logger.WithFields(logrus.Fields{
			"service":        tg.char.ServiceUUID(),
			"characteristic": tg.char.UUID(),
			"enable":         tg.enable,
		}).Debug("Found target characteristic, setting notification state")
		s.transport.SetNotify(tg.char, tg.enable)
	}
	return outcomes
}

// HandleDescriptors processes a DescriptorsDiscovered event. Descriptor
// discovery failures are counted as completed so that one unreadable
// characteristic does not stall the whole tree.
func (s *Sequencer) HandleDescriptors(ev DescriptorsDiscovered) []Outcome {
	s.mu.Lock()
	if s.full.Phase != PhaseDescriptorsPending {
		s.mu.Unlock()
		return nil
	}
	s.full.CharacteristicsCompleted++
	done := s.completeIfReached()
	s.mu.Unlock()

	if ev.Err != nil {
		s.logger.WithFields(logrus.Fields{
			"service":        ev.Service,
			"characteristic": ev.Characteristic,
			"error":          ev.Err,
		}).Warn("Descriptor discovery failed")
	}
	if done {
		return []Outcome{{}}
	}
	return nil
}

// completeIfReached marks full discovery complete once every service and every
// characteristic reported back. Must be called with s.mu held.
func (s *Sequencer) completeIfReached() bool {
	if !s.full.thresholdReached() {
		return false
	}
	s.full.Phase = PhaseComplete
	return true
}
