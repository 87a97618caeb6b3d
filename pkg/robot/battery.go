package robot

import "time"

// drainLocked lowers the battery by amount, flooring at 0.
// It reports whether this call depleted the battery; a depleted robot is
// disconnected before returning. Callers must hold s.mu.
func (s *Simulator) drainLocked(amount float64) bool {
	if s.st.battery <= 0 {
		return false
	}
	s.st.battery -= amount
	if s.st.battery > 0 {
		return false
	}
	s.st.battery = 0
	s.disconnectLocked()
	return true
}

// passiveDrain applies one tick of time-based drain.
func (s *Simulator) passiveDrain() {
	s.mu.Lock()
	if !s.st.connected || s.st.battery <= 0 {
		s.mu.Unlock()
		return
	}
	depleted := s.drainLocked(s.cfg.PassiveDrain)
	s.mu.Unlock()

	if depleted {
		s.onDepleted()
	}
}

func (s *Simulator) onDepleted() {
	s.stats.depletions.Add(1)
	s.log.Warn("robot battery depleted, disconnecting")
	s.emit(Event{Type: EventBatteryDepleted, Message: ErrBatteryDepleted.Error()})
}

// startDrain launches the passive drain task once.
func (s *Simulator) startDrain() {
	if s.cfg.PassiveDrain <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drainStarted {
		return
	}
	select {
	case <-s.stop:
		return
	default:
	}
	s.drainStarted = true
	go s.runDrain()
}

func (s *Simulator) runDrain() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.passiveDrain()
		}
	}
}
