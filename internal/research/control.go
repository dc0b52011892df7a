package research

import (
	"time"

	"deepscout/internal/logging"
	"deepscout/internal/types"
)

// Pause suspends execution after the current phase completes.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != nil {
		logging.Session("pausing session %s", o.state.SessionID)
	}
	o.isPaused = true
}

// Resume continues a paused session.
func (o *Orchestrator) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != nil {
		logging.Session("resuming session %s", o.state.SessionID)
	}
	o.isPaused = false
}

// Stop requests an orderly stop. The running loop finishes its current
// phase, then synthesizes a report from whatever has been collected.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != nil {
		logging.Session("stop requested for session %s", o.state.SessionID)
	}
	o.stopRequested = true
	o.isPaused = false
}

// Approve releases a session waiting in the approval phase.
func (o *Orchestrator) Approve() {
	select {
	case o.approveCh <- struct{}{}:
	default:
	}
}

// GetReport returns the synthesized report, empty until synthesis ran.
func (o *Orchestrator) GetReport() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.state == nil {
		return ""
	}
	return o.state.Report
}

// GetProgress returns a snapshot of the session.
func (o *Orchestrator) GetProgress() types.Progress {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.state == nil {
		return types.Progress{}
	}
	p := types.Progress{
		SessionID:      o.state.SessionID,
		Phase:          o.state.Phase,
		Cycle:          o.state.Cycle,
		SourcesQueried: len(o.state.SourceResults),
		EntitiesFound:  len(o.state.Entities),
		FactsExtracted: len(o.state.Facts),
		Saturation:     o.state.Saturation,
	}
	if len(o.state.StopReason) > 0 {
		p.StopReason = o.state.StopReason[len(o.state.StopReason)-1]
	}
	return p
}

// emitProgress pushes a snapshot without blocking the pipeline.
func (o *Orchestrator) emitProgress() {
	if o.cfg.ProgressChan == nil {
		return
	}
	select {
	case o.cfg.ProgressChan <- o.GetProgress():
	default:
		// Channel full, skip
	}
}

// emitEvent pushes a discrete event without blocking the pipeline.
func (o *Orchestrator) emitEvent(eventType types.EventType, model, message string) {
	if o.cfg.EventChan == nil {
		return
	}
	ev := types.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Model:     model,
		Message:   message,
	}
	select {
	case o.cfg.EventChan <- ev:
	default:
		// Channel full, skip
	}
}
