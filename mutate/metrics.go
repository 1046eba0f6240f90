package mutate

import (
	"time"

	log "github.com/sirupsen/logrus"

	"collabhive-sync/store"
)

type mutationMetrics struct {
	logger           *log.Logger
	start            time.Time
	kind             Kind
	key              store.Key
	dispatchDuration time.Duration
	errorStage       string
}

func newMutationMetrics(logger *log.Logger, kind Kind, key store.Key) *mutationMetrics {
	return &mutationMetrics{
		logger: logger,
		start:  time.Now(),
		kind:   kind,
		key:    key,
	}
}

func (m *mutationMetrics) ObserveDispatch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.dispatchDuration = duration
}

func (m *mutationMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *mutationMetrics) Log(err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"kind":     string(m.kind),
		"key":      string(m.key),
		"total_ms": durationToMillis(time.Since(m.start)),
	}
	if m.dispatchDuration > 0 {
		fields["dispatch_ms"] = durationToMillis(m.dispatchDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
		m.logger.WithFields(fields).Warn("mutate.request.metrics")
		return
	}
	m.logger.WithFields(fields).Info("mutate.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
