package roundsync

import "expvar"

var (
	metricGuessSubmitTotal    = expvar.NewInt("guess_submit_total")
	metricGuessRejectedTotal  = expvar.NewInt("guess_rejected_total")
	metricReadySignalsTotal   = expvar.NewInt("ready_signals_total")
	metricAutoReadyTotal      = expvar.NewInt("auto_ready_marks_total")
	metricRoundsAdvancedTotal = expvar.NewInt("rounds_advanced_total")
	metricGamesFinishedTotal  = expvar.NewInt("games_finished_total")
	metricReconcileTotal      = expvar.NewInt("reconcile_total")
	metricReconcileErrors     = expvar.NewInt("reconcile_errors_total")
	metricSessionsEvicted     = expvar.NewInt("sessions_evicted_total")
)
