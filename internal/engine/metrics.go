package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rollcall_messages_recorded",
	Help: "Number of member messages recorded, by store status",
}, []string{"status"})

var actionsTaken = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rollcall_actions",
	Help: "Number of warn and remove actions attempted, by outcome",
}, []string{"action", "status"})

var summariesSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rollcall_summaries_sent",
	Help: "Number of chat summary messages attempted",
}, []string{"kind", "status"})

var sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "rollcall_sweep_duration_sec",
	Help: "Duration of a full inactivity sweep",
})

var chatsSwept = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rollcall_chats_swept",
	Help: "Number of chats evaluated by sweeps",
}, []string{"status"})
