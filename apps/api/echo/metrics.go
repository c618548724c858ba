package echoapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pendingCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openstud",
		Name:      "pending_commits_total",
		Help:      "Batch commits of pending task changes, by outcome.",
	}, []string{"result"})

	pendingCommittedTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openstud",
		Name:      "pending_committed_tasks_total",
		Help:      "Task changes sent to persistence by batch commits, by outcome.",
	}, []string{"result"})

	tutorReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openstud",
		Name:      "tutor_replies_total",
		Help:      "Tutor chat completions, by outcome.",
	}, []string{"result"})
)
