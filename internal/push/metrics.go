package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_push_notifications_sent_total",
			Help: "Total number of push notifications delivered to a channel.",
		},
		[]string{"channel"},
	)

	notificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletd_push_notifications_failed_total",
			Help: "Total number of push notifications that failed to deliver.",
		},
		[]string{"channel"},
	)
)
