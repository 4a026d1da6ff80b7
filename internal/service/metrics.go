package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	codesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_codes_issued_total",
		Help: "Verification and reset codes issued, by purpose.",
	}, []string{"purpose"})

	codeAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_attempts_total",
		Help: "Code redemption attempts, by purpose and result.",
	}, []string{"purpose", "result"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logins_total",
		Help: "Sign-in attempts, by result.",
	}, []string{"result"})
)
