package metrics

import "github.com/prometheus/client_golang/prometheus"

// VoteMetrics are collected while following the vote stream of a cluster
type VoteMetrics struct {
	Votes struct {
		Received prometheus.Counter     `metric:"received_total" description:"vote notifications received"`
		Events   *prometheus.CounterVec `metric:"events_total" description:"votes handled, by outcome" labels:"kind"`
		Credits  *prometheus.GaugeVec   `metric:"credits" description:"credits earned since the stream started, per vote account" labels:"voter"`
	} `group:"votes"`
	Slots struct {
		Received prometheus.Counter `metric:"received_total" description:"slot notifications received"`
		Highest  prometheus.Gauge   `metric:"highest" description:"highest slot seen"`
	} `group:"slots"`
	Validators prometheus.Gauge `metric:"validators" description:"vote accounts tracked"`
}

// NewVoteMetrics allocates and registers vote metrics
func NewVoteMetrics(reg prometheus.Registerer) (*VoteMetrics, error) {
	m := &VoteMetrics{}
	if err := Register(reg, Namespace, m); err != nil {
		return nil, err
	}
	return m, nil
}
