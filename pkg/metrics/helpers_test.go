package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// singleMetric forwards only the named metric from a Provider.
type singleMetric struct {
	p    *Provider
	name string
}

func (s *singleMetric) Describe(ch chan<- *prometheus.Desc) {
	all := make(chan *prometheus.Desc, 16)
	s.p.Describe(all)
	close(all)
	for d := range all {
		if strings.Contains(d.String(), `"`+s.name+`"`) {
			ch <- d
		}
	}
}

func (s *singleMetric) Collect(ch chan<- prometheus.Metric) {
	all := make(chan prometheus.Metric, 16)
	s.p.Collect(all)
	close(all)
	for m := range all {
		if strings.Contains(m.Desc().String(), `"`+s.name+`"`) {
			ch <- m
		}
	}
}
