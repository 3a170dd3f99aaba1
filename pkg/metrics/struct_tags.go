package metrics

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

var (
	counterType    = reflect.TypeOf((*prometheus.Counter)(nil)).Elem()
	gaugeType      = reflect.TypeOf((*prometheus.Gauge)(nil)).Elem()
	counterVecType = reflect.TypeOf((*prometheus.CounterVec)(nil))
	gaugeVecType   = reflect.TypeOf((*prometheus.GaugeVec)(nil))
)

type metricTags struct {
	metric      string
	group       string
	description string
	labels      []string
}

// fieldTags decodes field tags that decorate the struct.
// Supported tags are:
//   - metric: the metric name
//   - group: builds an additional prefix to the metric (e.g. namespace_group_metric)
//   - description: the help text of the metric
//   - labels: comma separated label names, for vector metrics
func fieldTags(field reflect.StructField) metricTags {
	var tags metricTags
	tags.metric = field.Tag.Get("metric")
	tags.group = field.Tag.Get("group")
	tags.description = field.Tag.Get("description")
	if labels := field.Tag.Get("labels"); labels != "" {
		for _, l := range strings.Split(labels, ",") {
			tags.labels = append(tags.labels, strings.TrimSpace(l))
		}
	}
	return tags
}

// scanStruct allocates every tagged metric of a struct and hands it over to the collect function
func scanStruct(namespace string, m interface{}, collect func(prometheus.Collector) error) error {
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("metrics registration requires a pointer to a struct, got: %T", m)
	}
	return scanTags(namespace, nil, rv.Elem(), collect)
}

func scanTags(namespace string, groups []string, container reflect.Value, collect func(prometheus.Collector) error) error {
	var err error
	structType := container.Type()

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		value := container.Field(i)
		if !value.CanSet() {
			continue
		}

		tags := fieldTags(field)
		path := groups
		if tags.group != "" {
			path = append(append([]string(nil), groups...), tags.group)
		}

		if tags.metric == "" {
			if value.Kind() == reflect.Struct {
				err = multierr.Append(err, scanTags(namespace, path, value, collect))
			}
			continue
		}

		collector, e := allocate(field.Type, prometheus.Opts{
			Namespace: namespace,
			Subsystem: strings.Join(path, "_"),
			Name:      tags.metric,
			Help:      tags.description,
		}, tags.labels)
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("field %s: %w", field.Name, e))
			continue
		}
		if e := collect(collector); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		value.Set(reflect.ValueOf(collector))
	}
	return err
}

func allocate(t reflect.Type, opts prometheus.Opts, labels []string) (prometheus.Collector, error) {
	switch t {
	case counterType:
		return prometheus.NewCounter(prometheus.CounterOpts(opts)), nil
	case gaugeType:
		return prometheus.NewGauge(prometheus.GaugeOpts(opts)), nil
	case counterVecType:
		return prometheus.NewCounterVec(prometheus.CounterOpts(opts), labels), nil
	case gaugeVecType:
		return prometheus.NewGaugeVec(prometheus.GaugeOpts(opts), labels), nil
	default:
		return nil, fmt.Errorf("unsupported metric type %v", t)
	}
}
