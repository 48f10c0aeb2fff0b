package metrics

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"feedflow/logger"
)

type cloudWatchState struct {
	client    *cloudwatch.Client
	namespace string
	region    string
}

var (
	cwState atomic.Pointer[cloudWatchState]

	// one datum per component/metric pair per interval
	cloudWatchPublishInterval = time.Minute
	publishTimesMu            sync.Mutex
	publishTimes              = make(map[string]time.Time)

	timeNow            = time.Now
	publishMetricsFunc = publishMetrics
)

// InitCloudWatch enables publishing of emitted metrics. A failure to load the
// AWS configuration leaves publishing disabled and is returned to the caller.
func InitCloudWatch(ctx context.Context, region, namespace string) error {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return err
	}

	state := &cloudWatchState{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
		region:    cfg.Region,
	}
	if state.namespace == "" {
		state.namespace = "Feedflow"
	}
	cwState.Store(state)

	logger.GetLogger().WithComponent("cloudwatch").WithFields(logger.Fields{
		"region":    state.region,
		"namespace": state.namespace,
	}).Info("cloudwatch publishing enabled")
	return nil
}

// EmitMetric logs a metric, hands it to registered handlers and publishes
// numeric values to CloudWatch when enabled.
func EmitMetric(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) {
	m, ok := newMetric(log, component, name, value, metricType, fields)
	if !ok {
		return
	}
	v, ok := toFloat64(m.Value)
	if !ok {
		return
	}
	publishMetricDatum(m, v)
}

func publishMetricDatum(m Metric, value float64) {
	state := cwState.Load()
	if state == nil || state.client == nil {
		return
	}

	key := m.Component + "/" + m.Name
	now := timeNow()
	publishTimesMu.Lock()
	if last, ok := publishTimes[key]; ok && now.Sub(last) < cloudWatchPublishInterval {
		publishTimesMu.Unlock()
		return
	}
	publishTimes[key] = now
	publishTimesMu.Unlock()

	unit := cwtypes.StandardUnitCount
	if raw, ok := m.Fields["unit"].(string); ok {
		if u, found := metricUnitFromString(raw); found {
			unit = u
		}
	}

	dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(m.Component)}}
	for k, v := range m.Fields {
		if k == "unit" {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(s)})
		}
	}

	publishMetricsFunc(context.Background(), state, []cwtypes.MetricDatum{{
		MetricName: aws.String(m.Name),
		Dimensions: dims,
		Timestamp:  aws.Time(m.Timestamp),
		Unit:       unit,
		Value:      aws.Float64(value),
	}})
}

// publishMetrics sends in the background; callers sit on the receive loop.
func publishMetrics(ctx context.Context, state *cloudWatchState, data []cwtypes.MetricDatum) {
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if _, err := state.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(state.namespace),
			MetricData: data,
		}); err != nil {
			logger.GetLogger().WithComponent("cloudwatch").WithError(err).Warn("failed to publish metrics")
		}
	}()
}

func resetMetricPublishTimes() {
	publishTimesMu.Lock()
	publishTimes = make(map[string]time.Time)
	publishTimesMu.Unlock()
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case time.Duration:
		return v.Seconds(), true
	default:
		return 0, false
	}
}

func metricUnitFromString(unit string) (cwtypes.StandardUnit, bool) {
	switch strings.ToLower(unit) {
	case "count":
		return cwtypes.StandardUnitCount, true
	case "seconds":
		return cwtypes.StandardUnitSeconds, true
	case "bytes":
		return cwtypes.StandardUnitBytes, true
	default:
		return cwtypes.StandardUnitCount, false
	}
}
