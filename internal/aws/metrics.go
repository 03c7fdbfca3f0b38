package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Datum is one CloudWatch data point. Dimensions may be nil.
type Datum struct {
	Name       string
	Value      float64
	Unit       cwtypes.StandardUnit
	Dimensions map[string]string
}

// MetricEmitter writes data points under a fixed namespace.
type MetricEmitter struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

func NewMetricEmitter(client CloudWatchAPI, namespace string) *MetricEmitter {
	return &MetricEmitter{client: client, namespace: namespace, nowFunc: time.Now}
}

// Emit sends all data points in a single PutMetricData call.
func (m *MetricEmitter) Emit(ctx context.Context, data ...Datum) error {
	if len(data) == 0 {
		return nil
	}
	now := m.nowFunc()
	metricData := make([]cwtypes.MetricDatum, 0, len(data))
	for _, d := range data {
		md := cwtypes.MetricDatum{
			MetricName: sdkaws.String(d.Name),
			Value:      sdkaws.Float64(d.Value),
			Unit:       d.Unit,
			Timestamp:  sdkaws.Time(now),
		}
		for k, v := range d.Dimensions {
			md.Dimensions = append(md.Dimensions, cwtypes.Dimension{Name: sdkaws.String(k), Value: sdkaws.String(v)})
		}
		metricData = append(metricData, md)
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  sdkaws.String(m.namespace),
		MetricData: metricData,
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
